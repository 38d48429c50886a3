package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS events (
    seq                  INTEGER PRIMARY KEY AUTOINCREMENT,
    id                   TEXT NOT NULL UNIQUE,
    tool                 TEXT NOT NULL,
    ts_ns                INTEGER NOT NULL,
    duration_ns          INTEGER NOT NULL,
    success              INTEGER NOT NULL,
    cost                 REAL NOT NULL DEFAULT 0,
    metadata             TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS alerts (
    seq                  INTEGER PRIMARY KEY AUTOINCREMENT,
    rule                 TEXT NOT NULL,
    metric               TEXT,
    value                REAL NOT NULL,
    threshold            REAL NOT NULL,
    triggered_ns         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS file_tracker (
    file_path            TEXT PRIMARY KEY,
    mtime_ns             INTEGER NOT NULL,
    size_bytes           INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts_ns);
CREATE INDEX IF NOT EXISTS idx_events_tool ON events(tool);
CREATE INDEX IF NOT EXISTS idx_alerts_triggered ON alerts(triggered_ns);
`
