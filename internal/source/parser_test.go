package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeLog creates a temp JSONL file and returns a DiscoveredFile for it.
func writeLog(t *testing.T, lines ...string) DiscoveredFile {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "git_insights.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return DiscoveredFile{Path: path, Server: "git_insights"}
}

func TestParseFile_Invocations(t *testing.T) {
	df := writeLog(t,
		`{"tool":"git_log","ts":"2025-06-01T10:00:00Z","duration_ms":120.5,"success":true,"cost":0.002}`,
		`{"type":"invocation","tool":"git_blame","ts":"2025-06-01T10:05:00Z","duration_ms":40,"success":false}`,
	)

	result := ParseFile(df)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if len(result.Events) != 2 {
		t.Fatalf("len(Events) = %d, want 2", len(result.Events))
	}

	ev := result.Events[0]
	if ev.Key != "git_log" {
		t.Errorf("Key = %q, want git_log", ev.Key)
	}
	if ev.Duration != 120500*time.Microsecond {
		t.Errorf("Duration = %v, want 120.5ms", ev.Duration)
	}
	if !ev.Success {
		t.Error("Success = false, want true")
	}
	if ev.Cost != 0.002 {
		t.Errorf("Cost = %v, want 0.002", ev.Cost)
	}
	want := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", ev.Timestamp, want)
	}
	if ev.Metadata["server"] != "git_insights" {
		t.Errorf("Metadata[server] = %v, want git_insights", ev.Metadata["server"])
	}

	if result.Events[1].Success {
		t.Error("second event Success = true, want false")
	}
}

func TestParseFile_StableIDs(t *testing.T) {
	df := writeLog(t,
		`{"tool":"a","duration_ms":1}`,
		`{"tool":"a","duration_ms":1}`,
		`{"id":"explicit","tool":"b"}`,
	)

	first := ParseFile(df)
	second := ParseFile(df)
	if len(first.Events) != 3 {
		t.Fatalf("len(Events) = %d, want 3", len(first.Events))
	}
	for i := range first.Events {
		if first.Events[i].ID != second.Events[i].ID {
			t.Errorf("event %d ID changed between parses: %s vs %s", i, first.Events[i].ID, second.Events[i].ID)
		}
	}
	if first.Events[0].ID == first.Events[1].ID {
		t.Error("identical lines should still get distinct IDs")
	}
	if first.Events[2].ID != "explicit" {
		t.Errorf("ID = %q, want explicit", first.Events[2].ID)
	}
}

func TestParseFile_ErrorImpliesFailure(t *testing.T) {
	df := writeLog(t,
		`{"tool":"sql_query","duration_ms":5,"error":"no such table"}`,
		`{"tool":"sql_query","duration_ms":5}`,
	)

	result := ParseFile(df)
	if len(result.Events) != 2 {
		t.Fatalf("len(Events) = %d, want 2", len(result.Events))
	}
	if result.Events[0].Success {
		t.Error("event with error should not be successful")
	}
	if result.Events[0].Metadata["error"] != "no such table" {
		t.Errorf("Metadata[error] = %v", result.Events[0].Metadata["error"])
	}
	if !result.Events[1].Success {
		t.Error("event without error or success flag should be successful")
	}
}

func TestParseFile_MissingTimestamp(t *testing.T) {
	df := writeLog(t, `{"tool":"search","duration_ms":1}`)

	result := ParseFile(df)
	if len(result.Events) != 1 {
		t.Fatalf("len(Events) = %d, want 1", len(result.Events))
	}
	if !result.Events[0].Timestamp.IsZero() {
		t.Errorf("Timestamp = %v, want zero", result.Events[0].Timestamp)
	}
}

func TestParseFile_KeepsServerFromMeta(t *testing.T) {
	df := writeLog(t, `{"tool":"search","meta":{"server":"kb","type":"nested"}}`)

	result := ParseFile(df)
	if len(result.Events) != 1 {
		t.Fatalf("len(Events) = %d, want 1", len(result.Events))
	}
	if result.Events[0].Metadata["server"] != "kb" {
		t.Errorf("Metadata[server] = %v, want kb", result.Events[0].Metadata["server"])
	}
}

func TestParseFile_Metrics(t *testing.T) {
	df := writeLog(t,
		`{"type":"metric","name":"cpu_percent","value":41.5}`,
		`{"type":"metric","name":"cpu_percent","value":87}`,
		`{"type":"metric","name":"mem_percent","value":0}`,
		`{"type":"metric","name":"disk"}`,
	)

	result := ParseFile(df)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if len(result.Events) != 0 {
		t.Errorf("len(Events) = %d, want 0", len(result.Events))
	}
	if got := result.Metrics["cpu_percent"]; got != 87 {
		t.Errorf("cpu_percent = %v, want 87 (last wins)", got)
	}
	if _, ok := result.Metrics["mem_percent"]; !ok {
		t.Error("zero-valued metric should still be recorded")
	}
	if result.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", result.ParseErrors)
	}
}

func TestParseFile_EmptyFile(t *testing.T) {
	df := writeLog(t)
	result := ParseFile(df)
	if result.Err != nil {
		t.Fatalf("unexpected error on empty file: %v", result.Err)
	}
	if len(result.Events) != 0 || len(result.Metrics) != 0 {
		t.Error("expected nothing from empty file")
	}
}

func TestParseFile_MalformedLines(t *testing.T) {
	df := writeLog(t,
		`not json at all`,
		`{"tool":"git_log","duration_ms":3}`,
		`{"tool":"broken json`,
		`{"duration_ms":3}`,
		`{"tool":"x","ts":"yesterday"}`,
		`{"type":"heartbeat","tool":"ignored"}`,
	)

	result := ParseFile(df)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	// Malformed lines should be skipped, not cause a fatal error.
	if len(result.Events) != 1 {
		t.Errorf("len(Events) = %d, want 1", len(result.Events))
	}
	if result.ParseErrors != 4 {
		t.Errorf("ParseErrors = %d, want 4", result.ParseErrors)
	}
}

func TestParseFile_MissingFile(t *testing.T) {
	result := ParseFile(DiscoveredFile{Path: filepath.Join(t.TempDir(), "nope.jsonl")})
	if result.Err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestScanDir(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel string) {
		t.Helper()
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("{}\n"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite("file_organizer.jsonl")
	mustWrite("hosts/a/system_monitor.jsonl")
	mustWrite("hosts/b/system_monitor.jsonl")
	mustWrite("notes.txt")
	mustWrite(".trash/old.jsonl")

	files, err := ScanDir(root)
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("len(files) = %d, want 3: %+v", len(files), files)
	}
	if n := CountServers(files); n != 2 {
		t.Errorf("CountServers = %d, want 2", n)
	}
}

func TestScanDir_Missing(t *testing.T) {
	files, err := ScanDir(filepath.Join(t.TempDir(), "absent"))
	if err != nil || files != nil {
		t.Errorf("ScanDir(missing) = %v, %v; want nil, nil", files, err)
	}
}

func TestExtractTopLevelType(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"metric", `{"type":"metric","name":"cpu"}`, "metric", true},
		{"invocation", `{"type": "invocation","tool":"x"}`, "invocation", true},
		{"nested type ignored", `{"meta":{"type":"progress"},"type":"metric"}`, "metric", true},
		{"type as value", `{"kind":"type","tool":"x"}`, "", false},
		{"null type", `{"type":null}`, "", true},
		{"no type field", `{"tool":"x"}`, "", false},
		{"empty", `{}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractTopLevelType([]byte(tt.input))
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("extractTopLevelType(%q) = %q, %v, want %q, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// FuzzExtractTopLevelType tests that the byte-level parser never panics
// on arbitrary input, which is important since it processes untrusted files.
func FuzzExtractTopLevelType(f *testing.F) {
	f.Add([]byte(`{"tool":"git_log","ts":"2025-06-01T10:00:00Z"}`))
	f.Add([]byte(`{"type":"metric","name":"cpu","value":1}`))
	f.Add([]byte(`{"meta":{"type":"nested"},"type":"invocation"}`))
	f.Add([]byte(`not json`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"type":null}`))
	f.Add([]byte(`{"type":123}`))
	f.Add([]byte(``))
	f.Add([]byte(`{"type":"metric`)) // unterminated string

	f.Fuzz(func(t *testing.T, data []byte) {
		val, ok := extractTopLevelType(data)
		if !ok && val != "" {
			t.Errorf("value %q returned without ok from input %q", val, data)
		}
		if len(val) > 20 {
			t.Errorf("value %q longer than the scan limit", val)
		}
	})
}
