// Package source discovers and parses the JSONL event logs written by tool
// servers.
package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/theirongolddev/toolmeter/internal/model"
)

// ParseResult holds the output of parsing a single JSONL file.
type ParseResult struct {
	Events []model.Event
	// Metrics holds the last reading per metric name.
	Metrics     map[string]float64
	ParseErrors int
	Err         error
}

// ParseFile reads a JSONL event log. Malformed or incomplete lines are
// counted in ParseErrors and skipped; records of unknown type are ignored.
//
// Events keep the zero time when the line has no "ts"; callers stamp them
// on import. Lines without an "id" get one derived from the file path, line
// number and content, so re-reading an appended file yields the same IDs.
// The file's server name is added to each event's metadata under "server"
// unless the line already sets it.
func ParseFile(df DiscoveredFile) ParseResult {
	f, err := os.Open(df.Path)
	if err != nil {
		return ParseResult{Err: err}
	}
	defer func() { _ = f.Close() }()

	res := ParseResult{Metrics: make(map[string]float64)}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		recType, ok := extractTopLevelType(line)
		if !ok {
			recType = TypeInvocation
		}
		if recType != TypeInvocation && recType != TypeMetric {
			continue
		}

		var rec RawRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			res.ParseErrors++
			continue
		}

		switch recType {
		case TypeMetric:
			if rec.Name == "" || rec.Value == nil {
				res.ParseErrors++
				continue
			}
			res.Metrics[rec.Name] = *rec.Value

		case TypeInvocation:
			ev, ok := toEvent(rec, df)
			if !ok {
				res.ParseErrors++
				continue
			}
			if ev.ID == "" {
				ev.ID = lineID(df.Path, lineNo, line)
			}
			res.Events = append(res.Events, ev)
		}
	}

	if err := scanner.Err(); err != nil {
		return ParseResult{Err: err}
	}
	return res
}

func toEvent(rec RawRecord, df DiscoveredFile) (model.Event, bool) {
	if rec.Tool == "" {
		return model.Event{}, false
	}

	var ts time.Time
	if rec.Timestamp != "" {
		t, err := time.Parse(time.RFC3339Nano, rec.Timestamp)
		if err != nil {
			return model.Event{}, false
		}
		ts = t.UTC()
	}

	success := rec.Error == ""
	if rec.Success != nil {
		success = *rec.Success
	}

	meta := rec.Meta
	if meta == nil {
		meta = make(map[string]any)
	}
	if _, ok := meta["server"]; !ok && df.Server != "" {
		meta["server"] = df.Server
	}
	if rec.Error != "" {
		if _, ok := meta["error"]; !ok {
			meta["error"] = rec.Error
		}
	}

	return model.Event{
		ID:        rec.ID,
		Key:       rec.Tool,
		Timestamp: ts,
		Duration:  time.Duration(rec.DurationMs * float64(time.Millisecond)),
		Success:   success,
		Cost:      rec.Cost,
		Metadata:  meta,
	}, true
}

func lineID(path string, lineNo int, line []byte) string {
	name := make([]byte, 0, len(path)+len(line)+12)
	name = append(name, path...)
	name = append(name, 0)
	name = strconv.AppendInt(name, int64(lineNo), 10)
	name = append(name, 0)
	name = append(name, line...)
	return uuid.NewSHA1(uuid.NameSpaceURL, name).String()
}

// typeKey is the byte sequence for a JSON key named "type" (with quotes).
var typeKey = []byte(`"type"`)

// extractTopLevelType finds the top-level "type" field in a JSONL line.
// Tracks brace depth and string boundaries so "type" keys inside "meta"
// are ignored. ok is false when the line has no top-level type.
func extractTopLevelType(line []byte) (val string, ok bool) {
	depth := 0
	for i := 0; i < len(line); {
		switch line[i] {
		case '"':
			if depth == 1 && bytes.HasPrefix(line[i:], typeKey) {
				val, isKey := classifyType(line, i+len(typeKey))
				if isKey {
					return val, true
				}
				// "type" appeared as a value, not a key. Continue scanning.
			}
			i = skipJSONString(line, i)
		case '{':
			depth++
			i++
		case '}':
			depth--
			i++
		default:
			i++
		}
	}
	return "", false
}

// classifyType checks whether pos follows a JSON key (expects : then value).
// isKey=false means "type" appeared as a value, not a key.
func classifyType(line []byte, pos int) (val string, isKey bool) {
	i := skipSpaces(line, pos)
	if i >= len(line) || line[i] != ':' {
		return "", false
	}
	i = skipSpaces(line, i+1)
	if i >= len(line) || line[i] != '"' {
		return "", true // key with non-string value (null, number, etc.)
	}
	i++

	end := bytes.IndexByte(line[i:], '"')
	if end < 0 || end > 20 {
		return "", true
	}
	return string(line[i : i+end]), true
}

// skipJSONString advances past a JSON string starting at the opening quote.
//
//nolint:gosec // manual bounds checking throughout
func skipJSONString(line []byte, i int) int {
	i++
	for i < len(line) {
		switch line[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1
		default:
			i++
		}
	}
	return i
}

func skipSpaces(line []byte, i int) int {
	for i < len(line) && line[i] == ' ' {
		i++
	}
	return i
}
