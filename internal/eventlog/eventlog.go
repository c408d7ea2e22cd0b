// Package eventlog implements the structured JSONL event sink (C9): an
// append-only record per decision point, consumed externally by the
// convergence/latency analytics harness. This is a contract, not a
// debugging aid — field names and event names are load-bearing.
//
// Grounded on original_source/src/logging_jsonl.py's JsonlLogger: same
// file-naming convention, same nil-field-skip behavior, same
// lock-serialized-write safety. The teacher repo has no JSONL analytics
// sink of its own (its operational logs go through log/slog), so this
// component follows the Python original rather than the teacher.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes one JSON object per line to an append-only file.
type Logger struct {
	mu   sync.Mutex
	file *os.File
}

// Fields is the set of extra key/value pairs attached to an event record.
// A nil value is omitted entirely, matching the Python original's
// log(event, **fields) skipping None values.
type Fields map[string]interface{}

// Create opens (creating if needed) a log file named
// node-<port>-<unixMs>-<nodeID8>.jsonl directly in dir, mirroring the
// Python original's naming scheme.
func Create(dir string, port int, nodeID string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("eventlog: create dir: %w", err)
	}
	id8 := nodeID
	if len(id8) > 8 {
		id8 = id8[:8]
	}
	name := fmt.Sprintf("node-%d-%d-%s.jsonl", port, time.Now().UnixMilli(), id8)
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open: %w", err)
	}
	return &Logger{file: f}, nil
}

// Log appends one JSON record: {"event": event, "ts_ms": now, ...fields}.
// Fields whose value is nil are omitted.
func (l *Logger) Log(event string, fields Fields) {
	rec := make(map[string]interface{}, len(fields)+2)
	rec["event"] = event
	rec["ts_ms"] = time.Now().UnixMilli()
	for k, v := range fields {
		if v == nil {
			continue
		}
		rec[k] = v
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.file.Write(line)
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
