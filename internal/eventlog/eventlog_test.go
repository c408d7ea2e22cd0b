package eventlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLogWritesJSONLRecord(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l, err := Create(dir, 9000, "node-abcdef123456")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer l.Close()

	l.Log("node_listening", Fields{"addr": "127.0.0.1:9000", "fanout": 3})

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one log file, got %v err=%v", entries, err)
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var rec map[string]interface{}
	if err := json.Unmarshal(data[:len(data)-1], &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["event"] != "node_listening" || rec["addr"] != "127.0.0.1:9000" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestLogSkipsNilFields(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l, err := Create(dir, 9001, "node-xyz")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer l.Close()

	l.Log("recv_invalid_schema", Fields{"peer": "1.2.3.4:5", "msg_type": nil})

	entries, _ := os.ReadDir(dir)
	data, _ := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	var rec map[string]interface{}
	if err := json.Unmarshal(data[:len(data)-1], &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := rec["msg_type"]; present {
		t.Error("expected nil field msg_type to be omitted")
	}
}

func TestFileNameFormat(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l, err := Create(dir, 9002, "0123456789abcdef")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer l.Close()

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected one file, got %d", len(entries))
	}
	name := entries[0].Name()
	if filepath.Ext(name) != ".jsonl" {
		t.Errorf("expected .jsonl extension, got %s", name)
	}
}
