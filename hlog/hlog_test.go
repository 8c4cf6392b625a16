package hlog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		verbose, debug bool
		level          zerolog.Level
	}{
		{false, false, zerolog.WarnLevel},
		{true, false, zerolog.InfoLevel},
		{false, true, zerolog.DebugLevel},
		{true, true, zerolog.DebugLevel},
	}
	for _, test := range tests {
		if l := Level(test.verbose, test.debug); l != test.level {
			t.Errorf("Level(%t, %t) = %v, want %v", test.verbose, test.debug, l, test.level)
		}
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zerolog.InfoLevel).WithName("esp0")
	log.Info("hello", "cmd", "CWMODE=")
	log.V(1).Info("wire")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("log = %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["logger"] != "esp0" || rec["cmd"] != "CWMODE=" || rec["message"] != "hello" {
		t.Fatalf("record = %v", rec)
	}
}

func TestInitFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "icedash.log")
	log := Init(false, true, file)
	log.V(1).Info("debug line")
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "debug line") {
		t.Fatalf("log file = %q", data)
	}
}
