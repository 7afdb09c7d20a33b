package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", "production")

	log.Debug().Str("note_id", "n1").Msg("cached")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["note_id"] != "n1" {
		t.Errorf("expected note_id n1, got %v", entry["note_id"])
	}
	if entry["level"] != "debug" {
		t.Errorf("expected level debug, got %v", entry["level"])
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		wantOut bool
	}{
		{name: "info hides debug", level: "info", wantOut: false},
		{name: "invalid level falls back to info", level: "loud", wantOut: false},
		{name: "debug shows debug", level: "DEBUG", wantOut: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(&buf, tt.level, "production")
			log.Debug().Msg("hidden?")

			if got := buf.Len() > 0; got != tt.wantOut {
				t.Errorf("output = %v, want %v", got, tt.wantOut)
			}
		})
	}
}
