package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestAnonymize(t *testing.T) {
	in := "user bob@example.com token eyJhbGciOi.abc user_id=42 zen 0xabcd0123456789abcdef0123456789abcdef9876"
	out := Anonymize(in)

	for _, leaked := range []string{"bob@example.com", "eyJhbGciOi", "user_id=42", "0123456789abcdef0123456789abcdef"} {
		if strings.Contains(out, leaked) {
			t.Fatalf("expected %q to be redacted, got %q", leaked, out)
		}
	}
	if !strings.Contains(out, "0xabcd...9876") {
		t.Fatalf("expected shortened address, got %q", out)
	}
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.Error("store", "insert failed", errors.New("disk full"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["module"] != "store" || entry["message"] != "insert failed" || entry["error"] != "disk full" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry["level"] != "error" {
		t.Fatalf("expected level error, got %v", entry["level"])
	}
}
