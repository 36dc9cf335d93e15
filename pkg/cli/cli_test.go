package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("storage.backend", "unknown backend")
	if !strings.Contains(err.Error(), "storage.backend") {
		t.Errorf("Error() = %q, want field name included", err.Error())
	}

	bare := NewConfigError("", "failed to load config")
	if strings.Contains(bare.Error(), "in :") {
		t.Errorf("Error() = %q, want no empty field segment", bare.Error())
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	cause := errors.New("listen tcp: address in use")
	err := NewCommandError("run", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if !strings.Contains(err.Error(), "run") {
		t.Errorf("Error() = %q, want command name included", err.Error())
	}
}

func TestFormatters(t *testing.T) {
	data := map[string]int{"count": 3}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewFormatter(FormatJSON).FormatTo(&buf, data); err != nil {
			t.Fatalf("FormatTo: %v", err)
		}
		var parsed map[string]int
		if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if parsed["count"] != 3 {
			t.Errorf("count = %d, want 3", parsed["count"])
		}
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewFormatter(FormatText).FormatTo(&buf, "done"); err != nil {
			t.Fatalf("FormatTo: %v", err)
		}
		if buf.String() != "done\n" {
			t.Errorf("output = %q, want %q", buf.String(), "done\n")
		}
	})

	t.Run("unknown format falls back to text", func(t *testing.T) {
		if _, ok := NewFormatter("yaml").(*TextFormatter); !ok {
			t.Error("unknown format did not yield TextFormatter")
		}
	})
}
