package diag

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// setState points the package-level logger at buf with the given handler
// kind/level, bypassing SetTextLogger's hardcoded os.Stderr so tests can
// capture output.
func setState(buf *bytes.Buffer, k handlerKind, lvl slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	writer, kind, level = buf, k, lvl
	log = newHandlerLogger(k, buf, lvl)
}

func TestSetLevelGatesBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	setState(&buf, kindJSON, slog.LevelInfo)

	SetLevel(slog.LevelWarn)
	Info("should be gated out")
	if buf.Len() != 0 {
		t.Fatalf("Info after SetLevel(Warn) should be gated, got %q", buf.String())
	}

	Warn("should pass")
	if !strings.Contains(buf.String(), "should pass") {
		t.Fatalf("Warn after SetLevel(Warn) should be emitted, got %q", buf.String())
	}
}

func TestSetLevelPreservesTextHandlerKind(t *testing.T) {
	var buf bytes.Buffer
	setState(&buf, kindText, slog.LevelInfo)

	SetLevel(slog.LevelDebug)
	Debug("debug line")
	out := buf.String()
	if !strings.Contains(out, "debug line") {
		t.Fatalf("expected text-handler debug output, got %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("expected text handler output, got JSON-looking output %q", out)
	}
}
