package tests

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/lingvo-chat/chat-service/pkg/logger"
)

func TestInit_DevStd_TextOutput(t *testing.T) {
	cfg := logger.Config{
		Service: "chat-service",
		Version: "v0.0.1",
		Env:     logger.EnvDev,
		Backend: logger.BackendStd,
		Level:   slog.LevelDebug,
	}

	out := captureStdOut(func() {
		logger.Init(cfg)
		slog.Info("dispatch queued")
	})

	// Txt handler
	if strings.Contains(out, "{") && strings.Contains(out, "}") {
		t.Fatalf("expected text output in dev/std, got JSON: %s", out)
	}
	if !strings.Contains(out, "dispatch queued") {
		t.Fatalf("message missing: %s", out)
	}
	if !strings.Contains(out, "service=chat-service") {
		t.Fatalf("service attr missing: %s", out)
	}
	if !strings.Contains(out, "env=dev") {
		t.Fatalf("env attr missing: %s", out)
	}
}

func TestInit_DebugLevel(t *testing.T) {
	out := captureStdOut(func() {
		logger.Init(logger.Config{
			Service: "chat-service",
			Env:     logger.EnvDev,
			Backend: logger.BackendStd,
			Debug:   true,
		})
		slog.Debug("translate fallback", "lang", "fr")
	})

	if !strings.Contains(out, "translate fallback") {
		t.Fatalf("debug message missing: %s", out)
	}
}
