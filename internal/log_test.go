package internal

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func useLogger(t *testing.T, logger *SecureLogger) {
	t.Helper()
	SetLogger(logger)
	t.Cleanup(func() { SetLogger(nil) })
}

func TestInitLogger_RedactsSecretKey(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "linkfetch.log")
	config := DefaultConfig()
	config.LogFile = logFile
	config.EnableDebug = true
	config.S3AccessKey = "AKIDEXAMPLE"
	config.S3SecretKey = "wJalrXUtnFEMI-example-secret"

	if err := InitLogger(config); err != nil {
		t.Fatalf("InitLogger failed: %v", err)
	}
	t.Cleanup(func() { SetLogger(nil) })

	LogDebug("signing with %s", config.S3SecretKey)

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	output := string(data)
	if !strings.Contains(output, "signing with [REDACTED]") {
		t.Errorf("debug line should be written with the secret masked, got: %s", output)
	}
	if strings.Contains(output, config.S3SecretKey) {
		t.Errorf("secret key leaked into the log: %s", output)
	}
}

func TestSecureLogger_Setters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelInfo, false, false)

	logger.SetDebug(true)
	logger.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("SetDebug should enable debug messages, got: %s", buf.String())
	}

	buf.Reset()
	logger.SetQuiet(true)
	logger.Warn("hidden")
	if buf.Len() != 0 {
		t.Errorf("SetQuiet should drop warnings, got: %s", buf.String())
	}

	logger.SetQuiet(false)
	logger.SetLevel(LogLevelWarn)
	logger.Info("hidden")
	logger.Warn("shown")
	if output := buf.String(); strings.Contains(output, "hidden") || !strings.Contains(output, "shown") {
		t.Errorf("SetLevel(warn) should filter info, got: %s", output)
	}
}

func TestSecretRedactor_IgnoresEmpty(t *testing.T) {
	r := NewSecretRedactor("", "abc")
	if got := r.Redact("x abc y"); got != "x [REDACTED] y" {
		t.Errorf("Redact = %q", got)
	}
	if got := NewSecretRedactor("").Redact("unchanged"); got != "unchanged" {
		t.Errorf("empty secret should not redact, got %q", got)
	}
}

func TestLogSessionError_Severity(t *testing.T) {
	var buf bytes.Buffer
	useLogger(t, NewSecureLogger(&buf, LogLevelDebug, false, false))

	LogSessionError(NewSessionBusyError("export", "login"))
	if output := buf.String(); !strings.Contains(output, "WRN") || !strings.Contains(output, "login is still pending") {
		t.Errorf("busy errors should log as warnings, got: %s", output)
	}

	buf.Reset()
	LogSessionError(NewNodeNotFoundError("abc"))
	if output := buf.String(); !strings.Contains(output, "ERR") || !strings.Contains(output, `node "abc" not found`) {
		t.Errorf("unexpected output: %s", output)
	}
}

func TestLogValidationError(t *testing.T) {
	var buf bytes.Buffer
	useLogger(t, NewSecureLogger(&buf, LogLevelInfo, false, false))

	LogValidationError(NewValidationError("proxy_url", "unsupported scheme"))
	output := buf.String()
	if !strings.Contains(output, "Validation Error:") || !strings.Contains(output, "proxy_url") {
		t.Errorf("unexpected output: %s", output)
	}
}
