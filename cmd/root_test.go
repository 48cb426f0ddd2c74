package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"linkfetch/internal"
	"linkfetch/session"
)

func TestLoadConfiguration_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("LINKFETCH_MAX_TRANSFERS", "3")
	t.Setenv("LINKFETCH_DOWNLOAD_DIR", "/tmp/from-env")

	cmd := getCmd
	if err := cmd.ParseFlags([]string{"--max-transfers", "7", "--timeout", "30s"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	t.Cleanup(func() {
		cmd.Flags().Set("max-transfers", "4")
		cmd.Flags().Set("timeout", "10m0s")
	})

	if err := loadConfiguration(cmd); err != nil {
		t.Fatalf("loadConfiguration failed: %v", err)
	}
	if config.MaxTransfers != 7 {
		t.Errorf("MaxTransfers = %d, want flag value 7", config.MaxTransfers)
	}
	if config.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %s, want 30s", config.RequestTimeout)
	}
	if config.DownloadDir != "/tmp/from-env" {
		t.Errorf("DownloadDir = %q, want env value", config.DownloadDir)
	}
}

func TestLoadConfiguration_RejectsInvalidValues(t *testing.T) {
	t.Setenv("LINKFETCH_PROXY", "ftp://proxy:21")

	err := loadConfiguration(accountCmd)
	var verr *internal.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a ValidationError, got %v", err)
	}
	if verr.Field != "proxy_url" {
		t.Errorf("Field = %q, want proxy_url", verr.Field)
	}
}

func TestBoardItems(t *testing.T) {
	report := session.Report{
		Statuses: []session.Status{
			{ID: 1, Name: "a-very-long-file-name-for-testing.bin", Total: 100, Transferred: 40, State: session.StateActive, Paused: true},
			{ID: 2, Name: "done.txt", Total: 10, Transferred: 10, State: session.StateFinished},
		},
		Lines: []string{"line one", "line two"},
	}

	items := boardItems(report)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Name != "a-very-long-file-name..." {
		t.Errorf("long names should be elided, got %q", items[0].Name)
	}
	if items[0].Note != "paused" || items[0].Terminal {
		t.Errorf("unexpected first item %+v", items[0])
	}
	if !items[1].Terminal || items[1].Line != "line two" {
		t.Errorf("unexpected second item %+v", items[1])
	}
}

func TestPrintError(t *testing.T) {
	var logged bytes.Buffer
	internal.SetLogger(internal.NewSecureLogger(&logged, internal.LogLevelInfo, false, false))
	t.Cleanup(func() {
		internal.SetLogger(nil)
		debug = false
	})

	var out bytes.Buffer
	busy := fmt.Errorf("export: %w", internal.NewSessionBusyError("export", "login"))

	debug = false
	printError(&out, busy)
	if !strings.HasPrefix(out.String(), "❌ export: ") || logged.Len() != 0 {
		t.Errorf("plain mode should print one line, got %q (log %q)", out.String(), logged.String())
	}

	out.Reset()
	debug = true
	printError(&out, busy)
	if out.Len() != 0 {
		t.Errorf("debug mode should log instead of printing, got %q", out.String())
	}
	if got := logged.String(); !strings.Contains(got, "WRN") || !strings.Contains(got, "Operation: export") {
		t.Errorf("session errors should be logged with their details, got %q", got)
	}

	logged.Reset()
	printError(&out, internal.NewValidationError("proxy_url", "bad scheme"))
	if !strings.Contains(logged.String(), "Validation Error:") {
		t.Errorf("validation errors should be logged, got %q", logged.String())
	}

	printError(&out, errors.New("plain failure"))
	if out.String() != "❌ plain failure\n" {
		t.Errorf("other errors are printed, got %q", out.String())
	}
}
