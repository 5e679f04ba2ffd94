package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dotnyet/vm/internal/testutil"
)

func TestIsHelpAndVersion(t *testing.T) {
	for _, arg := range []string{"-h", "--help"} {
		if !isHelp(arg) {
			t.Errorf("isHelp(%q) = false", arg)
		}
	}
	for _, arg := range []string{"-v", "--version"} {
		if !isVersion(arg) {
			t.Errorf("isVersion(%q) = false", arg)
		}
	}
	if isHelp("-v") || isVersion("-h") {
		t.Errorf("isHelp/isVersion cross-matched")
	}
}

func TestHasValidEnvelope(t *testing.T) {
	b := testutil.NewBuilder()
	b.DEF("main").HALT()
	b.Envelope()
	if !hasValidEnvelope(b.Bytes()) {
		t.Errorf("framed image should have a valid envelope")
	}

	bare := testutil.NewBuilder()
	bare.DEF("main").HALT()
	if hasValidEnvelope(bare.Bytes()) {
		t.Errorf("bare image should not report a valid envelope")
	}

	if hasValidEnvelope([]byte{'N', 'Y'}) {
		t.Errorf("short buffer should not report a valid envelope")
	}
}

func TestRunNoArgsPrintsUsage(t *testing.T) {
	if code := run(nil); code != 1 {
		t.Errorf("run(nil) = %d, want 1", code)
	}
}

func TestRunHelp(t *testing.T) {
	if code := run([]string{"--help"}); code != 0 {
		t.Errorf("run(--help) = %d, want 0", code)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	if code := run([]string{"frobnicate"}); code != 1 {
		t.Errorf("run(frobnicate) = %d, want 1", code)
	}
}

func TestRunMissingFile(t *testing.T) {
	if code := run([]string{"run", "/nonexistent/path/to/program.nyet"}); code != 1 {
		t.Errorf("run(run, missing file) = %d, want 1", code)
	}
}

func TestRunEndToEnd(t *testing.T) {
	b := testutil.NewBuilder()
	b.DEF("main").PushString("hi").PRINT().HALT()
	b.Envelope()

	dir := t.TempDir()
	path := filepath.Join(dir, "prog.nyet")
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if code := run([]string{"run", "-l", "error", path}); code != 0 {
		t.Errorf("run(run, %s) = %d, want 0", path, code)
	}
}

func TestRunNoVerifyBareImage(t *testing.T) {
	b := testutil.NewBuilder()
	b.DEF("main").PushInt(1).HALT()

	dir := t.TempDir()
	path := filepath.Join(dir, "bare.nyet")
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if code := run([]string{"run", "-n", "-l", "error", path}); code != 0 {
		t.Errorf("run(run, -n, %s) = %d, want 0", path, code)
	}
}
