package config_test

import (
	"os"
	"os/exec"
	"strings"
	"testing"

	"penguinboard/internal/platform/config"
)

// Exitf terminates the process, so it is exercised in a subprocess.
func TestExitfExitsWithCode1(t *testing.T) {
	if os.Getenv("PENGUINBOARD_EXITF_SUBPROCESS") == "1" {
		config.Exitf("fatal: %s", "dataset missing")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitfExitsWithCode1$")
	cmd.Env = append(os.Environ(), "PENGUINBOARD_EXITF_SUBPROCESS=1")
	out, err := cmd.CombinedOutput()

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected *exec.ExitError, got %T: %v", err, err)
	}
	if exitErr.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %d", exitErr.ExitCode())
	}
	if !strings.Contains(string(out), "fatal: dataset missing") {
		t.Fatalf("unexpected output %q", string(out))
	}
}
