package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func setupHookPlugin(t *testing.T, script string, actions ...string) *Manager {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	root := t.TempDir()
	dir := writeManifest(t, root, Manifest{Name: "recorder", Executable: "run.sh", Actions: actions})
	if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	m := NewManager(root)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	return m
}

func TestHook_Run(t *testing.T) {
	// The plugin writes what it received next to itself.
	m := setupHookPlugin(t, `cat > received.json
echo '{"success":true}'
`, "type")

	hook := NewHook(m, NewExecutor(5*time.Second), "recorder", "type", nil)
	if hook.String() != "recorder/type" {
		t.Errorf("String() = %q", hook.String())
	}

	if _, err := hook.Run(context.Background(), "commit", "HI THERE"); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	p, _ := m.Get("recorder")
	data, err := os.ReadFile(filepath.Join(p.Path, "received.json"))
	if err != nil {
		t.Fatalf("plugin did not record its input: %v", err)
	}
	if !strings.Contains(string(data), `"text":"HI THERE"`) || !strings.Contains(string(data), `"event":"commit"`) {
		t.Errorf("received = %s", data)
	}
}

func TestHook_Run_Errors(t *testing.T) {
	m := setupHookPlugin(t, `echo '{"success":false,"error":"no accessibility permission"}'
`, "type")
	exec := NewExecutor(5 * time.Second)

	if _, err := NewHook(m, exec, "missing", "type", nil).Run(context.Background(), "commit", "x"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("missing plugin: expected ErrPluginNotFound, got %v", err)
	}

	if _, err := NewHook(m, exec, "recorder", "copy", nil).Run(context.Background(), "commit", "x"); !errors.Is(err, ErrActionNotSupported) {
		t.Errorf("unknown action: expected ErrActionNotSupported, got %v", err)
	}

	resp, err := NewHook(m, exec, "recorder", "type", nil).Run(context.Background(), "commit", "x")
	if err == nil || !strings.Contains(err.Error(), "no accessibility permission") {
		t.Errorf("failed response: err = %v", err)
	}
	if resp == nil || resp.Success {
		t.Error("failed response should still be returned")
	}
}
