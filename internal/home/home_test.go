package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-critique")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-critique" {
			t.Errorf("expected path /tmp/test-critique, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-critique")

	t.Run("ConfigPath", func(t *testing.T) {
		expected := "/tmp/test-critique/config.yaml"
		if dir.ConfigPath() != expected {
			t.Errorf("expected %s, got %s", expected, dir.ConfigPath())
		}
	})

	t.Run("AssignmentPath", func(t *testing.T) {
		expected := "/tmp/test-critique/assignment.yaml"
		if dir.AssignmentPath() != expected {
			t.Errorf("expected %s, got %s", expected, dir.AssignmentPath())
		}
	})
}

func TestDir_EnsureExists(t *testing.T) {
	tmpDir := t.TempDir()
	critiqueDir := filepath.Join(tmpDir, "critique-test")

	dir, err := New(critiqueDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dir.Exists() {
		t.Fatal("directory should not exist yet")
	}

	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}
	if !dir.Exists() {
		t.Error("directory should exist after EnsureExists")
	}
	if dir.ConfigExists() {
		t.Error("config should not exist in a fresh directory")
	}

	if err := os.WriteFile(dir.AssignmentPath(), []byte("name: x\n"), 0o644); err != nil {
		t.Fatalf("write assignment: %v", err)
	}
	if !dir.AssignmentExists() {
		t.Error("assignment file should be detected")
	}
}
