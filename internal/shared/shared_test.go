package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()

	if a == "" || b == "" {
		t.Fatal("expected non-empty IDs")
	}
	if a == b {
		t.Error("expected unique IDs")
	}
	if len(a) != 36 {
		t.Errorf("expected UUID format, got %q", a)
	}
}

func TestGetenv(t *testing.T) {
	t.Run("Set Variable Wins", func(t *testing.T) {
		t.Setenv("AIRCHIVE_TEST_VAR", "from_env")
		if got := Getenv("AIRCHIVE_TEST_VAR", "fallback"); got != "from_env" {
			t.Errorf("expected from_env, got %s", got)
		}
	})

	t.Run("Unset Variable Falls Back", func(t *testing.T) {
		if got := Getenv("AIRCHIVE_UNSET_VAR", "fallback"); got != "fallback" {
			t.Errorf("expected fallback, got %s", got)
		}
	})

	t.Run("Empty Variable Falls Back", func(t *testing.T) {
		t.Setenv("AIRCHIVE_EMPTY_VAR", "")
		if got := Getenv("AIRCHIVE_EMPTY_VAR", "fallback"); got != "fallback" {
			t.Errorf("expected fallback, got %s", got)
		}
	})
}

func TestWriteFileAtomic(t *testing.T) {
	t.Run("Creates New File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.json")

		if err := WriteFileAtomic(path, []byte(`{"ok":true}`), 0644); err != nil {
			t.Fatalf("failed to write: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read back: %v", err)
		}
		if string(data) != `{"ok":true}` {
			t.Errorf("unexpected contents %q", data)
		}
	})

	t.Run("Replaces Existing File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.json")
		if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		if err := WriteFileAtomic(path, []byte("new"), 0644); err != nil {
			t.Fatalf("failed to write: %v", err)
		}

		data, _ := os.ReadFile(path)
		if string(data) != "new" {
			t.Errorf("expected new contents, got %q", data)
		}
	})

	t.Run("Leaves No Temp Files Behind", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "out.json")

		if err := WriteFileAtomic(path, []byte("data"), 0600); err != nil {
			t.Fatalf("failed to write: %v", err)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("failed to read dir: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected only the target file, found %d entries", len(entries))
		}
	})

	t.Run("Missing Directory Fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "out.json")
		if err := WriteFileAtomic(path, []byte("data"), 0644); err == nil {
			t.Error("expected an error for a missing parent directory")
		}
	})
}
