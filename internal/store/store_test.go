package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetMissingKey(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "xharvest-test")
	defer os.RemoveAll(tmpDir)

	s, err := NewStore(filepath.Join(tmpDir, "xharvest.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	got, err := s.Get("never-set")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != "" {
		t.Errorf("Expected empty value for missing key, got %q", got)
	}
}

func TestSetGetRoundtrip(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "xharvest-test")
	defer os.RemoveAll(tmpDir)

	s, err := NewStore(filepath.Join(tmpDir, "xharvest.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	if err := s.Set("harvest_snapshot", `[{"id":"a_1"}]`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := s.Get("harvest_snapshot")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != `[{"id":"a_1"}]` {
		t.Errorf("Unexpected value: %q", got)
	}
}

func TestSetOverwritesLastWriteWins(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "xharvest-test")
	defer os.RemoveAll(tmpDir)

	s, err := NewStore(filepath.Join(tmpDir, "xharvest.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	s.Set("settings", `{"includeImages":true}`)
	s.Set("settings", `{"includeImages":false}`)

	got, _ := s.Get("settings")
	if got != `{"includeImages":false}` {
		t.Errorf("Expected overwritten value, got %q", got)
	}
}
