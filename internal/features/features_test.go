package features

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileFingerprintChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.txt")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	fp1, err := FileFingerprint(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Force a distinct mtime so the fingerprint is guaranteed to change.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.WriteFile(path, []byte("ab"), 0o644); err != nil {
		t.Fatalf("rewriting file: %v", err)
	}

	fp2, err := FileFingerprint(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fp1 == fp2 {
		t.Error("expected fingerprint to change when file size/mtime change")
	}
}

func TestFileFingerprintMissingFile(t *testing.T) {
	_, err := FileFingerprint(filepath.Join(t.TempDir(), "does-not-exist.mp3"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestExtractUnreadableFile(t *testing.T) {
	extractor := NewTagExtractor()
	_, err := extractor.Extract(filepath.Join(t.TempDir(), "missing.mp3"))
	if err == nil {
		t.Fatal("expected an error opening a missing file")
	}
}
