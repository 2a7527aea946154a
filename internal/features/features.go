// Package features extracts the tagged metadata a track carries on disk.
// Audio decoding and beat/key detection (BPM, musical key, energy) are out
// of scope here: those are expected to arrive already measured, either from
// an upstream analysis pipeline or supplied by the caller, and are left
// unset when absent rather than defaulted.
package features

import (
	"fmt"
	"os"
	"strconv"

	"github.com/FmBlueSystem/mapof-analysis/internal/llm"
	"github.com/dhowden/tag"
)

// Extractor reads tagged metadata from an audio file.
type Extractor interface {
	Extract(path string) (llm.RawFeatures, error)
}

// TagExtractor implements Extractor using ID3/MP4/FLAC/OGG tag reading.
type TagExtractor struct{}

// NewTagExtractor builds a tag-based Extractor.
func NewTagExtractor() *TagExtractor {
	return &TagExtractor{}
}

// Extract opens path and reads whatever title/artist/album/year tags are
// present. BPM, key, and energy are never populated here — they are not
// recoverable from container tags alone.
func (e *TagExtractor) Extract(path string) (llm.RawFeatures, error) {
	f, err := os.Open(path)
	if err != nil {
		return llm.RawFeatures{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	metadata, err := tag.ReadFrom(f)
	if err != nil {
		return llm.RawFeatures{}, fmt.Errorf("reading tags from %s: %w", path, err)
	}

	return llm.RawFeatures{
		Title:  metadata.Title(),
		Artist: metadata.Artist(),
		Album:  metadata.Album(),
		Year:   metadata.Year(),
	}, nil
}

// FileFingerprint derives a cache key from path identity plus size and
// modification time, so the analyzer can skip re-analyzing an unchanged
// file without hashing its contents.
func FileFingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	return path + ":" + strconv.FormatInt(info.Size(), 10) + ":" +
		strconv.FormatInt(info.ModTime().UnixNano(), 10), nil
}
