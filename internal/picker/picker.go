package picker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/arbovm/levenshtein"
	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrNotImage is returned when the chosen file is not image/*.
	ErrNotImage = errors.New("selected file is not an image")

	// ErrTooLarge is returned when the chosen file exceeds the upload limit.
	ErrTooLarge = errors.New("selected file is too large")
)

// maxSuggestionDistance bounds how different a sibling name may be
// before it stops being offered as a "did you mean".
const maxSuggestionDistance = 3

// SelectedFile is one user-chosen image, held in memory.
type SelectedFile struct {
	Name string
	Data []byte
	MIME string
	Size int64
}

// FromBytes wraps already-loaded content. The MIME type is sniffed.
func FromBytes(name string, data []byte) *SelectedFile {
	return &SelectedFile{
		Name: name,
		Data: data,
		MIME: mimetype.Detect(data).String(),
		Size: int64(len(data)),
	}
}

// IsImage reports whether the sniffed type is image/*.
func (f *SelectedFile) IsImage() bool {
	return strings.HasPrefix(f.MIME, "image/")
}

// NotFoundError is returned by Open for a missing path and may carry
// the closest existing name in the same directory.
type NotFoundError struct {
	Path       string
	Suggestion string
}

func (e *NotFoundError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("file %q not found, did you mean %q?", e.Path, e.Suggestion)
	}
	return fmt.Sprintf("file %q not found", e.Path)
}

func (e *NotFoundError) Unwrap() error {
	return fs.ErrNotExist
}

// Open reads path and applies the image/* filter. maxSize <= 0 disables
// the size check.
func Open(path string, maxSize int64) (*SelectedFile, error) {
	path = strings.TrimSpace(path)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path, Suggestion: suggest(path)}
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, info.Size(), maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	file := FromBytes(filepath.Base(path), data)
	if !file.IsImage() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotImage, file.Name, file.MIME)
	}
	return file, nil
}

// suggest returns the sibling file name closest to path, or "".
func suggest(path string) string {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	best, bestDist := "", maxSuggestionDistance+1
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		d := levenshtein.Distance(strings.ToLower(base), strings.ToLower(e.Name()))
		if d < bestDist {
			best, bestDist = e.Name(), d
		}
	}
	if best == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(path), best)
}
