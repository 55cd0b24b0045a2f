// Package preview manages preview references: host-managed handles that let
// a selected image be displayed without re-reading the original file.
//
// A reference is backed by a thumbnail file on disk. It is not reclaimed by
// the garbage collector; callers release it when the selection is replaced
// and when the owner is torn down.
package preview

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/anime-shed/weld-inspector-go/internal/picker"
)

// ErrClosed is returned by Create after Close.
var ErrClosed = errors.New("preview registry closed")

// Ref is one live preview reference.
type Ref struct {
	ID     string
	Path   string
	Width  int
	Height int
}

// URL returns a file:// URL for the thumbnail.
func (r *Ref) URL() string {
	if r == nil {
		return ""
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(r.Path)}).String()
}

// Registry creates and tracks preview references.
type Registry struct {
	dir       string
	thumbSize int

	mu     sync.Mutex
	live   map[string]*Ref
	closed bool
}

// NewRegistry stores thumbnails under dir (os.TempDir when empty).
// Thumbnails fit within thumbSize x thumbSize.
func NewRegistry(dir string, thumbSize int) (*Registry, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "weld-inspector-previews")
	}
	if thumbSize <= 0 {
		thumbSize = 256
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create preview dir: %w", err)
	}
	return &Registry{
		dir:       dir,
		thumbSize: thumbSize,
		live:      make(map[string]*Ref),
	}, nil
}

// Create derives a new preview reference from file. Undecodable content is
// stored as-is so the reference still points at the original bytes.
func (r *Registry) Create(file *picker.SelectedFile) (*Ref, error) {
	if file == nil {
		return nil, errors.New("no file to preview")
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	ref := &Ref{ID: uuid.NewString()}

	img, err := imaging.Decode(bytes.NewReader(file.Data), imaging.AutoOrientation(true))
	if err == nil {
		thumb := imaging.Fit(img, r.thumbSize, r.thumbSize, imaging.Lanczos)
		ref.Path = filepath.Join(r.dir, ref.ID+".png")
		ref.Width, ref.Height = thumb.Bounds().Dx(), thumb.Bounds().Dy()
		if err := imaging.Save(thumb, ref.Path); err != nil {
			return nil, fmt.Errorf("save thumbnail: %w", err)
		}
	} else {
		ref.Path = filepath.Join(r.dir, ref.ID+filepath.Ext(file.Name))
		if err := os.WriteFile(ref.Path, file.Data, 0o600); err != nil {
			return nil, fmt.Errorf("write preview: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		os.Remove(ref.Path)
		return nil, ErrClosed
	}
	r.live[ref.ID] = ref
	return ref, nil
}

// Release frees ref. Releasing nil or an already released ref is a no-op.
func (r *Registry) Release(ref *Ref) error {
	if ref == nil {
		return nil
	}

	r.mu.Lock()
	_, ok := r.live[ref.ID]
	delete(r.live, ref.ID)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := os.Remove(ref.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release preview %s: %w", ref.ID, err)
	}
	return nil
}

// Live returns the number of unreleased references.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Close releases every outstanding reference. Further Create calls fail.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	refs := make([]*Ref, 0, len(r.live))
	for _, ref := range r.live {
		refs = append(refs, ref)
	}
	r.mu.Unlock()

	var errs []error
	for _, ref := range refs {
		if err := r.Release(ref); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
