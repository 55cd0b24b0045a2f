package preview

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/anime-shed/weld-inspector-go/internal/picker"
)

func testImage(t *testing.T, width, height int) *picker.SelectedFile {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{200, 100, 50, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return picker.FromBytes("weld.png", buf.Bytes())
}

func TestCreate_WritesThumbnail(t *testing.T) {
	reg, err := NewRegistry(t.TempDir(), 64)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	ref, err := reg.Create(testImage(t, 400, 200))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if ref.Width != 64 || ref.Height != 32 {
		t.Errorf("Expected 64x32 thumbnail, got %dx%d", ref.Width, ref.Height)
	}
	if _, err := os.Stat(ref.Path); err != nil {
		t.Errorf("Expected thumbnail on disk: %v", err)
	}
	if !strings.HasPrefix(ref.URL(), "file://") {
		t.Errorf("Expected file URL, got %q", ref.URL())
	}
	if reg.Live() != 1 {
		t.Errorf("Expected 1 live reference, got %d", reg.Live())
	}
}

func TestCreate_UndecodableFallsBackToRawBytes(t *testing.T) {
	reg, err := NewRegistry(t.TempDir(), 64)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	file := &picker.SelectedFile{Name: "odd.heic", Data: []byte("not decodable"), MIME: "image/heic"}
	ref, err := reg.Create(file)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := os.ReadFile(ref.Path)
	if err != nil {
		t.Fatalf("read preview: %v", err)
	}
	if string(got) != "not decodable" {
		t.Errorf("Expected raw bytes to be stored, got %q", got)
	}
	if ref.Width != 0 || ref.Height != 0 {
		t.Errorf("Expected unknown dimensions, got %dx%d", ref.Width, ref.Height)
	}
}

func TestRelease_IsIdempotent(t *testing.T) {
	reg, err := NewRegistry(t.TempDir(), 32)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	ref, err := reg.Create(testImage(t, 10, 10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := reg.Release(ref); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := reg.Release(ref); err != nil {
		t.Errorf("Expected second release to be a no-op, got %v", err)
	}
	if err := reg.Release(nil); err != nil {
		t.Errorf("Expected nil release to be a no-op, got %v", err)
	}
	if _, err := os.Stat(ref.Path); !os.IsNotExist(err) {
		t.Errorf("Expected thumbnail removed, stat err = %v", err)
	}
	if reg.Live() != 0 {
		t.Errorf("Expected 0 live references, got %d", reg.Live())
	}
}

func TestClose_ReleasesEverything(t *testing.T) {
	reg, err := NewRegistry(t.TempDir(), 32)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	var paths []string
	for i := 0; i < 3; i++ {
		ref, err := reg.Create(testImage(t, 10, 10))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		paths = append(paths, ref.Path)
	}

	if err := reg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if reg.Live() != 0 {
		t.Errorf("Expected 0 live references after Close, got %d", reg.Live())
	}
	for _, p := range paths {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("Expected %s removed", p)
		}
	}

	if _, err := reg.Create(testImage(t, 2, 2)); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
}

// withOrientation inserts a minimal EXIF APP1 segment carrying the given
// orientation tag right after the JPEG SOI marker.
func withOrientation(jpg []byte, orientation byte) []byte {
	exif := []byte("Exif\x00\x00")
	exif = append(exif, 'M', 'M', 0x00, 0x2a, 0x00, 0x00, 0x00, 0x08) // big-endian TIFF header
	exif = append(exif, 0x00, 0x01)                                     // one IFD entry
	exif = append(exif, 0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x00, orientation, 0x00, 0x00)
	exif = append(exif, 0x00, 0x00, 0x00, 0x00) // no next IFD

	segLen := len(exif) + 2
	out := append([]byte{}, jpg[:2]...)
	out = append(out, 0xff, 0xe1, byte(segLen>>8), byte(segLen))
	out = append(out, exif...)
	return append(out, jpg[2:]...)
}

func TestCreate_AppliesExifOrientation(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for i := range img.Pix {
		img.Pix[i] = 180
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	tests := []struct {
		name          string
		orientation   byte
		width, height int
	}{
		{"upright", 1, 40, 20},
		{"rotated 90", 6, 20, 40},
	}

	reg, err := NewRegistry(t.TempDir(), 64)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	defer reg.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := picker.FromBytes("phone.jpg", withOrientation(buf.Bytes(), tt.orientation))
			ref, err := reg.Create(file)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if ref.Width != tt.width || ref.Height != tt.height {
				t.Errorf("Expected %dx%d preview, got %dx%d", tt.width, tt.height, ref.Width, ref.Height)
			}
		})
	}
}
