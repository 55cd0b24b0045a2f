package main

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weld.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 16, 16))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func writeConfig(t *testing.T, apiURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inspector.toml")
	body := "[api]\nurl = \"" + apiURL + "\"\n\n[preview]\ndir = \"" + filepath.ToSlash(t.TempDir()) + "\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestPredict(t *testing.T) {
	payload := `{"status":"Accepted","details":"0.97","model":"weld-v2"}`

	tests := []struct {
		name        string
		status      int
		body        string
		json        bool
		expectErr   bool
		expectOut   string
		expectStdEr string
	}{
		{name: "rendered", status: http.StatusOK, body: payload, expectOut: "Confidence: 0.97"},
		{name: "raw json", status: http.StatusOK, body: payload, json: true, expectOut: payload},
		{name: "service error", status: http.StatusInternalServerError, body: "boom", expectErr: true, expectStdEr: "Error processing file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			args := []string{"--config", writeConfig(t, server.URL), "predict", writeImage(t)}
			if tt.json {
				args = append(args, "--json")
			}
			stdout, stderr, err := execute(t, args...)

			if tt.expectErr {
				if err == nil {
					t.Fatal("Expected an error exit")
				}
				if !strings.Contains(stderr, tt.expectStdEr) {
					t.Errorf("Expected %q on stderr, got %q", tt.expectStdEr, stderr)
				}
				if strings.Contains(stderr, "boom") {
					t.Error("Service body must not be shown to the user")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v (stderr %s)", err, stderr)
			}
			if !strings.Contains(stdout, tt.expectOut) {
				t.Errorf("Expected %q in output, got %q", tt.expectOut, stdout)
			}
		})
	}
}

func TestPredict_NotAnImage(t *testing.T) {
	txt := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(txt, []byte("plain text"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, stderr, err := execute(t, "--config", writeConfig(t, "http://127.0.0.1:1"), "predict", txt)
	if err == nil {
		t.Fatal("Expected an error for a non-image file")
	}
	if !strings.Contains(stderr, "not an image") {
		t.Errorf("Expected picker error on stderr, got %q", stderr)
	}
}

func TestPredict_BadConfig(t *testing.T) {
	_, _, err := execute(t, "--config", writeConfig(t, "ftp://example.com"), "predict", writeImage(t))
	if err == nil {
		t.Fatal("Expected invalid api.url to fail")
	}
}

func TestPredict_RequiresOneArg(t *testing.T) {
	if _, _, err := execute(t, "predict"); err == nil {
		t.Fatal("Expected an argument error")
	}
}
