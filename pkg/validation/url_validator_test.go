package validation

import (
	"errors"
	"testing"

	apperrors "github.com/anime-shed/weld-inspector-go/internal/errors"
)

func TestNewURLValidator(t *testing.T) {
	validator := NewURLValidator()
	if validator == nil {
		t.Fatal("Expected non-nil URL validator")
	}

	expectedSchemes := []string{"http", "https"}
	if len(validator.allowedSchemes) != len(expectedSchemes) {
		t.Errorf("Expected %d schemes, got %d", len(expectedSchemes), len(validator.allowedSchemes))
	}
}

func TestValidateServiceURL_ValidURLs(t *testing.T) {
	validator := NewURLValidator()

	validURLs := []string{
		"http://localhost:8080",
		"https://inspector.example.com",
		"https://example.com/api/v1",
		"http://192.168.1.1:5000/",
	}

	for _, u := range validURLs {
		if err := validator.ValidateServiceURL(u); err != nil {
			t.Errorf("Expected valid URL %s to pass validation, got error: %v", u, err)
		}
	}
}

func TestValidateServiceURL_Rejections(t *testing.T) {
	validator := NewURLValidator()

	tests := []struct {
		name    string
		url     string
		message string
	}{
		{"empty", "", "URL cannot be empty"},
		{"whitespace", " \t\n", "URL cannot be empty"},
		{"ftp scheme", "ftp://example.com", "URL scheme not allowed"},
		{"file scheme", "file:///tmp/service", "URL scheme not allowed"},
		{"no host", "http://", "URL must have a valid host"},
		{"no host with path", "http:///path", "URL must have a valid host"},
		{"query", "http://example.com?x=1", "base URL must not carry a query or fragment"},
		{"fragment", "http://example.com/#top", "base URL must not carry a query or fragment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateServiceURL(tt.url)
			if err == nil {
				t.Fatalf("Expected %q to fail validation", tt.url)
			}

			var appErr *apperrors.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("Expected AppError, got: %T", err)
			}
			if appErr.Type != apperrors.ErrorTypeValidation {
				t.Errorf("Expected validation error, got %s", appErr.Type)
			}
			if appErr.Message != tt.message {
				t.Errorf("Expected %q, got %q", tt.message, appErr.Message)
			}
		})
	}
}

func TestValidateServiceURL_RestrictedHosts(t *testing.T) {
	validator := NewURLValidatorWithOptions([]string{"https"}, []string{"inspector.example.com"})

	if err := validator.ValidateServiceURL("https://inspector.example.com:8443"); err != nil {
		t.Errorf("Expected allowed host to pass, got %v", err)
	}
	if err := validator.ValidateServiceURL("https://other.example.com"); err == nil {
		t.Error("Expected disallowed host to fail")
	}
	if err := validator.ValidateServiceURL("http://inspector.example.com"); err == nil {
		t.Error("Expected http scheme to fail when only https is allowed")
	}
}

func TestJoinEndpoint(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"http://localhost:5000", "/upload/image", "http://localhost:5000/upload/image"},
		{"http://localhost:5000/", "/upload/image", "http://localhost:5000/upload/image"},
		{"https://svc.example.com/api//", "upload/image", "https://svc.example.com/api/upload/image"},
	}

	for _, tt := range tests {
		if got := JoinEndpoint(tt.base, tt.path); got != tt.want {
			t.Errorf("JoinEndpoint(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}
