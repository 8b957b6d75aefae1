package storage

import (
	"errors"
	"testing"
)

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name        string
		size        int64
		contentType string
		wantErr     error
	}{
		{"plain text", 1024, "text/plain", nil},
		{"text with charset", 1024, "text/plain; charset=utf-8", nil},
		{"pdf", 5 << 20, "application/pdf", nil},
		{"docx", 1 << 20, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", nil},
		{"at the cap", MaxUploadBytes, "text/plain", nil},
		{"over the cap", MaxUploadBytes + 1, "text/plain", ErrTooLarge},
		{"image", 1024, "image/png", ErrUnsupportedType},
		{"html", 1024, "text/html", ErrUnsupportedType},
		{"empty type", 1024, "", ErrUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.size, tt.contentType)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateUpload(%d, %q) = %v, want %v", tt.size, tt.contentType, err, tt.wantErr)
			}
		})
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"My First Sample", "my-first-sample"},
		{"  Notes_2024  ", "notes-2024"},
		{"???", "sample"},
		{"", "sample"},
	}
	for _, tt := range tests {
		if got := slug(tt.in); got != tt.want {
			t.Errorf("slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
