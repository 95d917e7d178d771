package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSplitSource(t *testing.T) {
	tests := []struct {
		name   string
		source string
		stem   string
		ext    string
	}{
		{"local path", "photos/holiday.jpg", "holiday", "jpg"},
		{"uppercase extension", "IMG_0042.JPG", "IMG_0042", "jpg"},
		{"no extension", "photos/holiday", "holiday", ""},
		{"url", "https://example.com/a/b/face.png", "face", "png"},
		{"url with query", "https://example.com/face.png?width=100&crop=1", "face", "png"},
		{"url without path", "https://example.com", "image", ""},
		{"invalid characters", "we?ird*name.png", "we_ird_name", "png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stem, ext := SplitSource(tt.source)
			if stem != tt.stem || ext != tt.ext {
				t.Errorf("Expected (%q, %q), got (%q, %q)", tt.stem, tt.ext, stem, ext)
			}
		})
	}
}

func TestGetFileExtension(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"photo.jpg", "jpg"},
		{"photo.JPEG", "jpeg"},
		{"archive.tar.gz", "gz"},
		{"noext", ""},
	}

	for _, tt := range tests {
		if got := GetFileExtension(tt.filename); got != tt.want {
			t.Errorf("GetFileExtension(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestIsImageFile(t *testing.T) {
	if !IsImageFile("photo.jpg") {
		t.Error("Expected photo.jpg to be an image file")
	}
	if !IsImageFile("photo.webp") {
		t.Error("Expected photo.webp to be an image file")
	}
	if IsImageFile("document.pdf") {
		t.Error("Expected document.pdf not to be an image file")
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if !DirExists(dir) {
		t.Error("Expected directory to exist")
	}

	// Idempotent on existing directories
	if err := EnsureDir(dir); err != nil {
		t.Errorf("EnsureDir failed on existing directory: %v", err)
	}
}

func TestEnsureDirFileCollision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if err := EnsureDir(path); err == nil {
		t.Error("Expected an error when the path exists as a file")
	}
}

func TestFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")

	if FileExists(path) {
		t.Error("Expected missing file to not exist")
	}

	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if !FileExists(path) {
		t.Error("Expected file to exist")
	}
	if FileExists(filepath.Dir(path)) {
		t.Error("Expected directory to not count as a file")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"normal_name", "normal_name"},
		{"with/slash", "with_slash"},
		{"many:bad*chars?", "many_bad_chars_"},
		{" padded. ", "padded"},
	}

	for _, tt := range tests {
		if got := SanitizeFilename(tt.input); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
	}

	for _, tt := range tests {
		if got := FormatFileSize(tt.size); got != tt.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}
