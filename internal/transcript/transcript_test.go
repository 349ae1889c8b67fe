package transcript

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		file   File
		expect error
	}{
		{name: "plain text", file: File{Name: "notes.txt", MIMEType: "text/plain", Size: 10}},
		{name: "text mime with odd extension", file: File{Name: "notes.log", MIMEType: "text/x-log; charset=utf-8", Size: 10}},
		{name: "extension without mime", file: File{Name: "call.MD", Size: 10}},
		{name: "json extension with binary mime", file: File{Name: "dump.json", MIMEType: "application/octet-stream", Size: 10}},
		{name: "csv", file: File{Name: "rows.csv", MIMEType: "application/vnd.ms-excel", Size: 10}},
		{name: "pdf", file: File{Name: "call.pdf", MIMEType: "application/pdf", Size: 10}, expect: ErrUnsupportedFile},
		{name: "no extension", file: File{Name: "transcript", Size: 10}, expect: ErrUnsupportedFile},
		{name: "too large", file: File{Name: "big.txt", MIMEType: "text/plain", Size: 6 << 20}, expect: ErrFileTooLarge},
		{name: "exactly the limit", file: File{Name: "edge.txt", Size: MaxFileSize}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.file)
			if tt.expect == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.expect != nil && !errors.Is(err, tt.expect) {
				t.Fatalf("expected %v, got %v", tt.expect, err)
			}
		})
	}
}

type countingReader struct {
	reads int
}

func (r *countingReader) Read(p []byte) (int, error) {
	r.reads++
	return 0, errors.New("must not be read")
}

func TestReadRejectsBeforeReading(t *testing.T) {
	content := &countingReader{}
	_, err := Read(File{Name: "big.txt", Size: 6 << 20, Content: content})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	if content.reads != 0 {
		t.Fatalf("content was read %d times before validation failed", content.reads)
	}
}

func TestReadEnforcesLimitOnStream(t *testing.T) {
	body := strings.NewReader(strings.Repeat("a", MaxFileSize+10))
	_, err := Read(File{Name: "liar.txt", Size: 10, Content: body})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestReadRejectsBinary(t *testing.T) {
	_, err := Read(File{Name: "bin.txt", Size: 2, Content: strings.NewReader("\xff\xfe")})
	if !errors.Is(err, ErrNotUTF8) {
		t.Fatalf("expected ErrNotUTF8, got %v", err)
	}
}

func TestFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interview.md")
	if err := os.WriteFile(path, []byte("# Interview\nQ: hi"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, closer, err := FromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closer.Close()

	if f.Name != "interview.md" || f.Size != 17 {
		t.Fatalf("unexpected file: %+v", f)
	}

	text, err := Read(f)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(text, "# Interview") {
		t.Fatalf("unexpected text %q", text)
	}
}
