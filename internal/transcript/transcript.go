// Package transcript validates and reads transcript files before anything is
// sent to the backend.
package transcript

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxFileSize is the largest transcript file accepted.
const MaxFileSize = 5 << 20

var (
	ErrFileTooLarge    = fmt.Errorf("transcript file exceeds %d MB", MaxFileSize>>20)
	ErrUnsupportedFile = errors.New("transcript file must be a text file (.txt, .md, .json, .csv)")
	ErrNotUTF8         = errors.New("transcript file is not valid UTF-8 text")
)

var allowedExtensions = map[string]struct{}{
	"txt":  {},
	"md":   {},
	"json": {},
	"csv":  {},
}

// File is an uploaded file as yielded by the file picker.
type File struct {
	Name string
	// MIMEType is the declared content type, possibly empty.
	MIMEType string
	Size     int64
	Content  io.Reader
}

// Validate checks the declared size and type. It never reads the content.
func Validate(f File) error {
	if f.Size > MaxFileSize {
		return fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, f.Name, f.Size)
	}

	if textLike(f.MIMEType) {
		return nil
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(f.Name), "."))
	if _, ok := allowedExtensions[ext]; ok {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrUnsupportedFile, f.Name)
}

// Read validates the file and returns its text. The size limit is enforced on
// the stream as well since the declared size may be wrong.
func Read(f File) (string, error) {
	if err := Validate(f); err != nil {
		return "", err
	}
	if f.Content == nil {
		return "", fmt.Errorf("transcript file %s has no content", f.Name)
	}

	data, err := io.ReadAll(io.LimitReader(f.Content, MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("read transcript file: %w", err)
	}

	if len(data) > MaxFileSize {
		return "", fmt.Errorf("%w: %s", ErrFileTooLarge, f.Name)
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s", ErrNotUTF8, f.Name)
	}

	return string(data), nil
}

// FromPath opens a file from disk. The declared type is derived from the
// extension. The caller must close the returned file.
func FromPath(path string) (File, io.Closer, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, nil, err
	}

	stat, err := fh.Stat()
	if err != nil {
		fh.Close()
		return File{}, nil, err
	}

	return File{
		Name:     filepath.Base(path),
		MIMEType: mime.TypeByExtension(filepath.Ext(path)),
		Size:     stat.Size(),
		Content:  fh,
	}, fh, nil
}

func textLike(mimeType string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(mimeType))
	}
	return strings.HasPrefix(mediaType, "text/")
}
