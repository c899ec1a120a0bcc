// Package media validates and stores uploaded post media and profile images.
package media

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrExtensionNotAllowed = errors.New("file extension not allowed")

var (
	PostExtensions  = map[string]bool{"png": true, "jpg": true, "jpeg": true, "gif": true, "mp4": true}
	ImageExtensions = map[string]bool{"png": true, "jpg": true, "jpeg": true, "gif": true}
)

// Storage writes uploads below Dir and serves them under URLPrefix.
type Storage struct {
	Dir       string
	URLPrefix string
}

func NewStorage(dir, urlPrefix string) *Storage {
	return &Storage{Dir: dir, URLPrefix: strings.TrimSuffix(urlPrefix, "/")}
}

// Extension returns the lower-cased extension of filename without the dot,
// or ErrExtensionNotAllowed when it is not in allowed.
func Extension(filename string, allowed map[string]bool) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" || !allowed[ext] {
		return "", ErrExtensionNotAllowed
	}
	return ext, nil
}

// FileName derives <owner>_<random>.<ext>.
func FileName(owner, ext string) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("media: random suffix: %w", err)
	}
	return fmt.Sprintf("%s_%s.%s", owner, hex.EncodeToString(b), ext), nil
}

// Save copies src into the storage directory and returns the public URL.
func (s *Storage) Save(owner, originalName string, allowed map[string]bool, src io.Reader) (string, error) {
	ext, err := Extension(originalName, allowed)
	if err != nil {
		return "", err
	}
	name, err := FileName(owner, ext)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("media: create upload dir: %w", err)
	}

	dst, err := os.OpenFile(filepath.Join(s.Dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("media: create file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("media: write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("media: close file: %w", err)
	}

	return path.Join(s.URLPrefix, name), nil
}
