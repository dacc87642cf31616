package preferences

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrNotFound is returned by a Backend that holds no record yet.
var ErrNotFound = errors.New("preferences record not found")

// Backend stores one encoded preferences record.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// FileBackend keeps the record in a JSON file, replaced atomically on write.
type FileBackend struct {
	Path string
}

// plainOwner matches owners usable as a file name as they are.
var plainOwner = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// NewFileBackend stores the record of owner under dir. Owners that are not a
// plain file name are hashed so the record never leaves dir.
func NewFileBackend(dir, owner string) *FileBackend {
	return &FileBackend{Path: filepath.Join(dir, fileName(owner))}
}

func fileName(owner string) string {
	if plainOwner.MatchString(owner) && !strings.Contains(owner, "..") {
		return owner + ".json"
	}
	sum := sha256.Sum256([]byte(owner))
	return "id-" + hex.EncodeToString(sum[:]) + ".json"
}

func (f *FileBackend) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	return data, nil
}

func (f *FileBackend) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("replace %s: %w", f.Path, err)
	}
	return nil
}
