package integrity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrNotFound indicates the package's license file does not exist.
var ErrNotFound = errors.New("license file not found")

// Source provides content hashes for package license files. It is the
// collaborator used to validate clarification integrity tokens.
type Source interface {
	// LicenseHash returns the content hash of the license file at path,
	// in "sha256:<hex>" form. Returns ErrNotFound if the file is absent.
	LicenseHash(ctx context.Context, pkgName, path string) (string, error)
}

// LocalSource implements Source over the local filesystem, with paths
// resolved relative to a root directory.
type LocalSource struct {
	rootPath string
}

// NewLocalSource creates a LocalSource rooted at the given directory.
// An empty root resolves paths as given.
func NewLocalSource(rootPath string) *LocalSource {
	return &LocalSource{rootPath: rootPath}
}

// LicenseHash hashes the license file contents.
func (s *LocalSource) LicenseHash(ctx context.Context, pkgName, path string) (string, error) {
	fullPath := path
	if s.rootPath != "" {
		fullPath = filepath.Join(s.rootPath, path)
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s for package %s", ErrNotFound, path, pkgName)
		}
		return "", fmt.Errorf("failed to open license file %s: %w", fullPath, err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("failed to hash license file %s: %w", fullPath, err)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the token form of a raw license text. Useful for
// generating clarification tokens and in tests.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// StaticSource is an in-memory Source keyed by package name. It backs
// tests and callers that already know the hashes.
type StaticSource map[string]string

// LicenseHash looks up the hash by package name.
func (s StaticSource) LicenseHash(ctx context.Context, pkgName, path string) (string, error) {
	h, ok := s[pkgName]
	if !ok {
		return "", fmt.Errorf("%w: package %s", ErrNotFound, pkgName)
	}
	return h, nil
}
