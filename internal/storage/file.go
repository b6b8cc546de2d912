package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

type fileStore struct {
	dir string
}

// NewFile returns a Store that keeps one JSON blob per domain under dir.
// The directory is created on first use if it does not exist.
func NewFile(dir string) (Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage: empty directory")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("storage: create dir %s: %w", dir, err)
	}
	return &fileStore{dir: dir}, nil
}

func (s *fileStore) path(domain string) string {
	// Domain identifiers are internal constants, but keep path traversal out.
	safe := strings.ReplaceAll(domain, string(os.PathSeparator), "_")
	return filepath.Join(s.dir, safe+".json")
}

func (s *fileStore) Get(_ context.Context, domain string) ([]byte, bool, error) {
	b, err := os.ReadFile(s.path(domain))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: read %s: %w", domain, err)
	}
	return b, true, nil
}

func (s *fileStore) Set(_ context.Context, domain string, blob []byte) error {
	// Write-then-rename so a crash mid-write never leaves a truncated record.
	tmp := s.path(domain) + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("storage: write %s: %w", domain, err)
	}
	if err := os.Rename(tmp, s.path(domain)); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			log.Warn().Err(rmErr).Str("domain", domain).Msg("Failed to clean up temp record")
		}
		return fmt.Errorf("storage: commit %s: %w", domain, err)
	}
	return nil
}

func (s *fileStore) Remove(_ context.Context, domain string) error {
	err := os.Remove(s.path(domain))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove %s: %w", domain, err)
	}
	return nil
}
