// Package imagecache caches downloaded image bytes and their
// vision-language description on disk, so the same sticker or photo
// isn't re-downloaded or re-described on every occurrence in a chat.
// File-per-key layout under a base directory follows the style of the
// upstream agent's workspace file tools (read/write scoped to a fixed
// root directory).
package imagecache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joebot/nekobot/internal/vlm"
)

// Cache stores raw image bytes under raw/<fileid> and description
// records under <md5>.json.
type Cache struct {
	dir string
}

// New creates a cache rooted at dir, creating it and its raw/
// subdirectory if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Join(dir, "raw"), 0o755); err != nil {
		return nil, fmt.Errorf("create image cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// LoadRaw returns previously cached bytes for fileID, if present.
func (c *Cache) LoadRaw(fileID string) ([]byte, bool) {
	if fileID == "" {
		return nil, false
	}
	data, err := os.ReadFile(c.rawPath(fileID))
	if err != nil {
		return nil, false
	}
	return data, true
}

// StoreRaw persists bytes under fileID for future lookups.
func (c *Cache) StoreRaw(fileID string, data []byte) error {
	if fileID == "" {
		return nil
	}
	return os.WriteFile(c.rawPath(fileID), data, 0o644)
}

func (c *Cache) rawPath(fileID string) string {
	return filepath.Join(c.dir, "raw", fileID)
}

// LoadDescription returns a previously cached description keyed by the
// MD5 of the image bytes, if present.
func (c *Cache) LoadDescription(data []byte) (vlm.Description, bool) {
	raw, err := os.ReadFile(c.descPath(data))
	if err != nil {
		return vlm.Description{}, false
	}
	var desc vlm.Description
	if err := json.Unmarshal(raw, &desc); err != nil {
		return vlm.Description{}, false
	}
	return desc, true
}

// StoreDescription persists desc keyed by the MD5 of the image bytes
// that produced it.
func (c *Cache) StoreDescription(data []byte, desc vlm.Description) error {
	raw, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("marshal description: %w", err)
	}
	return os.WriteFile(c.descPath(data), raw, 0o644)
}

func (c *Cache) descPath(data []byte) string {
	sum := md5.Sum(data)
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}
