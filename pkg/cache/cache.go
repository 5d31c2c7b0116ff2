// Package cache implements the on-disk gadget cache (spec.md §4.8): one
// gob-encoded file per image, named by the SHA-256 of the image's raw
// bytes, storing addresses relative to the image's static load address
// so the same file works across different ASLR placements.
package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ropsmith/ropgadget/pkg/gadget"
)

// Entry is one cached candidate gadget: just enough to reconstruct a raw
// Gadget without its Insns, which are redisassembled on load (spec.md
// §4.8: "Disassembly and classification are rerun on load").
type Entry struct {
	Address uint64
	Bytes   []byte
}

type fileFormat struct {
	Entries []Entry
}

// Dir returns the well-known cache directory (spec.md §6:
// <tmpdir>/binjitsu-rop-cache/), creating it if needed.
func Dir() (string, error) {
	dir := filepath.Join(os.TempDir(), "binjitsu-rop-cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", gadget.ErrCacheCorrupted, err)
	}
	return dir, nil
}

// PathFor returns the cache file path for an image's raw bytes.
func PathFor(imageBytes []byte) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(imageBytes)
	return filepath.Join(dir, hex.EncodeToString(sum[:])), nil
}

// Save writes gadgets to path atomically (temp file + rename), rebasing
// each address relative to the image's static load address: the stored
// value is address - runtimeBase + loadAddr (spec.md §4.8).
func Save(path string, loadAddr, runtimeBase uint64, gadgets []gadget.Gadget) error {
	entries := make([]Entry, len(gadgets))
	for i, g := range gadgets {
		entries[i] = Entry{
			Address: rebase(g.Address, runtimeBase, loadAddr),
			Bytes:   g.Bytes,
		}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "cache-*.tmp")
	if err != nil {
		return fmt.Errorf("ropgadget: cannot create cache temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(fileFormat{Entries: entries}); err != nil {
		tmp.Close()
		return fmt.Errorf("ropgadget: cannot encode cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ropgadget: cannot close cache temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads path and rebases addresses back to the current runtime
// mapping: address - loadAddr + runtimeBase. Any decode failure is
// reported as ErrCacheCorrupted — a corrupted cache is treated as a
// miss, never a fatal error (spec.md §7, §4.8).
func Load(path string, loadAddr, runtimeBase uint64) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gadget.ErrCacheCorrupted, err)
	}
	defer f.Close()

	var ff fileFormat
	if err := gob.NewDecoder(f).Decode(&ff); err != nil {
		return nil, fmt.Errorf("%w: %v", gadget.ErrCacheCorrupted, err)
	}
	for i := range ff.Entries {
		ff.Entries[i].Address = rebase(ff.Entries[i].Address, loadAddr, runtimeBase)
	}
	return ff.Entries, nil
}

func rebase(addr, from, to uint64) uint64 {
	return addr - from + to
}

// Exists reports whether a cache file is already present for path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
