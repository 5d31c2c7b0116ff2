package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ropsmith/ropgadget/pkg/gadget"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cachefile")
	loadAddr := uint64(0x400000)
	runtimeBase := uint64(0x7f0000000000)

	gadgets := []gadget.Gadget{
		{Address: runtimeBase + 0x1000, Bytes: []byte{0x5F, 0xC3}},
		{Address: runtimeBase + 0x2000, Bytes: []byte{0xC3}},
	}
	if err := Save(path, loadAddr, runtimeBase, gadgets); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !Exists(path) {
		t.Fatalf("expected cache file to exist at %s", path)
	}

	entries, err := Load(path, loadAddr, runtimeBase)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Address != runtimeBase+0x1000 || entries[1].Address != runtimeBase+0x2000 {
		t.Fatalf("addresses did not round-trip: %+v", entries)
	}
}

func TestLoadRebasesAcrossASLR(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cachefile")
	loadAddr := uint64(0x400000)
	firstBase := uint64(0x7f0000000000)
	secondBase := uint64(0x7fff11110000)

	gadgets := []gadget.Gadget{{Address: firstBase + 0x1000, Bytes: []byte{0xC3}}}
	if err := Save(path, loadAddr, firstBase, gadgets); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := Load(path, loadAddr, secondBase)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if entries[0].Address != secondBase+0x1000 {
		t.Fatalf("expected rebased address %#x, got %#x", secondBase+0x1000, entries[0].Address)
	}
}

func TestLoadCorruptedCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cachefile")
	if err := os.WriteFile(path, []byte("not a gob stream"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Load(path, 0, 0)
	if !errors.Is(err, gadget.ErrCacheCorrupted) {
		t.Fatalf("expected ErrCacheCorrupted, got %v", err)
	}
}
