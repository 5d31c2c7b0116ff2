package finder

import (
	"context"
	"testing"

	"github.com/ropsmith/ropgadget/pkg/image"
)

type fakeImage struct {
	data []byte
}

func (f *fakeImage) Arch() string { return "amd64" }
func (f *fakeImage) ExecutableSegments() []image.Segment {
	return []image.Segment{{VAddr: 0x400000, Data: f.data}}
}
func (f *fakeImage) LoadAddr() uint64 { return 0x400000 }
func (f *fakeImage) Address() uint64  { return 0x400000 }
func (f *fakeImage) ELFType() string  { return "EXEC" }
func (f *fakeImage) FileName() string { return "test-binary" }
func (f *fakeImage) Data() []byte     { return f.data }

func TestLoadGadgetsFindsPopRdiRet(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	// pop rdi; ret
	img := &fakeImage{data: []byte{0x5F, 0xC3}}
	f := New([]image.Image{img}, "all", 0)

	gadgets, err := f.LoadGadgets(context.Background())
	if err != nil {
		t.Fatalf("LoadGadgets: %v", err)
	}

	var found bool
	for _, g := range gadgets {
		if g.InsnKey() == "pop rdi; ret" {
			found = true
			if g.SPDelta != 16 {
				t.Fatalf("expected sp_delta 16, got %d", g.SPDelta)
			}
		}
	}
	if !found {
		t.Fatalf("expected a classified pop rdi; ret gadget, got %+v", gadgets)
	}
}

func TestLoadGadgetsSecondCallHitsCache(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	img := &fakeImage{data: []byte{0x5F, 0xC3}}
	f := New([]image.Image{img}, "all", 0)

	first, err := f.LoadGadgets(context.Background())
	if err != nil {
		t.Fatalf("first LoadGadgets: %v", err)
	}
	second, err := f.LoadGadgets(context.Background())
	if err != nil {
		t.Fatalf("second LoadGadgets: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("expected equal catalogs across calls, got %d and %d", len(first), len(second))
	}
}
