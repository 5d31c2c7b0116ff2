// Package finder wires the Scanner, cache, Classifier, and Catalog
// together behind the single entry point spec.md §6 calls
// Finder(images, filter, depth).load_gadgets(). Segment scanning runs one
// goroutine per segment, and gadget classification runs on a bounded
// worker pool draining a job channel — each gadget's symbolic execution is
// independent, and Dedup runs sequentially afterward (spec.md §5).
package finder

import (
	"context"
	"runtime"
	"sync"

	"github.com/ropsmith/ropgadget/pkg/arch"
	"github.com/ropsmith/ropgadget/pkg/cache"
	"github.com/ropsmith/ropgadget/pkg/classify"
	"github.com/ropsmith/ropgadget/pkg/disasm"
	"github.com/ropsmith/ropgadget/pkg/gadget"
	"github.com/ropsmith/ropgadget/pkg/image"
	"github.com/ropsmith/ropgadget/pkg/scan"
)

// Finder is spec.md §4's top-level entry point over one or more images —
// a restoration of the original's multi-image loading (SPEC_FULL.md §3),
// which the distilled spec otherwise leaves implicit.
type Finder struct {
	Images []image.Image
	Filter string
	Depth  int

	// Progress, if set, is called after each image finishes scanning —
	// the teacher's bare fmt.Printf progress style, generalized to a
	// caller-supplied hook instead of a hardcoded writer.
	Progress func(img image.Image, found int)
}

// New constructs a Finder with spec.md §4.1's default depth when depth<=0.
func New(images []image.Image, filter string, depth int) *Finder {
	if depth <= 0 {
		depth = scan.DefaultDepth
	}
	return &Finder{Images: images, Filter: filter, Depth: depth}
}

// LoadGadgets runs the full pipeline over every image and returns the
// deduplicated, classified catalog.
func (f *Finder) LoadGadgets(ctx context.Context) ([]gadget.Gadget, error) {
	catalog := gadget.NewCatalog()
	for _, img := range f.Images {
		tag, err := arch.FromImageString(img.Arch())
		if err != nil {
			return nil, err
		}
		raw, err := f.rawGadgets(img, tag)
		if err != nil {
			return nil, err
		}
		raw = scan.FilterBigBinary(tag, len(img.Data()), raw)
		f.classifyInto(ctx, tag, raw, catalog)
		if f.Progress != nil {
			f.Progress(img, catalog.Len())
		}
	}
	return catalog.Gadgets(), nil
}

// rawGadgets loads an image's candidate gadgets from the cache if
// present, otherwise scans every executable segment in parallel and
// populates the cache for next time (spec.md §4.8).
func (f *Finder) rawGadgets(img image.Image, tag arch.Tag) ([]gadget.Gadget, error) {
	path, err := cache.PathFor(img.Data())
	if err != nil {
		return nil, err
	}
	if cache.Exists(path) {
		entries, err := cache.Load(path, img.LoadAddr(), img.Address())
		if err == nil {
			return entriesToGadgets(tag, entries), nil
		}
		// CacheCorrupted: fall through and re-scan (spec.md §7).
	}

	raw := f.scanSegments(img, tag)
	_ = cache.Save(path, img.LoadAddr(), img.Address(), raw)
	return raw, nil
}

func entriesToGadgets(tag arch.Tag, entries []cache.Entry) []gadget.Gadget {
	out := make([]gadget.Gadget, 0, len(entries))
	for _, e := range entries {
		insns, err := disasm.DecodeAll(tag, e.Bytes, e.Address)
		if err != nil {
			continue
		}
		mnems := make([]string, len(insns))
		for i, in := range insns {
			mnems[i] = in.Mnemonic
		}
		out = append(out, gadget.Gadget{Address: e.Address, Bytes: e.Bytes, Insns: mnems})
	}
	return out
}

func (f *Finder) scanSegments(img image.Image, tag arch.Tag) []gadget.Gadget {
	relocBase := uint64(0)
	if image.IsPositionIndependent(img) {
		relocBase = img.Address()
	}

	segments := img.ExecutableSegments()
	results := make([][]gadget.Gadget, len(segments))

	var wg sync.WaitGroup
	for i, seg := range segments {
		wg.Add(1)
		go func(i int, seg image.Segment) {
			defer wg.Done()
			results[i] = scan.Scan(tag, seg.Data, seg.VAddr+relocBase, f.Filter, f.Depth)
		}(i, seg)
	}
	wg.Wait()

	var out []gadget.Gadget
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// classifyInto runs the Classifier over raw gadgets using a bounded
// worker pool — one job per gadget index — then adds the accepted gadgets
// to catalog sequentially in raw's order, so first-seen wins
// deterministically.
func (f *Finder) classifyInto(ctx context.Context, tag arch.Tag, raw []gadget.Gadget, catalog *gadget.Catalog) {
	workers := runtime.NumCPU()
	if workers > len(raw) {
		workers = len(raw)
	}
	if workers < 1 {
		return
	}

	jobs := make(chan int)
	accepted := make([]*gadget.Gadget, len(raw))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				classified, err := classify.Classify(raw[i], tag)
				if err != nil {
					continue
				}
				accepted[i] = &classified
			}
		}()
	}
	for i := range raw {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, g := range accepted {
		if g != nil {
			catalog.Add(*g)
		}
	}
}
