package scan

import (
	"testing"

	"github.com/ropsmith/ropgadget/pkg/arch"
	"github.com/ropsmith/ropgadget/pkg/gadget"
)

func gadgetWithInsns(insns ...string) gadget.Gadget {
	return gadget.Gadget{Insns: insns}
}

func TestScanX64PopRdiRet(t *testing.T) {
	// 5F = pop rdi, C3 = ret
	data := []byte{0x5F, 0xC3}
	gadgets := Scan(arch.X64, data, 0x1000, "all", DefaultDepth)

	var found bool
	for _, g := range gadgets {
		if g.Address == 0x1000 && len(g.Insns) == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected pop rdi; ret at 0x1000, got %+v", gadgets)
	}
}

func TestScanX64BareRet(t *testing.T) {
	data := []byte{0xC3}
	gadgets := Scan(arch.X64, data, 0x2000, "ret", DefaultDepth)
	if len(gadgets) != 1 {
		t.Fatalf("expected exactly one gadget, got %d", len(gadgets))
	}
	if gadgets[0].Address != 0x2000 {
		t.Fatalf("unexpected address %x", gadgets[0].Address)
	}
}

func TestScanRejectsMultiBranch(t *testing.T) {
	// 5F C3 C3 = pop rdi; ret; ret. The window ending at the first ret
	// (pop rdi; ret, at 0x3000) is a legitimate single-branch gadget and
	// must still be emitted; only a window spanning both rets is rejected.
	data := []byte{0x5F, 0xC3, 0xC3}
	gadgets := Scan(arch.X64, data, 0x3000, "ret", DefaultDepth)

	var foundSingle bool
	for _, g := range gadgets {
		retCount := 0
		for _, insn := range g.Insns {
			if insn == "ret" {
				retCount++
			}
		}
		if retCount > 1 {
			t.Fatalf("gadget must not span two rets, got %+v", g)
		}
		if g.Address == 0x3000 && len(g.Insns) == 2 {
			foundSingle = true
		}
	}
	if !foundSingle {
		t.Fatalf("expected the legitimate pop rdi; ret at 0x3000, got %+v", gadgets)
	}
}

func TestScanARMPopPC(t *testing.T) {
	// 10 80 BD E8 = pop {r4, pc}
	data := []byte{0x10, 0x80, 0xBD, 0xE8}
	gadgets := Scan(arch.ARM, data, 0x10000, "all", DefaultDepth)
	if len(gadgets) != 1 {
		t.Fatalf("expected exactly one ARM gadget, got %d: %+v", len(gadgets), gadgets)
	}
	if gadgets[0].Address != 0x10000 {
		t.Fatalf("unexpected address %x", gadgets[0].Address)
	}
}

func TestFilterBigBinaryDropsDisallowed(t *testing.T) {
	allowed := gadgetWithInsns("pop rbx", "ret")
	disallowed := gadgetWithInsns("jmp rax")
	out := FilterBigBinary(arch.X64, BigBinaryThreshold, []gadget.Gadget{allowed, disallowed})
	if len(out) != 1 || out[0].Insns[0] != "pop rbx" {
		t.Fatalf("expected only the allow-listed gadget to survive, got %+v", out)
	}
}
