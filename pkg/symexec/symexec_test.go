package symexec

import (
	"testing"

	"github.com/ropsmith/ropgadget/pkg/arch"
)

func TestExecutePopRdiRet(t *testing.T) {
	// pop rdi; ret
	m, err := Execute(arch.X64, []byte{0x5F, 0xC3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rdi, ok := m.Regs["rdi"]
	if !ok || !rdi.IsMemoryLoad() {
		t.Fatalf("expected rdi bound to a memory load, got %+v", rdi)
	}
	base, off, ok := DisplacementOf(rdi)
	if !ok || base != "rsp" || off != 0 {
		t.Fatalf("expected rdi = Load(rsp+0), got base=%q off=%d ok=%v", base, off, ok)
	}

	rip := m.Regs["rip"]
	if !rip.IsMemoryLoad() {
		t.Fatalf("expected rip bound to a memory load, got %+v", rip)
	}
	ripBase, ripOff, _ := DisplacementOf(rip)
	if ripBase != "rsp" || ripOff != 8 {
		t.Fatalf("expected rip = Load(rsp+8), got base=%q off=%d", ripBase, ripOff)
	}

	rsp := m.Regs["rsp"]
	_, spOff, _ := DisplacementOf(rsp)
	if spOff != 16 {
		t.Fatalf("expected rsp delta 16, got %d", spOff)
	}
	if len(m.Stores) != 0 {
		t.Fatalf("expected no stores, got %+v", m.Stores)
	}
}

func TestExecuteBareRet(t *testing.T) {
	m, err := Execute(arch.X64, []byte{0xC3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rip := m.Regs["rip"]
	base, off, ok := DisplacementOf(rip)
	if !ok || base != "rsp" || off != 0 {
		t.Fatalf("expected rip = Load(rsp+0), got base=%q off=%d", base, off)
	}
	_, spOff, _ := DisplacementOf(m.Regs["rsp"])
	if spOff != 8 {
		t.Fatalf("expected rsp delta 8, got %d", spOff)
	}
}

func TestExecuteARMPopPC(t *testing.T) {
	m, err := Execute(arch.ARM, []byte{0x10, 0x80, 0xBD, 0xE8})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r4 := m.Regs["r4"]
	base, off, ok := DisplacementOf(r4)
	if !ok || base != "sp" || off != 0 {
		t.Fatalf("expected r4 = Load(sp+0), got base=%q off=%d", base, off)
	}
	pc := m.Regs["pc"]
	pcBase, pcOff, _ := DisplacementOf(pc)
	if pcBase != "sp" || pcOff != 4 {
		t.Fatalf("expected pc = Load(sp+4), got base=%q off=%d", pcBase, pcOff)
	}
	_, spOff, _ := DisplacementOf(m.Regs["sp"])
	if spOff != 8 {
		t.Fatalf("expected sp delta 8, got %d", spOff)
	}
}
