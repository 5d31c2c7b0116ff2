package classify

import (
	"testing"

	"github.com/ropsmith/ropgadget/pkg/arch"
	"github.com/ropsmith/ropgadget/pkg/gadget"
)

func TestClassifyPopRdiRet(t *testing.T) {
	g := gadget.Gadget{
		Address: 0x1000,
		Insns:   []string{"pop rdi", "ret"},
		Bytes:   []byte{0x5F, 0xC3},
	}
	out, err := Classify(g, arch.X64)
	if err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
	if out.SPDelta != 16 {
		t.Fatalf("expected sp_delta 16, got %d", out.SPDelta)
	}
	effect, ok := out.Regs["rdi"]
	if !ok || effect.Kind != gadget.EffectLoad {
		t.Fatalf("expected rdi bound to a Load effect, got %+v", effect)
	}
	if effect.Load.Base != "rsp" || effect.Load.Disp != 0 {
		t.Fatalf("expected Load(rsp+0), got %+v", effect.Load)
	}
}

func TestClassifyBareRet(t *testing.T) {
	g := gadget.Gadget{Address: 0x2000, Insns: []string{"ret"}, Bytes: []byte{0xC3}}
	out, err := Classify(g, arch.X64)
	if err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
	if out.SPDelta != 8 {
		t.Fatalf("expected sp_delta 8, got %d", out.SPDelta)
	}
	if len(out.Regs) != 0 {
		t.Fatalf("expected no register effects, got %+v", out.Regs)
	}
}

func TestClassifyRejectsMemoryWrite(t *testing.T) {
	// mov [rax], rbx ; ret — writes through rax, must be rejected outright.
	g := gadget.Gadget{
		Address: 0x3000,
		Insns:   []string{"mov [rax], rbx", "ret"},
		Bytes:   []byte{0x48, 0x89, 0x18, 0xC3},
	}
	if _, err := Classify(g, arch.X64); err != gadget.ErrClassifierReject {
		t.Fatalf("expected ErrClassifierReject, got %v", err)
	}
}

func TestClassifyARMPopPC(t *testing.T) {
	g := gadget.Gadget{
		Address: 0x10000,
		Insns:   []string{"pop {r4, pc}"},
		Bytes:   []byte{0x10, 0x80, 0xBD, 0xE8},
	}
	out, err := Classify(g, arch.ARM)
	if err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
	if out.SPDelta != 8 {
		t.Fatalf("expected sp_delta 8, got %d", out.SPDelta)
	}
	effect, ok := out.Regs["r4"]
	if !ok || effect.Kind != gadget.EffectLoad || effect.Load.Base != "sp" {
		t.Fatalf("expected r4 bound to Load(sp+...), got %+v", effect)
	}
}
