package solve

import (
	"context"
	"testing"

	"github.com/ropsmith/ropgadget/pkg/arch"
	"github.com/ropsmith/ropgadget/pkg/gadget"
	"github.com/ropsmith/ropgadget/pkg/smt"
)

func TestVerifyPathPopMovChain(t *testing.T) {
	chain := gadget.Chain{
		{Address: 0x1000, Insns: []string{"pop ebx", "ret"}, Bytes: []byte{0x5B, 0xC3}},
		{Address: 0x2000, Insns: []string{"mov eax, ebx", "ret"}, Bytes: []byte{0x89, 0xD8, 0xC3}},
	}
	result := VerifyPath(context.Background(), arch.X86, chain, []smt.Condition{
		{Reg: "eax", Target: 0xdeadbeef},
	})
	if !result.Found {
		t.Fatalf("expected a satisfying assignment")
	}
	if result.SPDelta != 12 {
		t.Fatalf("expected sp_delta 12, got %d", result.SPDelta)
	}
	want := map[int64]byte{0: 0xef, 1: 0xbe, 2: 0xad, 3: 0xde}
	if len(result.StackImage) != len(want) {
		t.Fatalf("expected %d stack bytes, got %d: %+v", len(want), len(result.StackImage), result.StackImage)
	}
	for _, b := range result.StackImage {
		if want[b.Offset] != b.Value {
			t.Fatalf("offset %d: expected %#x, got %#x", b.Offset, want[b.Offset], b.Value)
		}
	}
}

func TestVerifyPathUnsatisfiable(t *testing.T) {
	chain := gadget.Chain{
		{Address: 0x1000, Insns: []string{"ret"}, Bytes: []byte{0xC3}},
	}
	result := VerifyPath(context.Background(), arch.X64, chain, []smt.Condition{
		{Reg: "rax", Target: 1},
	})
	if result.Found {
		t.Fatalf("rax is never bound by a bare ret, expected no result")
	}
}
