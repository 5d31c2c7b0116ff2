// Command ropscan is a thin CLI over the gadget-finding pipeline: load an
// ELF, scan it for ROP gadgets, and optionally solve a chain against a
// set of target register values.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ropsmith/ropgadget/pkg/arch"
	"github.com/ropsmith/ropgadget/pkg/cache"
	"github.com/ropsmith/ropgadget/pkg/classify"
	"github.com/ropsmith/ropgadget/pkg/disasm"
	"github.com/ropsmith/ropgadget/pkg/finder"
	"github.com/ropsmith/ropgadget/pkg/gadget"
	"github.com/ropsmith/ropgadget/pkg/image"
	"github.com/ropsmith/ropgadget/pkg/smt"
	"github.com/ropsmith/ropgadget/pkg/solve"
)

var log = logrus.New()

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func rootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "ropscan",
		Short: "Find, classify, and chain ROP gadgets in an ELF binary",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(scanCmd(), classifyCmd(), solveCmd(), cacheClearCmd())
	return root
}

func scanCmd() *cobra.Command {
	var filter string
	var depth int

	cmd := &cobra.Command{
		Use:   "scan <binary>",
		Short: "Scan a binary for classified ROP gadgets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := image.LoadELF(args[0], 0)
			if err != nil {
				return fmt.Errorf("loading %s: %w", args[0], err)
			}
			log.WithField("file", args[0]).Info("scanning")

			f := finder.New([]image.Image{img}, filter, depth)
			f.Progress = func(i image.Image, found int) {
				log.WithFields(logrus.Fields{"file": i.FileName(), "found": found}).Debug("scan progress")
			}

			gadgets, err := f.LoadGadgets(context.Background())
			if err != nil {
				return fmt.Errorf("scanning %s: %w", args[0], err)
			}
			printGadgets(gadgets)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "all", "terminator class to scan for (all|ret|jmp|call|int|sysenter|syscall|svc)")
	cmd.Flags().IntVar(&depth, "depth", 0, "backward window depth (0 uses the default)")
	return cmd
}

func classifyCmd() *cobra.Command {
	var archName string
	var addrHex string
	var bytesHex string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a single candidate gadget given as raw bytes",
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := arch.FromImageString(archName)
			if err != nil {
				return err
			}
			addr, err := strconv.ParseUint(strings.TrimPrefix(addrHex, "0x"), 16, 64)
			if err != nil {
				return fmt.Errorf("invalid address %q: %w", addrHex, err)
			}
			raw, err := hex.DecodeString(strings.TrimPrefix(bytesHex, "0x"))
			if err != nil {
				return fmt.Errorf("invalid bytes %q: %w", bytesHex, err)
			}

			insns, err := disasm.DecodeAll(tag, raw, addr)
			if err != nil {
				return fmt.Errorf("disassembling: %w", err)
			}
			mnemonics := make([]string, len(insns))
			for i, in := range insns {
				mnemonics[i] = in.Mnemonic
			}

			classified, err := classify.Classify(gadget.Gadget{Address: addr, Insns: mnemonics, Bytes: raw}, tag)
			if err != nil {
				fmt.Printf("rejected: %v\n", err)
				return nil
			}
			fmt.Printf("0x%x: %s (sp_delta=%d)\n", classified.Address, classified.InsnKey(), classified.SPDelta)
			for _, name := range sortedRegNames(classified.Regs) {
				fmt.Printf("  %s: %+v\n", name, classified.Regs[name])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&archName, "arch", "amd64", "architecture (i386|amd64|arm)")
	cmd.Flags().StringVar(&addrHex, "address", "0x0", "gadget address (hex)")
	cmd.Flags().StringVar(&bytesHex, "bytes", "", "candidate gadget bytes (hex)")
	cmd.MarkFlagRequired("bytes")
	return cmd
}

func sortedRegNames(regs map[string]gadget.RegEffect) []string {
	out := make([]string, 0, len(regs))
	for name := range regs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func solveCmd() *cobra.Command {
	var chainAddrs string
	var wants string
	var filter string
	var depth int

	cmd := &cobra.Command{
		Use:   "solve <binary>",
		Short: "Solve stack bytes for a chain of gadget addresses against target register values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := image.LoadELF(args[0], 0)
			if err != nil {
				return fmt.Errorf("loading %s: %w", args[0], err)
			}

			tag, err := arch.FromImageString(img.Arch())
			if err != nil {
				return err
			}

			f := finder.New([]image.Image{img}, filter, depth)
			gadgets, err := f.LoadGadgets(context.Background())
			if err != nil {
				return fmt.Errorf("scanning %s: %w", args[0], err)
			}

			chain, err := buildChain(gadgets, chainAddrs)
			if err != nil {
				return err
			}
			conditions, err := parseConditions(wants)
			if err != nil {
				return err
			}

			result := solve.VerifyPath(context.Background(), tag, chain, conditions)
			if !result.Found {
				fmt.Println("unsatisfiable")
				return nil
			}
			fmt.Printf("sp_delta = %d\n", result.SPDelta)
			for _, b := range result.StackImage {
				fmt.Printf("stack[%d] = %#02x\n", b.Offset, b.Value)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&chainAddrs, "chain", "", "comma-separated gadget addresses, in order (hex, e.g. 0x400000,0x400010)")
	cmd.Flags().StringVar(&wants, "want", "", "comma-separated reg=value target conditions (e.g. rax=0xdeadbeef)")
	cmd.Flags().StringVar(&filter, "filter", "all", "terminator class to scan for")
	cmd.Flags().IntVar(&depth, "depth", 0, "backward window depth (0 uses the default)")
	cmd.MarkFlagRequired("chain")
	cmd.MarkFlagRequired("want")
	return cmd
}

func cacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cache-clear <binary>",
		Short: "Remove the on-disk gadget cache entry for a binary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			path, err := cache.PathFor(raw)
			if err != nil {
				return err
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing cache: %w", err)
			}
			log.WithField("path", path).Info("cache entry removed")
			return nil
		},
	}
}

func printGadgets(gadgets []gadget.Gadget) {
	sort.Slice(gadgets, func(i, j int) bool { return gadgets[i].Address < gadgets[j].Address })
	for _, g := range gadgets {
		fmt.Printf("0x%x: %s (sp_delta=%d)\n", g.Address, g.InsnKey(), g.SPDelta)
	}
}

func buildChain(gadgets []gadget.Gadget, addrList string) (gadget.Chain, error) {
	byAddr := map[uint64]gadget.Gadget{}
	for _, g := range gadgets {
		byAddr[g.Address] = g
	}

	var chain gadget.Chain
	for _, tok := range strings.Split(addrList, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		addr, err := strconv.ParseUint(strings.TrimPrefix(tok, "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", tok, err)
		}
		g, ok := byAddr[addr]
		if !ok {
			return nil, fmt.Errorf("no classified gadget at 0x%x", addr)
		}
		chain = append(chain, g)
	}
	return chain, nil
}

func parseConditions(spec string) ([]smt.Condition, error) {
	var out []smt.Condition
	for _, tok := range strings.Split(spec, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		parts := strings.SplitN(tok, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid condition %q, expected reg=value", tok)
		}
		val, err := strconv.ParseUint(strings.TrimPrefix(parts[1], "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value in %q: %w", tok, err)
		}
		out = append(out, smt.Condition{Reg: parts[0], Target: val})
	}
	return out, nil
}
