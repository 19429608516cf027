package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/aura-lang/aura/interp"
	"github.com/aura-lang/aura/pkg/bytecode"
)

func cmdExec(args []string) error {
	fs := flag.NewFlagSet("exec", flag.ExitOnError)
	timeout := fs.Duration("timeout", 0, "Override the sandbox timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("exec needs exactly one compiled program")
	}

	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	prog, err := bytecode.Load(raw)
	if err != nil {
		return err
	}

	m := projectManifest()
	limit := m.Timeout()
	if *timeout > 0 {
		limit = *timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), limit)
	defer cancel()

	opts := interp.Options{
		MaxDepth:    m.Sandbox.MaxDepth,
		OutputLimit: m.OutputLimit(),
		CallTimeout: limit,
	}
	result := bytecode.NewVM(prog, newConsoleCaps(m.Voice), opts).Execute(ctx)
	return report(result)
}

func cmdDisasm(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("disasm needs exactly one compiled program")
	}

	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	prog, err := bytecode.Load(raw)
	if err != nil {
		return err
	}
	fmt.Print(bytecode.Disassemble(prog))
	return nil
}
