package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aura-lang/aura/compiler"
	"github.com/aura-lang/aura/interp"
	"github.com/aura-lang/aura/pkg/bytecode"
)

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	compiled := fs.Bool("compiled", false, "Compile to bytecode and run on the VM")
	timeout := fs.Duration("timeout", 0, "Override the sandbox timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m := projectManifest()
	path, err := scriptPath(fs.Args(), m)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	limit := m.Timeout()
	if *timeout > 0 {
		limit = *timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), limit)
	defer cancel()

	caps := newConsoleCaps(m.Voice)
	opts := interp.Options{
		MaxDepth:    m.Sandbox.MaxDepth,
		OutputLimit: m.OutputLimit(),
		CallTimeout: limit,
	}

	var result interp.ExecutionResult
	if *compiled {
		raw, err := buildCached(m, src, path)
		if err != nil {
			return err
		}
		prog, err := bytecode.Load(raw)
		if err != nil {
			return err
		}
		started := time.Now()
		result = bytecode.NewVM(prog, caps, opts).Execute(ctx)
		log.Infof("executed %s in %s", path, time.Since(started))
	} else {
		prog, err := compiler.Parse(string(src))
		if err != nil {
			return err
		}
		started := time.Now()
		result = interp.New(caps, opts).Execute(ctx, prog)
		log.Infof("evaluated %s in %s", path, time.Since(started))
	}

	return report(result)
}

// report prints an execution result the same way for both engines: output
// first, then the error if the program failed partway.
func report(result interp.ExecutionResult) error {
	if result.Output != "" {
		fmt.Print(result.Output)
	}
	if result.Truncated {
		fmt.Fprintln(os.Stderr, "(output truncated)")
	}
	for name, value := range result.Traits {
		log.Infof("trait %s = %g", name, value)
	}
	if result.Err != nil {
		return result.Err
	}
	return nil
}
