package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aura-lang/aura/lib/cache"
	"github.com/aura-lang/aura/manifest"
	"github.com/aura-lang/aura/pkg/bytecode"
)

func cmdBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	output := fs.String("o", "", "Output path (default: script name with .aurc)")
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

	raw, err := buildCached(m, src, path)
	if err != nil {
		return err
	}

	out := *output
	if out == "" {
		out = m.Compiler.Output
	}
	if out == "" {
		out = strings.TrimSuffix(path, ".aura") + ".aurc"
	}
	if err := os.WriteFile(out, raw, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes)\n", out, len(raw))
	return nil
}

// buildCached compiles source to its binary form, going through the
// project's program cache keyed by the source content hash.
func buildCached(m *manifest.Manifest, src []byte, sourceFile string) ([]byte, error) {
	var store *cache.Cache
	if !m.Compiler.NoCache && m.Dir != "" {
		var err error
		store, err = cache.Open(m.CacheDir())
		if err != nil {
			log.Warningf("program cache unavailable: %v", err)
		} else {
			defer store.Close()
		}
	}

	if store != nil {
		raw, err := store.Get(src)
		if err == nil {
			log.Infof("cache hit for %s", sourceFile)
			return raw, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Warningf("program cache read failed: %v", err)
		}
	}

	started := time.Now()
	prog, err := bytecode.CompileSource(string(src), sourceFile)
	if err != nil {
		return nil, err
	}
	if m.Compiler.DebugInfo {
		prog.Header.Flags |= bytecode.FlagDebugInfo
	}
	raw, err := prog.Serialize()
	if err != nil {
		return nil, err
	}
	log.Infof("compiled %s in %s", sourceFile, time.Since(started))

	if store != nil {
		if err := store.Put(src, raw); err != nil {
			log.Warningf("program cache write failed: %v", err)
		}
	}
	return raw, nil
}
