// Aura CLI - run, compile and inspect aura companion scripts.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/aura-lang/aura/manifest"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("aura")

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: aura <command> [options] [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  run [script.aura]     Run a script\n")
	fmt.Fprintf(os.Stderr, "  build [script.aura]   Compile a script to a .aurc program\n")
	fmt.Fprintf(os.Stderr, "  exec <program.aurc>   Run a compiled program\n")
	fmt.Fprintf(os.Stderr, "  disasm <program.aurc> Disassemble a compiled program\n")
	fmt.Fprintf(os.Stderr, "  repl                  Start an interactive session\n")
	fmt.Fprintf(os.Stderr, "\nWithout a script argument, run and build use the entry from aura.toml.\n")
	fmt.Fprintf(os.Stderr, "\nGlobal options (before the command):\n")
	flag.PrintDefaults()
}

func main() {
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Usage = usage
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "run":
		err = cmdRun(args[1:])
	case "build":
		err = cmdBuild(args[1:])
	case "exec":
		err = cmdExec(args[1:])
	case "disasm":
		err = cmdDisasm(args[1:])
	case "repl":
		err = cmdRepl(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// projectManifest loads the nearest aura.toml, falling back to defaults
// when no project file exists.
func projectManifest() *manifest.Manifest {
	cwd, err := os.Getwd()
	if err != nil {
		return manifest.Default()
	}
	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		log.Warningf("ignoring malformed aura.toml: %v", err)
		return manifest.Default()
	}
	if m == nil {
		return manifest.Default()
	}
	log.Infof("using project %q at %s", m.Project.Name, m.Dir)
	return m
}

// scriptPath resolves the script to operate on: an explicit argument wins,
// otherwise the manifest entry.
func scriptPath(args []string, m *manifest.Manifest) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	path := m.EntryPath()
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no script given and no entry script at %s", path)
	}
	return path, nil
}
