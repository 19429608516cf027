package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/aura-lang/aura/compiler"
	"github.com/aura-lang/aura/interp"
)

const (
	historyFile = ".aura_history"
	promptMain  = "aura> "
	promptCont  = "  ... "
)

func cmdRepl(args []string) error {
	m := projectManifest()

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	ip := interp.New(newConsoleCaps(m.Voice), interp.Options{
		MaxDepth:    m.Sandbox.MaxDepth,
		OutputLimit: m.OutputLimit(),
	})
	printed := 0

	fmt.Println("aura interactive session (:help for commands, Ctrl+D to exit)")
	for {
		code, ok := readInput(ln)
		if !ok {
			fmt.Println()
			return nil
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(code)

		if strings.HasPrefix(trimmed, ":") {
			if done := replCommand(ip, trimmed); done {
				return nil
			}
			continue
		}

		prog, err := compiler.Parse(code)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if err := ip.Run(context.Background(), prog); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		out := ip.Output().String()
		if len(out) > printed {
			fmt.Print(out[printed:])
			printed = len(out)
		}
	}
}

// readInput accumulates lines until the parser stops reporting an
// unexpected end of input, so braced blocks can span multiple lines.
func readInput(ln *liner.State) (string, bool) {
	code, err := ln.Prompt(promptMain)
	if err != nil {
		if err == liner.ErrPromptAborted {
			return "", true
		}
		return "", false
	}
	for incomplete(code) {
		more, err := ln.Prompt(promptCont)
		if err != nil {
			break
		}
		code += "\n" + more
	}
	return code, true
}

func incomplete(code string) bool {
	_, err := compiler.Parse(code)
	var perr *compiler.ParseError
	return errors.As(err, &perr) && perr.Found == "EOF"
}

func replCommand(ip *interp.Interp, cmd string) (done bool) {
	switch cmd {
	case ":quit", ":q", ":exit":
		return true
	case ":traits":
		traits := ip.Traits()
		if len(traits) == 0 {
			fmt.Println("no traits set")
		}
		for name, value := range traits {
			fmt.Printf("%s = %g\n", name, value)
		}
	case ":help":
		fmt.Println(":traits  show personality traits set so far")
		fmt.Println(":quit    leave the session")
	default:
		fmt.Printf("unknown command %s (:help for a list)\n", cmd)
	}
	return false
}
