package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aura-lang/aura/interp"
	"github.com/aura-lang/aura/manifest"
)

// consoleCaps backs the companion capabilities with the terminal: say
// prints, listen reads a line from stdin, knowledge answers from nothing
// and logs the query so script authors can see what was asked.
type consoleCaps struct {
	voice manifest.Voice
	in    *bufio.Reader
}

func newConsoleCaps(voice manifest.Voice) *consoleCaps {
	return &consoleCaps{voice: voice, in: bufio.NewReader(os.Stdin)}
}

func (c *consoleCaps) Knowledge(ctx context.Context, query string) ([]interp.Fact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Infof("knowledge query: %q", query)
	return nil, nil
}

func (c *consoleCaps) Say(ctx context.Context, text, emotion string, speed float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if emotion == "" {
		emotion = c.voice.DefaultEmotion
	}
	if speed <= 0 {
		speed = c.voice.DefaultSpeed
	}
	fmt.Printf("[say %s x%.1f] %s\n", emotion, speed, text)
	return nil
}

func (c *consoleCaps) Listen(ctx context.Context, timeout time.Duration, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type lineResult struct {
		line string
		err  error
	}
	ch := make(chan lineResult, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		ch <- lineResult{strings.TrimRight(line, "\n"), err}
	}()

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", r.err
		}
		return r.line, nil
	case <-timer.C:
		return "", context.DeadlineExceeded
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
