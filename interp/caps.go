package interp

import (
	"context"
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Capabilities: the seam to external collaborators
// ---------------------------------------------------------------------------

// Capabilities is the set of external calls a program can reach through
// builtins. It is injected at interpreter construction rather than read
// from global state, so hosts and tests can swap implementations. Every
// call is synchronous and bounded by the deadline on ctx; an expired
// deadline surfaces to the program as a timeout error.
type Capabilities interface {
	// Knowledge looks up facts for a free-form query.
	Knowledge(ctx context.Context, query string) ([]Fact, error)

	// Say speaks text. Emotion may be empty; speed <= 0 means default.
	Say(ctx context.Context, text, emotion string, speed float64) error

	// Listen waits up to timeout for spoken input. Language may be empty.
	Listen(ctx context.Context, timeout time.Duration, language string) (string, error)
}

// FixtureCaps is an offline Capabilities implementation used by tests and
// by the CLI when no real backend is configured. Knowledge answers from a
// fixed fact table; Say records utterances; Listen replays queued lines.
type FixtureCaps struct {
	Facts      map[string][]Fact // query -> canned facts
	Spoken     []string          // every Say text, in order
	ListenFeed []string          // consumed front-first by Listen
}

// NewFixtureCaps creates an empty fixture.
func NewFixtureCaps() *FixtureCaps {
	return &FixtureCaps{Facts: make(map[string][]Fact)}
}

func (c *FixtureCaps) Knowledge(ctx context.Context, query string) ([]Fact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if facts, ok := c.Facts[query]; ok {
		return facts, nil
	}
	return nil, nil
}

func (c *FixtureCaps) Say(ctx context.Context, text, emotion string, speed float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Spoken = append(c.Spoken, text)
	return nil
}

func (c *FixtureCaps) Listen(ctx context.Context, timeout time.Duration, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(c.ListenFeed) == 0 {
		return "", fmt.Errorf("listen: no input available")
	}
	line := c.ListenFeed[0]
	c.ListenFeed = c.ListenFeed[1:]
	return line, nil
}
