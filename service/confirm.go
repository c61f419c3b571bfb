package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/zentala/bookmark-index/types"
)

// Confirmer approves an embedding pass before any provider call is made.
// Returning false aborts the pass without side effects. Implementations
// must block until a definite answer is available or ctx is done.
type Confirmer interface {
	Confirm(ctx context.Context, candidates []types.FlattenedBookmark) (bool, error)
}

// ConfirmFunc adapts a plain function to Confirmer.
type ConfirmFunc func(ctx context.Context, candidates []types.FlattenedBookmark) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, candidates []types.FlattenedBookmark) (bool, error) {
	return f(ctx, candidates)
}

// AlwaysConfirm approves every pass.
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, []types.FlattenedBookmark) (bool, error) {
	return true, nil
})

// PromptConfirmer asks on Out and reads a y/n answer from In.
type PromptConfirmer struct {
	In      io.Reader
	Out     io.Writer
	Preview int
}

func (p *PromptConfirmer) Confirm(ctx context.Context, candidates []types.FlattenedBookmark) (bool, error) {
	preview := p.Preview
	if preview <= 0 {
		preview = 5
	}

	fmt.Fprintf(p.Out, "%d bookmark(s) need new embeddings:\n", len(candidates))
	for i, b := range candidates {
		if i == preview {
			fmt.Fprintf(p.Out, "  ... and %d more\n", len(candidates)-preview)
			break
		}
		fmt.Fprintf(p.Out, "  - %s (%s)\n", b.Title, b.URL)
	}
	fmt.Fprint(p.Out, "Generate embeddings now? [y/N]: ")

	answer := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		if err != nil && line == "" {
			errCh <- err
			return
		}
		answer <- line
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-errCh:
		if err == io.EOF {
			return false, nil
		}
		return false, err
	case line := <-answer:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
