package testutil

import (
	"context"
	"sync"
)

// FakeCompleter returns a canned reply and records every prompt it
// sees.
type FakeCompleter struct {
	Reply string
	Err   error

	mu      sync.Mutex
	prompts []string
}

func (f *FakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	f.prompts = append(f.prompts, prompt)
	return f.Reply, nil
}

// Prompts returns a copy of the prompts seen so far.
func (f *FakeCompleter) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.prompts))
	copy(out, f.prompts)
	return out
}

// LastPrompt returns the most recent prompt, or "".
func (f *FakeCompleter) LastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}
