// Package gate implements the Concurrency Gate: named global counting
// semaphores that throttle how many stage tasks of a given kind may run
// at once, with FIFO waiters and immediate cancellation.
package gate

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Names recognized by the default gate set.
const (
	OCR     = "ocr"
	LLM     = "llm"
	FileGen = "file-gen"
)

// Gate is a collection of named counting semaphores, sized once at startup
// and shared read-only across every stage task in the process.
type Gate struct {
	sems map[string]*semaphore.Weighted
}

// New builds a Gate from a name->permits map. Every named permit count must
// be at least 1.
func New(permits map[string]int) (*Gate, error) {
	sems := make(map[string]*semaphore.Weighted, len(permits))
	for name, n := range permits {
		if n < 1 {
			return nil, fmt.Errorf("gate %q: permits must be at least 1, got %d", name, n)
		}
		sems[name] = semaphore.NewWeighted(int64(n))
	}
	return &Gate{sems: sems}, nil
}

// Acquire blocks until a permit for name is free or ctx is cancelled. A
// cancelled waiter never consumes a permit. Acquire on an unknown name is a
// programmer error and returns an error rather than panicking.
func (g *Gate) Acquire(ctx context.Context, name string) error {
	sem, ok := g.sems[name]
	if !ok {
		return fmt.Errorf("gate: unknown name %q", name)
	}
	return sem.Acquire(ctx, 1)
}

// Release returns a permit previously obtained via Acquire(ctx, name).
func (g *Gate) Release(name string) {
	sem, ok := g.sems[name]
	if !ok {
		return
	}
	sem.Release(1)
}

// Do runs fn while holding a permit for name, releasing it on every exit
// path including a panic inside fn.
func (g *Gate) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if err := g.Acquire(ctx, name); err != nil {
		return err
	}
	defer g.Release(name)
	return fn(ctx)
}
