// Package memory threads a bounded rolling summary between the batches of one
// document for one query.
package memory

import (
	"context"

	"github.com/bull/evidence-rag/internal/evidence"
)

// Next is the memory state transition: the current summary moves into the
// previous slot and the new batch summary becomes current.
func Next(current evidence.MemorySlot, summary string) evidence.MemorySlot {
	return evidence.MemorySlot{
		Previous: current.Current,
		Current:  summary,
	}
}

// Condenser distils both memory slots into a single prior-context string.
type Condenser interface {
	Condense(ctx context.Context, query, documentID string, mem evidence.MemorySlot) (string, error)
}

// Thread holds the memory of exactly one (query, document) pair.
// Create a new Thread per pair; it is not safe for concurrent use.
type Thread struct {
	state evidence.MemorySlot
}

// NewThread returns a thread with both slots empty.
func NewThread() *Thread {
	return &Thread{}
}

// State returns a snapshot of the current memory.
func (t *Thread) State() evidence.MemorySlot {
	return t.state
}

// Prior is the context handed to the next reasoning step: the most recent
// batch summary, or "" before the first batch.
func (t *Thread) Prior() string {
	return t.state.Current
}

// Advance records the summary of the batch just processed. A failed batch
// advances with "" so that "no new information" propagates forward.
func (t *Thread) Advance(summary string) evidence.MemorySlot {
	t.state = Next(t.state, summary)
	return t.state
}

// PriorWith condenses the memory through c when it holds anything, falling
// back to Prior when c is nil or fails.
func (t *Thread) PriorWith(ctx context.Context, c Condenser, query, documentID string) (string, error) {
	if c == nil || t.state.IsEmpty() {
		return t.Prior(), nil
	}
	condensed, err := c.Condense(ctx, query, documentID, t.state)
	if err != nil {
		return t.Prior(), err
	}
	return condensed, nil
}
