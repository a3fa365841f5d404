package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/evidence-rag/internal/evidence"
)

func TestNext(t *testing.T) {
	m := evidence.MemorySlot{}

	m = Next(m, "S1")
	assert.Equal(t, evidence.MemorySlot{Previous: "", Current: "S1"}, m)

	m = Next(m, "S2")
	assert.Equal(t, evidence.MemorySlot{Previous: "S1", Current: "S2"}, m)

	m = Next(m, "")
	assert.Equal(t, evidence.MemorySlot{Previous: "S2", Current: ""}, m)
}

func TestThread_PriorIsMostRecentSummary(t *testing.T) {
	th := NewThread()
	assert.True(t, th.State().IsEmpty())
	assert.Equal(t, "", th.Prior(), "no memory before the first batch")

	th.Advance("S1")
	assert.Equal(t, "S1", th.Prior(), "batch 2 sees S1")

	th.Advance("S2")
	assert.Equal(t, evidence.MemorySlot{Previous: "S1", Current: "S2"}, th.State())
	assert.Equal(t, []string{"S1", "S2"}, th.State().Pair())
}

func TestThread_Independent(t *testing.T) {
	a := NewThread()
	b := NewThread()
	a.Advance("from doc a")

	assert.True(t, b.State().IsEmpty())
}

type fakeCondenser struct {
	out   string
	err   error
	calls int
}

func (f *fakeCondenser) Condense(_ context.Context, _, _ string, _ evidence.MemorySlot) (string, error) {
	f.calls++
	return f.out, f.err
}

func TestThread_PriorWith(t *testing.T) {
	ctx := context.Background()

	t.Run("empty memory skips condenser", func(t *testing.T) {
		c := &fakeCondenser{out: "x"}
		prior, err := NewThread().PriorWith(ctx, c, "q", "doc")
		require.NoError(t, err)
		assert.Equal(t, "", prior)
		assert.Equal(t, 0, c.calls)
	})

	t.Run("condensed", func(t *testing.T) {
		th := NewThread()
		th.Advance("S1")
		prior, err := th.PriorWith(ctx, &fakeCondenser{out: "condensed"}, "q", "doc")
		require.NoError(t, err)
		assert.Equal(t, "condensed", prior)
	})

	t.Run("failure falls back to prior", func(t *testing.T) {
		th := NewThread()
		th.Advance("S1")
		prior, err := th.PriorWith(ctx, &fakeCondenser{err: errors.New("boom")}, "q", "doc")
		assert.Error(t, err)
		assert.Equal(t, "S1", prior)
	})

	t.Run("nil condenser", func(t *testing.T) {
		th := NewThread()
		th.Advance("S1")
		prior, err := th.PriorWith(ctx, nil, "q", "doc")
		require.NoError(t, err)
		assert.Equal(t, "S1", prior)
	})
}
