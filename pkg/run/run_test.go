// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/graph"
	"github.com/jllopis/tripgraph/pkg/llm"
	"github.com/jllopis/tripgraph/pkg/run/store"
)

func echoGraph(t *testing.T, release <-chan struct{}) *graph.CompiledGraph {
	t.Helper()
	schema := graph.NewSchema().
		MustDeclare("messages", graph.KindMessages, graph.Append).
		MustDeclare("fail", graph.KindBool, graph.Overwrite)
	return graph.NewStateGraph(schema).
		WithID("echo").
		AddNode("reply", func(ctx context.Context, s graph.State) (graph.Patch, error) {
			if release != nil {
				<-release
			}
			if s.Bool("fail") {
				return nil, fmt.Errorf("asked to fail")
			}
			last, _ := s.LastMessage("messages")
			return graph.Patch{"messages": llm.Assistant("echo: " + last.Content)}, nil
		}).
		AddEdge("reply", graph.END).
		SetEntryPoint("reply").
		MustCompile()
}

func initial(t *testing.T, g *graph.CompiledGraph, text string) graph.State {
	t.Helper()
	st, err := g.Schema().NewState(graph.Patch{"messages": llm.User(text)})
	require.NoError(t, err)
	return st
}

func TestStartAssignsRunIDAndSaves(t *testing.T) {
	g := echoGraph(t, nil)
	s := store.NewMemory()
	c := NewController(g, WithStore(s))

	res, err := c.Run(context.Background(), "", initial(t, g, "hello"))
	require.NoError(t, err)
	_, err = uuid.Parse(res.RunID)
	require.NoError(t, err, "generated run id should be a uuid")

	rec, err := s.Load(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, rec.Status)
	assert.Equal(t, "echo", rec.GraphID)
	assert.Equal(t, 1, rec.Supersteps)
	assert.Equal(t, 1, rec.Turns)
}

func TestResumeContinuesConversation(t *testing.T) {
	g := echoGraph(t, nil)
	s := store.NewMemory()
	c := NewController(g, WithStore(s))
	ctx := context.Background()

	_, err := c.Start(ctx, initial(t, g, "first"), "conv-1")
	require.NoError(t, err)

	st, err := c.Resume(ctx, "conv-1", graph.Patch{"messages": llm.User("second")})
	require.NoError(t, err)

	msgs := st.Messages("messages")
	require.Len(t, msgs, 4)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "echo: first", msgs[1].Content)
	assert.Equal(t, "second", msgs[2].Content)
	assert.Equal(t, "echo: second", msgs[3].Content)

	rec, err := s.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Turns)
}

func TestResumeUnknownRun(t *testing.T) {
	g := echoGraph(t, nil)
	c := NewController(g, WithStore(store.NewMemory()))

	_, err := c.Resume(context.Background(), "nope", graph.Patch{"messages": llm.User("hi")})
	var runErr *errors.RunError
	require.True(t, stderrors.As(err, &runErr))
	assert.Equal(t, -1, runErr.Superstep)
	assert.True(t, store.IsNotFound(err))
}

func TestResumeWithoutStore(t *testing.T) {
	g := echoGraph(t, nil)
	_, err := NewController(g).Resume(context.Background(), "x", nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeStoreError))
}

func TestFailedRunKeepsStartingState(t *testing.T) {
	g := echoGraph(t, nil)
	s := store.NewMemory()
	c := NewController(g, WithStore(s))
	ctx := context.Background()

	st, err := g.Schema().NewState(graph.Patch{"messages": llm.User("boom"), "fail": true})
	require.NoError(t, err)

	_, err = c.Start(ctx, st, "bad-run")
	var runErr *errors.RunError
	require.True(t, stderrors.As(err, &runErr))
	assert.Equal(t, "bad-run", runErr.RunID)
	assert.Equal(t, "reply", runErr.NodeID)
	assert.Equal(t, errors.CodeNodeFatalFailure, runErr.Code())

	rec, err := s.Load(ctx, "bad-run")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "asked to fail")

	prev, _, err := c.Load(ctx, "bad-run")
	require.NoError(t, err)
	assert.Equal(t, 1, prev.Len("messages"), "no partial state is persisted")

	// A follow-up turn can clear the failure and continue.
	out, err := c.Resume(ctx, "bad-run", graph.Patch{"fail": false, "messages": llm.User("again")})
	require.NoError(t, err)
	last, _ := out.LastMessage("messages")
	assert.Equal(t, "echo: again", last.Content)
}

func TestConcurrentRunsAreIsolated(t *testing.T) {
	g := echoGraph(t, nil)
	c := NewController(g, WithStore(store.NewMemory()))

	var wg sync.WaitGroup
	results := make([]graph.State, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Start(context.Background(), initial(t, g, fmt.Sprintf("msg-%d", i)), fmt.Sprintf("run-%d", i))
		}(i)
	}
	wg.Wait()

	for i, st := range results {
		require.NoError(t, errs[i])
		last, _ := st.LastMessage("messages")
		assert.Equal(t, fmt.Sprintf("echo: msg-%d", i), last.Content)
		assert.Equal(t, 2, st.Len("messages"))
	}
}

func TestSameRunIDCannotRunTwice(t *testing.T) {
	release := make(chan struct{})
	g := echoGraph(t, release)
	c := NewController(g)

	done := make(chan error, 1)
	go func() {
		_, err := c.Start(context.Background(), initial(t, g, "slow"), "busy")
		done <- err
	}()

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		_, ok := c.active["busy"]
		return ok
	}, time.Second, 5*time.Millisecond)

	_, err := c.Start(context.Background(), initial(t, g, "again"), "busy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in progress")
	assert.True(t, errors.IsCode(err, errors.CodeRunConflict))
	assert.False(t, errors.IsCode(err, errors.CodeInternal))

	close(release)
	require.NoError(t, <-done)
}

func TestAuditStoreReceivesEvents(t *testing.T) {
	g := echoGraph(t, nil)
	audit := graph.NewMemoryAuditStore()
	c := NewController(g, WithAuditStore(audit))

	_, err := c.Start(context.Background(), initial(t, g, "hi"), "audited")
	require.NoError(t, err)

	events, err := audit.List(context.Background(), graph.AuditFilter{RunID: "audited"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, graph.NodeStarted, events[0].Status)
	assert.Equal(t, graph.NodeCompleted, events[1].Status)
}

func TestExists(t *testing.T) {
	g := echoGraph(t, nil)
	c := NewController(g, WithStore(store.NewMemory()))
	ctx := context.Background()

	ok, err := c.Exists(ctx, "chat-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Start(ctx, initial(t, g, "hi"), "chat-1")
	require.NoError(t, err)
	ok, err = c.Exists(ctx, "chat-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewController(g).Exists(ctx, "chat-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

// gatedStore holds the first Load until open is closed.
type gatedStore struct {
	store.Store
	entered chan struct{}
	open    chan struct{}
	once    sync.Once
}

func (g *gatedStore) Load(ctx context.Context, runID string) (*store.Record, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.open
	}
	return g.Store.Load(ctx, runID)
}

func TestTurnHoldsRunWhileLoading(t *testing.T) {
	g := echoGraph(t, nil)
	s := &gatedStore{Store: store.NewMemory(), entered: make(chan struct{}), open: make(chan struct{})}
	c := NewController(g, WithStore(s))
	ctx := context.Background()

	fresh := func(text string) Prepare {
		return func(prev *graph.State) (graph.State, error) {
			if prev == nil {
				return g.Schema().NewState(graph.Patch{"messages": llm.User(text)})
			}
			return g.Schema().Apply(*prev, graph.Patch{"messages": llm.User(text)})
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.Turn(ctx, "chat", fresh("first"))
		done <- err
	}()
	<-s.entered

	// The first turn is still loading; a second one must not start from a
	// snapshot that is about to be replaced.
	_, err := c.Turn(ctx, "chat", fresh("second"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeRunConflict))

	close(s.open)
	require.NoError(t, <-done)

	res, err := c.Turn(ctx, "chat", fresh("third"))
	require.NoError(t, err)
	assert.Equal(t, 4, res.State.Len("messages"))

	rec, err := s.Store.Load(ctx, "chat")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Turns)
}

func TestTurnFinishRewritesSavedState(t *testing.T) {
	g := echoGraph(t, nil)
	s := store.NewMemory()
	c := NewController(g, WithStore(s))
	ctx := context.Background()

	shout := func(_ context.Context, st graph.State) (graph.State, error) {
		msgs := st.Messages("messages")
		msgs[len(msgs)-1].Content = "ECHO"
		values := st.Values()
		values["messages"] = msgs
		return st.Schema().NewState(values)
	}
	res, err := c.Turn(ctx, "", func(*graph.State) (graph.State, error) {
		return initial(t, g, "hi"), nil
	}, WithFinish(shout))
	require.NoError(t, err)
	last, _ := res.State.LastMessage("messages")
	assert.Equal(t, "ECHO", last.Content)

	stored, _, err := c.Load(ctx, res.RunID)
	require.NoError(t, err)
	last, _ = stored.LastMessage("messages")
	assert.Equal(t, "ECHO", last.Content)

	_, err = c.Turn(ctx, "broken", func(*graph.State) (graph.State, error) {
		return initial(t, g, "hi"), nil
	}, WithFinish(func(context.Context, graph.State) (graph.State, error) {
		return graph.State{}, fmt.Errorf("filter exploded")
	}))
	require.Error(t, err)
	rec, err := s.Load(ctx, "broken")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, rec.Status)
}
