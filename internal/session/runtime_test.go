package session

import (
	"context"
	"io"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdem-arena/internal/llm"
	"github.com/lox/holdem-arena/internal/protocol"
	"github.com/lox/holdem-arena/internal/store"
)

// collector is a hub stand-in: it records frames and can answer action
// requests like a player who always folds and always continues.
type collector struct {
	mu       sync.Mutex
	frames   []*protocol.Message
	rt       *Runtime
	autoplay bool
}

func (c *collector) sink(_ string, msg *protocol.Message) {
	c.mu.Lock()
	c.frames = append(c.frames, msg)
	rt, autoplay := c.rt, c.autoplay
	c.mu.Unlock()

	if !autoplay || rt == nil {
		return
	}
	switch msg.Type {
	case protocol.TypeActionRequest:
		rt.HandlePlayerAction(protocol.PlayerActionData{Action: "fold"})
	case protocol.TypeRoundResult:
		rt.SignalNextRound()
	}
}

func (c *collector) typesSeen() map[protocol.MessageType]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[protocol.MessageType]int)
	for _, f := range c.frames {
		seen[f.Type]++
	}
	return seen
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testDeps(t *testing.T, st *store.Store, sink func(string, *protocol.Message)) Deps {
	t.Helper()
	return Deps{
		Store:  st,
		Clock:  quartz.NewReal(),
		Logger: log.New(io.Discard),
		Sink:   sink,
	}
}

func waitForStop(t *testing.T, rt *Runtime) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if !rt.IsRunning() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("worker did not stop")
}

func TestGamePlaysThroughAndPersists(t *testing.T) {
	st := testStore(t)
	user, err := st.CreateUser("alice", "alice@example.com", "hash", false)
	require.NoError(t, err)

	c := &collector{autoplay: true}
	rt := NewRuntime(user.ID, "alice", testDeps(t, st, c.sink))
	c.rt = rt

	outcome, err := rt.Start(Config{NumBots: 1, MaxRounds: 2, Seed: 7}, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStarted, outcome)
	assert.True(t, rt.IsRunning())

	waitForStop(t, rt)

	seen := c.typesSeen()
	assert.Positive(t, seen[protocol.TypeGameStart])
	assert.Positive(t, seen[protocol.TypeRoundStart])
	assert.Positive(t, seen[protocol.TypeRoundResult])
	assert.Positive(t, seen[protocol.TypeSystem], "game-over notice")

	// Rounds and statistics landed under the session row.
	sessions, err := st.ListSessions(user.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.NotNil(t, sessions[0].EndedAt)
	assert.Positive(t, sessions[0].TotalHands)

	rounds, err := st.GetSessionRounds(user.ID, sessions[0].ID)
	require.NoError(t, err)
	assert.Len(t, rounds, sessions[0].TotalHands)

	stats, err := st.GetOrCreateStats(user.ID)
	require.NoError(t, err)
	assert.Equal(t, sessions[0].TotalHands, stats.HandsPlayed)
}

func TestStartResumesLiveWorker(t *testing.T) {
	st := testStore(t)
	user, err := st.CreateUser("alice", "alice@example.com", "hash", false)
	require.NoError(t, err)

	c := &collector{autoplay: true}
	rt := NewRuntime(user.ID, "alice", testDeps(t, st, c.sink))
	c.rt = rt

	outcome, err := rt.Start(Config{NumBots: 1, MaxRounds: 50, Seed: 7}, false)
	require.NoError(t, err)
	require.Equal(t, OutcomeStarted, outcome)

	outcome, err = rt.Start(Config{NumBots: 1, MaxRounds: 50, Seed: 7}, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeResumed, outcome)

	rt.Stop()
	waitForStop(t, rt)
}

func TestForceRestart(t *testing.T) {
	st := testStore(t)
	user, err := st.CreateUser("alice", "alice@example.com", "hash", false)
	require.NoError(t, err)

	c := &collector{autoplay: true}
	rt := NewRuntime(user.ID, "alice", testDeps(t, st, c.sink))
	c.rt = rt

	outcome, err := rt.Start(Config{NumBots: 1, MaxRounds: 50, Seed: 7}, false)
	require.NoError(t, err)
	require.Equal(t, OutcomeStarted, outcome)
	firstSession := rt.SessionID()

	outcome, err = rt.Start(Config{NumBots: 1, MaxRounds: 50, Seed: 8}, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRestarted, outcome)
	assert.True(t, rt.IsRunning())

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) && rt.SessionID() == firstSession {
		time.Sleep(5 * time.Millisecond)
	}
	assert.NotEqual(t, firstSession, rt.SessionID(), "restart opens a new session row")

	rt.Stop()
	waitForStop(t, rt)
}

func TestStopReleasesWorker(t *testing.T) {
	c := &collector{autoplay: true}
	rt := NewRuntime("u1", "alice", testDeps(t, nil, c.sink))
	c.rt = rt

	_, err := rt.Start(Config{NumBots: 1, MaxRounds: 50, Seed: 7}, false)
	require.NoError(t, err)

	rt.Stop()
	waitForStop(t, rt)
	assert.False(t, rt.IsRunning())
}

func TestFinishedGameReleasesForwarder(t *testing.T) {
	c := &collector{autoplay: true}
	rt := NewRuntime("u1", "alice", testDeps(t, nil, c.sink))
	c.rt = rt

	baseline := runtime.NumGoroutine()

	for i := 0; i < 3; i++ {
		_, err := rt.Start(Config{NumBots: 1, MaxRounds: 1, Seed: int64(i + 1)}, false)
		require.NoError(t, err)
		waitForStop(t, rt)
	}

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline+1
	}, 5*time.Second, 10*time.Millisecond, "forwarders should exit with their games")
}

func TestActionWithoutRequestIsDropped(t *testing.T) {
	rt := NewRuntime("u1", "alice", testDeps(t, nil, nil))
	// No worker, no pending request; must not panic or block.
	rt.HandlePlayerAction(protocol.PlayerActionData{Action: "call"})
	rt.SignalNextRound()
}

func TestPendingStateTracking(t *testing.T) {
	rt := NewRuntime("u1", "alice", testDeps(t, nil, nil))

	roundStart := protocol.MustMessage(protocol.TypeRoundStart, protocol.RoundStartData{RoundNumber: 3})
	request := protocol.MustMessage(protocol.TypeActionRequest, protocol.ActionRequestData{CallAmount: 20})
	result := protocol.MustMessage(protocol.TypeRoundResult, nil)

	rt.track(roundStart)
	rt.track(request)

	rt.mu.Lock()
	assert.Same(t, roundStart, rt.pending.roundStart)
	assert.Same(t, request, rt.pending.actionRequest)
	assert.Nil(t, rt.pending.roundResult)
	rt.mu.Unlock()

	rt.track(result)
	rt.mu.Lock()
	assert.Nil(t, rt.pending.actionRequest, "a result supersedes the request")
	assert.Same(t, result, rt.pending.roundResult)
	rt.mu.Unlock()

	// A new round clears everything from the previous one.
	nextRound := protocol.MustMessage(protocol.TypeRoundStart, protocol.RoundStartData{RoundNumber: 4})
	rt.track(nextRound)
	rt.mu.Lock()
	assert.Same(t, nextRound, rt.pending.roundStart)
	assert.Nil(t, rt.pending.roundResult)
	rt.mu.Unlock()
}

func TestReplayOrdering(t *testing.T) {
	mockClock := quartz.NewMock(t)
	deps := testDeps(t, nil, nil)
	deps.Clock = mockClock
	rt := NewRuntime("u1", "alice", deps)

	roundStart := protocol.MustMessage(protocol.TypeRoundStart, protocol.RoundStartData{RoundNumber: 1})
	request := protocol.MustMessage(protocol.TypeActionRequest, protocol.ActionRequestData{CallAmount: 20})
	rt.track(roundStart)
	rt.track(request)

	trap := mockClock.Trap().AfterFunc()
	defer trap.Close()

	var mu sync.Mutex
	var sent []*protocol.Message
	done := make(chan struct{})
	go func() {
		rt.Replay(func(msg *protocol.Message) {
			mu.Lock()
			sent = append(sent, msg)
			mu.Unlock()
		})
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	call := trap.MustWait(ctx)
	call.MustRelease(ctx)

	mu.Lock()
	require.Len(t, sent, 1, "only round_start before the delay")
	assert.Same(t, roundStart, sent[0])
	mu.Unlock()

	mockClock.Advance(replayDelay).MustWait(ctx)
	<-done

	mu.Lock()
	require.Len(t, sent, 2)
	assert.Same(t, request, sent[1])
	mu.Unlock()
}

func TestReplayNothingPending(t *testing.T) {
	rt := NewRuntime("u1", "alice", testDeps(t, nil, nil))

	var sent []*protocol.Message
	rt.Replay(func(msg *protocol.Message) { sent = append(sent, msg) })
	assert.Empty(t, sent)
}

func TestResolveClientTiers(t *testing.T) {
	st := testStore(t)
	user, err := st.CreateUser("alice", "alice@example.com", "hash", false)
	require.NoError(t, err)

	deps := testDeps(t, st, nil)
	deps.EnvLLM = llm.Config{Provider: "deepseek", APIKey: "env-key"}
	rt := NewRuntime(user.ID, "alice", deps)

	// Environment tier when nothing else is configured.
	client, tier := rt.resolveClient(Config{})
	require.NotNil(t, client)
	assert.Equal(t, "environment", tier)

	// User tier beats environment.
	require.NoError(t, st.SetUserLLMKey(user.ID, "openai", "user-key"))
	client, tier = rt.resolveClient(Config{})
	require.NotNil(t, client)
	assert.Equal(t, "user", tier)

	// Session tier beats both.
	client, tier = rt.resolveClient(Config{LLM: llm.Config{Provider: "gemini", APIKey: "session-key"}})
	require.NotNil(t, client)
	assert.Equal(t, "session", tier)

	// No key anywhere.
	bare := NewRuntime(user.ID, "alice", testDeps(t, nil, nil))
	client, tier = bare.resolveClient(Config{})
	assert.Nil(t, client)
	assert.Empty(t, tier)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(testDeps(t, nil, nil))

	assert.Nil(t, reg.Get("u1"))

	rt := reg.GetOrCreate("u1", "alice")
	require.NotNil(t, rt)
	assert.Same(t, rt, reg.GetOrCreate("u1", "alice"))
	assert.Same(t, rt, reg.Get("u1"))
	assert.NotSame(t, rt, reg.GetOrCreate("u2", "bob"))

	reg.StopAll()
}

func TestDebugTapFiltering(t *testing.T) {
	c := &collector{}
	rt := NewRuntime("u1", "alice", testDeps(t, nil, c.sink))

	out := make(chan *protocol.Message, 8)
	tap := rt.debugTap(out, context.Background())

	tap(protocol.DebugLogData{Bot: "Viktor"})
	assert.Empty(t, out, "debug off drops everything")

	rt.SetDebug(true, nil)
	tap(protocol.DebugLogData{Bot: "Viktor"})
	require.Len(t, out, 1)
	<-out

	rt.SetDebug(true, []string{"Luna"})
	tap(protocol.DebugLogData{Bot: "Viktor"})
	assert.Empty(t, out, "filtered bot is dropped")
	tap(protocol.DebugLogData{Bot: "Luna"})
	assert.Len(t, out, 1)
}
