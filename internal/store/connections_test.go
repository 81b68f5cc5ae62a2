package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/mqttscope/internal/session"
)

func TestConnectionStore_State(t *testing.T) {
	c := NewConnectionStore(10)
	now := time.Now()

	assert.Equal(t, session.StateDisconnected, c.State("a"))

	c.SetState("a", session.StateConnecting, now)
	c.SetState("a", session.StateConnected, now.Add(time.Second))

	st, ok := c.Status("a")
	require.True(t, ok)
	assert.Equal(t, session.StateConnected, st.State)
	assert.Equal(t, now.Add(time.Second), st.Since)
	assert.Equal(t, session.StateConnected, c.State("a"))
}

func TestConnectionStore_Error(t *testing.T) {
	c := NewConnectionStore(10)
	now := time.Now()

	c.SetError("a", nil, now)
	_, ok := c.Status("a")
	assert.False(t, ok)

	c.SetError("a", errors.New("connection refused"), now)
	st, ok := c.Status("a")
	require.True(t, ok)
	assert.Equal(t, "connection refused", st.LastError)
	assert.Equal(t, session.StateDisconnected, st.State)
}

func TestConnectionStore_LogsBounded(t *testing.T) {
	c := NewConnectionStore(3)
	for i := 0; i < 5; i++ {
		c.AppendLog("a", session.LogLine{Level: session.LogInfo, Text: fmt.Sprintf("line %d", i)})
	}
	c.AppendLog("b", session.LogLine{Level: session.LogWarn, Text: "other"})

	logs := c.Logs("a")
	require.Len(t, logs, 3)
	assert.Equal(t, "line 2", logs[0].Text)
	assert.Equal(t, "line 4", logs[2].Text)
	assert.Len(t, c.Logs("b"), 1)
	assert.Empty(t, c.Logs("missing"))

	c.ClearLogs("a")
	assert.Empty(t, c.Logs("a"))
	_, ok := c.Status("a")
	assert.True(t, ok)
}

func TestConnectionStore_StatusesAndRemove(t *testing.T) {
	c := NewConnectionStore(0)
	now := time.Now()
	c.SetState("b", session.StateConnected, now)
	c.SetState("a", session.StateError, now)

	sts := c.Statuses()
	require.Len(t, sts, 2)
	assert.Equal(t, "a", sts[0].ID)
	assert.Equal(t, "b", sts[1].ID)

	c.Remove("a")
	assert.Len(t, c.Statuses(), 1)
	assert.Equal(t, session.StateDisconnected, c.State("a"))
}

func TestThroughput_Deltas(t *testing.T) {
	tp := NewThroughput(3)
	t0 := time.Now()

	s := tp.Record(t0, Counters{Received: 5, Sent: 1})
	assert.Equal(t, uint64(5), s.Received)
	assert.Equal(t, uint64(1), s.Sent)

	s = tp.Record(t0.Add(time.Second), Counters{Received: 12, Sent: 1})
	assert.Equal(t, uint64(7), s.Received)
	assert.Equal(t, uint64(0), s.Sent)
	assert.Equal(t, uint64(7), tp.Rate())

	// Counters were cleared in between.
	s = tp.Record(t0.Add(2*time.Second), Counters{Received: 2})
	assert.Equal(t, uint64(2), s.Received)

	tp.Record(t0.Add(3*time.Second), Counters{Received: 2})
	samples := tp.Samples()
	require.Len(t, samples, 3)
	assert.Equal(t, t0.Add(time.Second), samples[0].Time)
	assert.Equal(t, uint64(0), samples[2].Total())
}

func TestThroughput_Empty(t *testing.T) {
	tp := NewThroughput(0)
	assert.Zero(t, tp.Rate())
	assert.Empty(t, tp.Samples())
}
