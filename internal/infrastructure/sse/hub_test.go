package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow/internal/application/dispatcher"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	a := NewClient("a")
	b := NewClient("b")
	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 2, hub.ClientCount())

	ev := &RenderEvent{ChannelID: "chan-1", Outcome: dispatcher.Outcome{Message: "Ticket created."}}
	assert.Equal(t, 2, hub.Broadcast(ev))

	got := <-a.Events
	assert.Equal(t, "chan-1", got.ChannelID)
	got = <-b.Events
	assert.Equal(t, "Ticket created.", got.Outcome.Message)
}

func TestBroadcastSkipsFullClients(t *testing.T) {
	hub := NewHub()
	slow := &Client{ClientID: "slow", Events: make(chan *RenderEvent, 1)}
	fast := NewClient("fast")
	hub.Register(slow)
	hub.Register(fast)

	ev := &RenderEvent{ChannelID: "chan-1"}
	assert.Equal(t, 2, hub.Broadcast(ev))
	// slow's buffer is now full; the next broadcast must not block on it
	assert.Equal(t, 1, hub.Broadcast(ev))

	select {
	case got := <-fast.Events:
		require.NotNil(t, got)
	default:
		t.Fatal("fast client should have buffered events")
	}
}

func TestUnregisterClosesClient(t *testing.T) {
	hub := NewHub()
	c := NewClient("a")
	hub.Register(c)
	hub.Unregister("a")
	assert.Zero(t, hub.ClientCount())

	_, open := <-c.Events
	assert.False(t, open)

	// repeated unregister and close are no-ops
	hub.Unregister("a")
	c.Close()
}

func TestStopClosesAll(t *testing.T) {
	hub := NewHub()
	a := NewClient("a")
	b := NewClient("b")
	hub.Register(a)
	hub.Register(b)
	hub.Stop()
	assert.Zero(t, hub.ClientCount())

	_, open := <-a.Events
	assert.False(t, open)
	_, open = <-b.Events
	assert.False(t, open)
}
