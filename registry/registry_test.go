package registry

import (
	"context"
	"testing"

	"github.com/mindbridge/signaling/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	logger := zerolog.Nop()
	return New(&logger)
}

func TestRegisterAssignsUniqueIDs(t *testing.T) {
	r := newTestRegistry()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := r.Register(model.NewWire(1), nil)
		require.NotEmpty(t, id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate connection id %s", id)
		seen[id] = struct{}{}
	}
}

func TestSendDeliversInOrder(t *testing.T) {
	r := newTestRegistry()
	wire := model.NewWire(8)
	id := r.Register(wire, nil)

	for _, event := range []string{"one", "two", "three"} {
		require.NoError(t, r.Send(id, model.Envelope{Event: event}))
	}

	assert.Equal(t, "one", (<-wire.TX).Event)
	assert.Equal(t, "two", (<-wire.TX).Event)
	assert.Equal(t, "three", (<-wire.TX).Event)
}

func TestSendToUnknownTarget(t *testing.T) {
	r := newTestRegistry()
	err := r.Send("nope", model.Envelope{Event: model.EventOffer})
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestSendQueueFull(t *testing.T) {
	r := newTestRegistry()
	wire := model.NewWire(1)
	id := r.Register(wire, nil)

	require.NoError(t, r.Send(id, model.Envelope{Event: "first"}))
	err := r.Send(id, model.Envelope{Event: "second"})
	assert.ErrorIs(t, err, ErrPeerUnreachable)

	// the queued message is still intact
	assert.Equal(t, "first", (<-wire.TX).Event)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	id := r.Register(model.NewWire(1), nil)

	r.Unregister(id)
	r.Unregister(id)

	err := r.Send(id, model.Envelope{Event: model.EventOffer})
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestUnregisterTerminatesSession(t *testing.T) {
	r := newTestRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	id := r.Register(model.NewWire(1), cancel)
	require.NoError(t, ctx.Err())

	r.Unregister(id)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	// repeated closure signals stay harmless
	r.Unregister(id)

	assert.False(t, r.Registered(id))
}

func TestRegistered(t *testing.T) {
	r := newTestRegistry()
	assert.False(t, r.Registered("nope"))

	id := r.Register(model.NewWire(1), nil)
	assert.True(t, r.Registered(id))

	r.Unregister(id)
	assert.False(t, r.Registered(id))
}

func TestLabels(t *testing.T) {
	r := newTestRegistry()
	id := r.Register(model.NewWire(1), nil)

	assert.Empty(t, r.Label(id))
	r.SetLabel(id, "Dr. Chen")
	assert.Equal(t, "Dr. Chen", r.Label(id))

	r.SetLabel("nope", "ghost") // no-op
	assert.Empty(t, r.Label("nope"))
}
