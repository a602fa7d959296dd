package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/mindbridge/signaling/model"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownTarget   = errors.New("connection is not registered")
	ErrPeerUnreachable = errors.New("connection send queue is full")
)

type entry struct {
	wire   model.Wire
	cancel context.CancelFunc
	label  string
}

// Registry tracks live connections and their outbound wires.
// It owns connection metadata, nothing else.
type Registry struct {
	logger zerolog.Logger
	mx     sync.Mutex
	conns  map[string]*entry
}

func New(logger *zerolog.Logger) *Registry {
	return &Registry{
		logger: logger.With().Str("component", "registry").Logger(),
		conns:  make(map[string]*entry),
	}
}

// Register assigns a fresh connection id to the wire. The connection starts
// with no room and no label. The cancel, when given, terminates the
// connection's session and is invoked on Unregister.
func (r *Registry) Register(wire model.Wire, cancel context.CancelFunc) string {
	id := uuid.NewString()

	r.mx.Lock()
	r.conns[id] = &entry{wire: wire, cancel: cancel}
	r.mx.Unlock()

	r.logger.Debug().Str("connID", id).Msg("connection registered")
	return id
}

// Unregister removes the connection and terminates its session. Safe to call
// more than once, transport layers may signal closure repeatedly.
func (r *Registry) Unregister(id string) {
	r.mx.Lock()
	ent, ok := r.conns[id]
	delete(r.conns, id)
	r.mx.Unlock()

	if !ok {
		return
	}
	if ent.cancel != nil {
		// stops the receive loop and lets the transport wind down, an
		// unregistered connection must not keep a live session
		ent.cancel()
	}
	r.logger.Debug().Str("connID", id).Msg("connection unregistered")
}

// Registered reports whether the connection is still tracked.
func (r *Registry) Registered(id string) bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	_, ok := r.conns[id]
	return ok
}

// SetLabel records the display name supplied at join time.
func (r *Registry) SetLabel(id, label string) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if ent, ok := r.conns[id]; ok {
		ent.label = label
	}
}

func (r *Registry) Label(id string) string {
	r.mx.Lock()
	defer r.mx.Unlock()
	if ent, ok := r.conns[id]; ok {
		return ent.label
	}
	return ""
}

// Send enqueues an envelope on the connection's outbound wire without
// blocking. ErrUnknownTarget when the id is not registered,
// ErrPeerUnreachable when the queue is full. Neither is fatal to the caller.
func (r *Registry) Send(id string, env model.Envelope) error {
	r.mx.Lock()
	ent, ok := r.conns[id]
	r.mx.Unlock()

	if !ok {
		return ErrUnknownTarget
	}
	select {
	case ent.wire.TX <- env:
		return nil
	default:
		r.logger.Warn().Str("connID", id).Str("event", env.Event).Msg("send queue full")
		return ErrPeerUnreachable
	}
}
