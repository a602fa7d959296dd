package relay

import (
	"encoding/json"
	"errors"

	"github.com/davecgh/go-spew/spew"
	"github.com/mindbridge/signaling/model"
	"github.com/rs/zerolog"
)

var (
	ErrMalformedSignal = errors.New("unable to decode signaling payload")
	ErrNoTarget        = errors.New("signaling payload has no target")
)

// Sender delivers an envelope to one connection's outbound queue.
type Sender interface {
	Send(id string, env model.Envelope) error
}

// Relay forwards offer, answer and ice-candidate envelopes between the two
// members of a room. It resolves the target, stamps the sender and passes
// sdp/candidate blobs through untouched. Delivery is per-connection FIFO:
// each connection has a single receive loop and a single ordered outbound
// queue, so candidates arrive in the order the sender emitted them.
type Relay struct {
	logger zerolog.Logger
	reg    Sender
}

func New(logger *zerolog.Logger, reg Sender) *Relay {
	return &Relay{
		logger: logger.With().Str("component", "relay").Logger(),
		reg:    reg,
	}
}

// Forward relays one signaling envelope from senderID to its target.
// The returned target is set whenever the payload named one, even on error,
// so the caller can react to unreachable peers.
func (rl *Relay) Forward(senderID string, env model.Envelope) (string, error) {
	var sig model.Signal
	if err := json.Unmarshal(env.Payload, &sig); err != nil {
		return "", errors.Join(ErrMalformedSignal, err)
	}
	if sig.Target == "" {
		return "", ErrNoTarget
	}

	// server is authoritative about message origin
	sig.Sender = senderID

	out, err := model.NewEnvelope(env.Event, &sig)
	if err != nil {
		return sig.Target, errors.Join(ErrMalformedSignal, err)
	}

	if e := rl.logger.Trace(); e.Enabled() {
		e.Str("dump", spew.Sdump(sig)).Msg("forwarding signal")
	}

	if err = rl.reg.Send(sig.Target, out); err != nil {
		rl.logger.Debug().
			Str("event", env.Event).
			Str("src", senderID).
			Str("dst", sig.Target).
			Err(err).
			Msg("cannot forward, dropping")
		return sig.Target, err
	}

	rl.logger.Debug().
		Str("event", env.Event).
		Str("src", senderID).
		Str("dst", sig.Target).
		Msg("signal forwarded")
	return sig.Target, nil
}
