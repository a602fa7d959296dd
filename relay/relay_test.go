package relay

import (
	"encoding/json"
	"testing"

	"github.com/mindbridge/signaling/model"
	"github.com/mindbridge/signaling/registry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEnvelope struct {
	id  string
	env model.Envelope
}

type recordingSender struct {
	sent []sentEnvelope
	err  error
}

func (rs *recordingSender) Send(id string, env model.Envelope) error {
	if rs.err != nil {
		return rs.err
	}
	rs.sent = append(rs.sent, sentEnvelope{id: id, env: env})
	return nil
}

func newTestRelay(sender Sender) *Relay {
	logger := zerolog.Nop()
	return New(&logger, sender)
}

func TestForwardStampsSenderAndKeepsSDP(t *testing.T) {
	rec := &recordingSender{}
	rl := newTestRelay(rec)

	env, err := model.NewEnvelope(model.EventOffer, model.Signal{
		Target: "B",
		SDP:    json.RawMessage(`{"type":"offer","sdp":"v=0\r\n..."}`),
	})
	require.NoError(t, err)

	target, err := rl.Forward("A", env)
	require.NoError(t, err)
	require.Equal(t, "B", target)
	require.Len(t, rec.sent, 1)
	require.Equal(t, "B", rec.sent[0].id)
	require.Equal(t, model.EventOffer, rec.sent[0].env.Event)

	var out model.Signal
	require.NoError(t, json.Unmarshal(rec.sent[0].env.Payload, &out))
	assert.Equal(t, "A", out.Sender)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0\r\n..."}`, string(out.SDP))
}

func TestForwardOverwritesSpoofedSender(t *testing.T) {
	rec := &recordingSender{}
	rl := newTestRelay(rec)

	env, err := model.NewEnvelope(model.EventAnswer, model.Signal{
		Target: "A",
		Sender: "somebody-else",
		SDP:    json.RawMessage(`{"type":"answer"}`),
	})
	require.NoError(t, err)

	_, err = rl.Forward("B", env)
	require.NoError(t, err)

	var out model.Signal
	require.NoError(t, json.Unmarshal(rec.sent[0].env.Payload, &out))
	assert.Equal(t, "B", out.Sender)
}

func TestForwardCandidatesInOrder(t *testing.T) {
	rec := &recordingSender{}
	rl := newTestRelay(rec)

	candidates := []string{
		`{"candidate":"candidate:1 1 udp 2122260223 10.0.0.1 50000 typ host"}`,
		`{"candidate":"candidate:2 1 udp 1686052607 203.0.113.1 50001 typ srflx"}`,
		`{"candidate":"candidate:3 1 udp 41885439 198.51.100.1 3478 typ relay"}`,
	}
	for _, c := range candidates {
		env, err := model.NewEnvelope(model.EventICECandidate, model.Signal{
			Target:    "B",
			Candidate: json.RawMessage(c),
		})
		require.NoError(t, err)
		_, err = rl.Forward("A", env)
		require.NoError(t, err)
	}

	require.Len(t, rec.sent, len(candidates))
	for i, c := range candidates {
		var out model.Signal
		require.NoError(t, json.Unmarshal(rec.sent[i].env.Payload, &out))
		assert.JSONEq(t, c, string(out.Candidate))
	}
}

func TestForwardMalformedPayload(t *testing.T) {
	rl := newTestRelay(&recordingSender{})

	_, err := rl.Forward("A", model.Envelope{
		Event:   model.EventOffer,
		Payload: json.RawMessage(`{not json`),
	})
	assert.ErrorIs(t, err, ErrMalformedSignal)
}

func TestForwardWithoutTarget(t *testing.T) {
	rec := &recordingSender{}
	rl := newTestRelay(rec)

	env, err := model.NewEnvelope(model.EventOffer, model.Signal{SDP: json.RawMessage(`{}`)})
	require.NoError(t, err)

	_, err = rl.Forward("A", env)
	assert.ErrorIs(t, err, ErrNoTarget)
	assert.Empty(t, rec.sent)
}

func TestForwardUnreachableTarget(t *testing.T) {
	rl := newTestRelay(&recordingSender{err: registry.ErrPeerUnreachable})

	env, err := model.NewEnvelope(model.EventOffer, model.Signal{
		Target: "B",
		SDP:    json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	target, err := rl.Forward("A", env)
	assert.ErrorIs(t, err, registry.ErrPeerUnreachable)
	assert.Equal(t, "B", target, "target must be reported even on failure")
}
