package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mindbridge/signaling/model"
	"github.com/mindbridge/signaling/registry"
	"github.com/rs/zerolog"
)

var (
	ErrConnect = errors.New("unable to connect")
)

type (
	Registry interface {
		Register(wire model.Wire, cancel context.CancelFunc) string
		Unregister(id string)
		Registered(id string) bool
		SetLabel(id, label string)
		Send(id string, env model.Envelope) error
	}

	Rooms interface {
		Join(roomID, connID string) (peer string, count int)
		Leave(connID string) (roomID string, remaining []string)
		RoomOf(connID string) string
	}

	Relay interface {
		Forward(senderID string, env model.Envelope) (target string, err error)
	}

	Dispatcher interface {
		BroadcastJoin(roomID, newID, peerID string) (unreachable []string)
		BroadcastLeave(roomID, leftID string, remaining []string) (unreachable []string)
		RelayChat(roomID, senderID, text string) (unreachable []string)
	}

	// Service is the connection lifecycle manager. It is the only component
	// that mutates both the registry and the room table, and it runs the
	// per-connection receive loop that dispatches on event kind.
	Service struct {
		registry   Registry
		rooms      Rooms
		relay      Relay
		dispatcher Dispatcher
		logger     zerolog.Logger
	}

	Config struct {
		Registry   Registry
		Rooms      Rooms
		Relay      Relay
		Dispatcher Dispatcher
		Logger     *zerolog.Logger
	}
)

func New(cfg Config) *Service {
	return &Service{
		registry:   cfg.Registry,
		rooms:      cfg.Rooms,
		relay:      cfg.Relay,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger.With().Str("component", "service").Logger(),
	}
}

// Connect registers the wire, tells the client its assigned id and starts
// the receive loop. The loop runs until ctx is canceled or RX is closed.
// The cancel must terminate the connection's session: the registry invokes
// it when the connection is unregistered, so a reaped peer's loop stops.
func (svc *Service) Connect(ctx context.Context, cancel context.CancelFunc, wire model.Wire) (string, error) {
	connID := svc.registry.Register(wire, cancel)

	env, err := model.NewEnvelope(model.EventConnected, model.Connected{ConnectionID: connID})
	if err == nil {
		err = svc.registry.Send(connID, env)
	}
	if err != nil {
		svc.registry.Unregister(connID)
		return "", errors.Join(ErrConnect, err)
	}

	go svc.receiveLoop(ctx, connID, wire.RX)

	svc.logger.Debug().Str("connID", connID).Msg("connection established")
	return connID, nil
}

// Disconnect runs the teardown path: leave the room, notify the remaining
// members, then unregister. Idempotent, transports may report closure more
// than once.
func (svc *Service) Disconnect(connID string) {
	roomID, remaining := svc.rooms.Leave(connID)
	if roomID != "" {
		svc.logger.Debug().
			Str("connID", connID).
			Str("roomID", roomID).
			Msg("connection left room")
		svc.reap(svc.dispatcher.BroadcastLeave(roomID, connID, remaining))
	}
	svc.registry.Unregister(connID)
}

func (svc *Service) receiveLoop(ctx context.Context, connID string, rx <-chan model.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-rx:
			if !ok {
				return
			}
			svc.handle(connID, env)
		}
	}
}

// handle dispatches one inbound envelope. Errors here never terminate the
// connection: malformed or unroutable messages are logged and dropped.
func (svc *Service) handle(connID string, env model.Envelope) {
	switch env.Event {
	case model.EventJoinRoom:
		svc.joinRoom(connID, env)

	case model.EventOffer, model.EventAnswer, model.EventICECandidate:
		target, err := svc.relay.Forward(connID, env)
		switch {
		case err == nil, errors.Is(err, registry.ErrUnknownTarget):
			// unknown targets are dropped silently, the peer is simply gone
		case errors.Is(err, registry.ErrPeerUnreachable):
			svc.reap([]string{target})
		default:
			svc.logger.Error().
				Err(err).
				Str("connID", connID).
				Str("event", env.Event).
				Msg("signal dropped")
		}

	case model.EventSendMessage:
		svc.sendMessage(connID, env)

	default:
		svc.logger.Warn().
			Str("connID", connID).
			Str("event", env.Event).
			Msg("unknown event, dropping")
	}
}

func (svc *Service) joinRoom(connID string, env model.Envelope) {
	var req model.JoinRoom
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		svc.logger.Error().Err(err).Str("connID", connID).Msg("malformed join-room payload")
		return
	}
	if req.RoomID == "" {
		svc.logger.Warn().Str("connID", connID).Msg("join-room without room id")
		return
	}

	// a torn-down connection may still have frames in flight, it must not
	// re-enter the room table as an unreachable member
	if !svc.registry.Registered(connID) {
		svc.logger.Debug().Str("connID", connID).Msg("join from terminated connection, ignored")
		return
	}

	if req.DisplayName != "" {
		svc.registry.SetLabel(connID, req.DisplayName)
	}

	// a connection is in at most one room: moving is a leave for the old
	// room, and its members are told the same way as on disconnect
	if current := svc.rooms.RoomOf(connID); current != "" {
		if current == req.RoomID {
			svc.logger.Debug().
				Str("connID", connID).
				Str("roomID", current).
				Msg("already in room, join ignored")
			return
		}
		_, remaining := svc.rooms.Leave(connID)
		svc.reap(svc.dispatcher.BroadcastLeave(current, connID, remaining))
	}

	peer, count := svc.rooms.Join(req.RoomID, connID)
	svc.logger.Debug().
		Str("connID", connID).
		Str("roomID", req.RoomID).
		Int("members", count).
		Msg("connection joined room")

	svc.reap(svc.dispatcher.BroadcastJoin(req.RoomID, connID, peer))
}

func (svc *Service) sendMessage(connID string, env model.Envelope) {
	var req model.SendMessage
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		svc.logger.Error().Err(err).Str("connID", connID).Msg("malformed send-message payload")
		return
	}

	// the room table is authoritative, not the client-supplied room id
	roomID := svc.rooms.RoomOf(connID)
	if roomID == "" {
		svc.logger.Debug().Str("connID", connID).Msg("chat from connection outside any room")
		return
	}
	if req.RoomID != "" && req.RoomID != roomID {
		svc.logger.Warn().
			Str("connID", connID).
			Str("claimed", req.RoomID).
			Str("actual", roomID).
			Msg("chat room id mismatch")
	}

	svc.reap(svc.dispatcher.RelayChat(roomID, connID, req.Message))
}

// reap tears down connections whose send queue is stuck. A peer that cannot
// drain its queue is treated the same as a disconnected one.
func (svc *Service) reap(ids []string) {
	for _, id := range ids {
		svc.logger.Warn().Str("connID", id).Msg("peer unreachable, treating as disconnected")
		go svc.Disconnect(id)
	}
}
