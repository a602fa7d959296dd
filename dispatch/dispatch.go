package dispatch

import (
	"errors"
	"time"

	"github.com/mindbridge/signaling/model"
	"github.com/mindbridge/signaling/registry"
	"github.com/rs/zerolog"
)

type Registry interface {
	Send(id string, env model.Envelope) error
	Label(id string) string
}

type Rooms interface {
	Members(roomID string) []string
}

// Dispatcher fans room-level events out to room members: join and leave
// presence, member counts and chat. Delivery is best effort, a failed send
// never affects the other members. Connections whose send queue is full are
// reported back so the lifecycle manager can treat them as disconnected.
type Dispatcher struct {
	logger zerolog.Logger
	reg    Registry
	rooms  Rooms
}

func New(logger *zerolog.Logger, reg Registry, rooms Rooms) *Dispatcher {
	return &Dispatcher{
		logger: logger.With().Str("component", "dispatch").Logger(),
		reg:    reg,
		rooms:  rooms,
	}
}

// BroadcastJoin announces a new member. The pairing partner, when there is
// one, gets user-connected and is expected to initiate the offer. Everyone
// in the room, the new member included, gets the updated member count.
func (d *Dispatcher) BroadcastJoin(roomID, newID, peerID string) (unreachable []string) {
	if peerID != "" {
		env, err := model.NewEnvelope(model.EventUserConnected, model.PeerEvent{
			ConnectionID: newID,
			DisplayName:  d.reg.Label(newID),
		})
		if err != nil {
			d.logger.Error().Err(err).Msg("failed to marshal user-connected")
			return nil
		}
		unreachable = d.deliver(roomID, env, []string{peerID}, "")
	}

	members := d.rooms.Members(roomID)
	return append(unreachable, d.roomUsers(roomID, members, len(members))...)
}

// BroadcastLeave announces a departure to the remaining members along with
// the updated member count.
func (d *Dispatcher) BroadcastLeave(roomID, leftID string, remaining []string) (unreachable []string) {
	env, err := model.NewEnvelope(model.EventUserDisconnected, model.PeerEvent{
		ConnectionID: leftID,
		DisplayName:  d.reg.Label(leftID),
	})
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to marshal user-disconnected")
		return nil
	}
	unreachable = d.deliver(roomID, env, remaining, "")
	return append(unreachable, d.roomUsers(roomID, remaining, len(remaining))...)
}

// RelayChat delivers a chat message to every room member except the sender,
// who renders its own copy optimistically. The timestamp is stamped once
// here so all recipients agree on it.
func (d *Dispatcher) RelayChat(roomID, senderID, text string) (unreachable []string) {
	env, err := model.NewEnvelope(model.EventReceiveMessage, model.ReceiveMessage{
		Message:   text,
		SenderID:  senderID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to marshal receive-message")
		return nil
	}
	return d.deliver(roomID, env, d.rooms.Members(roomID), senderID)
}

func (d *Dispatcher) roomUsers(roomID string, members []string, count int) []string {
	env, err := model.NewEnvelope(model.EventRoomUsers, model.RoomUsers{Count: count})
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to marshal room-users")
		return nil
	}
	return d.deliver(roomID, env, members, "")
}

func (d *Dispatcher) deliver(roomID string, env model.Envelope, targets []string, skip string) []string {
	var unreachable []string
	for _, id := range targets {
		if id == skip {
			continue
		}
		err := d.reg.Send(id, env)
		if err == nil {
			continue
		}
		if errors.Is(err, registry.ErrPeerUnreachable) {
			unreachable = append(unreachable, id)
		}
		d.logger.Debug().
			Str("roomID", roomID).
			Str("event", env.Event).
			Str("dst", id).
			Err(err).
			Msg("broadcast delivery failed")
	}
	return unreachable
}
