package model

import "encoding/json"

// Client to server events.
const (
	EventJoinRoom    = "join-room"
	EventSendMessage = "send-message"
)

// Server to client events.
const (
	EventConnected        = "connected"
	EventRoomUsers        = "room-users"
	EventUserConnected    = "user-connected"
	EventUserDisconnected = "user-disconnected"
	EventReceiveMessage   = "receive-message"
)

// Signaling events, relayed between peers. The server never looks inside
// sdp/candidate blobs.
const (
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
)

// Envelope is a single text frame on the wire.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(event string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Payload: b}, nil
}

type JoinRoom struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName,omitempty"`
}

// Connected is the first frame sent to every client, carrying the id it
// should use as sender in signaling payloads.
type Connected struct {
	ConnectionID string `json:"connectionId"`
}

type RoomUsers struct {
	Count int `json:"count"`
}

// PeerEvent is the body of user-connected and user-disconnected.
// DisplayName is the label the peer supplied at join time, when it did.
type PeerEvent struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName,omitempty"`
}

// Signal is the body of offer, answer and ice-candidate envelopes.
// Sender is re-assigned by the server based on the originating connection.
type Signal struct {
	Target    string          `json:"target"`
	Sender    string          `json:"sender,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type SendMessage struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type ReceiveMessage struct {
	Message   string `json:"message"`
	SenderID  string `json:"senderId"`
	Timestamp string `json:"timestamp"`
}

// Wire is a connection's message channel pair. RX carries inbound envelopes
// from the transport to the service, TX carries outbound envelopes back.
// TX is bounded so one slow client cannot back-pressure unrelated rooms.
type Wire struct {
	RX chan Envelope
	TX chan Envelope
}

const DefaultSendQueueDepth = 256

func NewWire(sendQueueDepth int) Wire {
	if sendQueueDepth <= 0 {
		sendQueueDepth = DefaultSendQueueDepth
	}
	return Wire{
		RX: make(chan Envelope),
		TX: make(chan Envelope, sendQueueDepth),
	}
}
