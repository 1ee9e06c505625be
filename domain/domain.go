package domain

import "encoding/json"

// Message type names on the wire. They match the socket.io event names the
// Creatix web client already uses.
const (
	TypeJoinRoom     = "joinRoom"
	TypeChatMessage  = "chatMessage"
	TypeGameJoin     = "game:join"
	TypeGamePos      = "game:pos"
	TypeGamePlayers  = "game:players"
	TypePlayerJoined = "game:player-joined"
	TypePlayerLeft   = "game:player-left"
	TypeVoiceOffer   = "voice:offer"
	TypeVoiceAnswer  = "voice:answer"
	TypeVoiceICE     = "voice:ice"
	TypeSignal       = "signal"
)

// Envelope is the frame exchanged on the websocket.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode marshals data and wraps it in an Envelope frame.
func Encode(msgType string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Data: raw})
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DefaultSpawn is where a player appears when game:join carries no position.
var DefaultSpawn = Position{X: 50, Y: 85}

// PlayerState is the presence state of one connection inside a game room.
// ID is the connection id, not the account id.
type PlayerState struct {
	ID       string            `json:"id"`
	UserID   int64             `json:"userId"`
	Username string            `json:"username"`
	Colors   map[string]string `json:"colors,omitempty"`
	Pos      Position          `json:"pos"`
}

// GameJoinPayload is the inbound game:join body. GameID is a json.Number
// because the client sends the numeric game id as-is.
type GameJoinPayload struct {
	GameID   json.Number       `json:"gameId"`
	UserID   int64             `json:"userId"`
	Username string            `json:"username"`
	Colors   map[string]string `json:"colors"`
	Pos      *Position         `json:"pos"`
}

type GamePosPayload struct {
	GameID json.Number `json:"gameId"`
	Pos    *Position   `json:"pos"`
}

// ChatPayload is the inbound chatMessage body.
type ChatPayload struct {
	Room    string `json:"room"`
	Message string `json:"message"`
	User    string `json:"user"`
}

// ChatMessage is the outbound chat frame. Ts is assigned by the hub at
// dispatch time, in epoch milliseconds.
type ChatMessage struct {
	User    string `json:"user"`
	Message string `json:"message"`
	Ts      int64  `json:"ts"`
}

type PosNotice struct {
	ID  string   `json:"id"`
	Pos Position `json:"pos"`
}

type LeftNotice struct {
	ID string `json:"id"`
}

// VoicePayload covers voice:offer, voice:answer and voice:ice in both
// directions. The raw fields are never re-interpreted, so the body a caller
// sent is forwarded byte for byte.
type VoicePayload struct {
	To        string          `json:"to,omitempty"`
	From      string          `json:"from,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type Stats struct {
	Rooms       int `json:"rooms"`
	Sessions    int `json:"sessions"`
	Topics      int `json:"topics"`
	Connections int `json:"connections"`
}

type Connection interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// Registry is the single synchronization domain for presence state, chat
// subscriptions and fan-out. Every operation is atomic with respect to the
// others; membership is never read outside it.
type Registry interface {
	Connect(conn Connection)
	Disconnect(conn Connection)
	Join(conn Connection, roomID string, state PlayerState)
	UpdatePosition(connID string, pos Position) bool
	Relay(targetID string, frame []byte) bool
	Subscribe(connID, topic string)
	Unsubscribe(connID, topic string)
	Publish(topic string, msg ChatMessage)
	Stats() Stats
}

type MessageHandler interface {
	Handle(conn Connection, data []byte)
}
