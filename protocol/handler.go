package protocol

import (
	"encoding/json"
	"log/slog"

	"github.com/Chitollie/creatix/domain"
)

// Handler decodes inbound frames and drives the registry. Malformed frames
// and frames missing required fields are dropped without mutating any state;
// nothing is reported back to the sender.
type Handler struct {
	registry domain.Registry
}

func NewHandler(r domain.Registry) *Handler {
	return &Handler{registry: r}
}

func (h *Handler) Handle(conn domain.Connection, data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Warn("invalid frame", "clientId", conn.ID(), "error", err)
		return
	}

	switch env.Type {
	case domain.TypeJoinRoom:
		h.joinRoom(conn, env.Data)
	case domain.TypeChatMessage:
		h.chatMessage(conn, env.Data)
	case domain.TypeGameJoin:
		h.gameJoin(conn, env.Data)
	case domain.TypeGamePos:
		h.gamePos(conn, env.Data)
	case domain.TypeVoiceOffer, domain.TypeVoiceAnswer, domain.TypeVoiceICE:
		h.voice(conn, env.Type, env.Data)
	case domain.TypeSignal:
		h.signal(conn, env.Data)
	default:
		slog.Debug("unknown message type", "clientId", conn.ID(), "type", env.Type)
	}
}

func (h *Handler) joinRoom(conn domain.Connection, data json.RawMessage) {
	var room string
	if err := json.Unmarshal(data, &room); err != nil || room == "" {
		slog.Warn("joinRoom without room", "clientId", conn.ID())
		return
	}
	h.registry.Subscribe(conn.ID(), room)
}

func (h *Handler) chatMessage(conn domain.Connection, data json.RawMessage) {
	var p domain.ChatPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		slog.Warn("malformed chatMessage", "clientId", conn.ID())
		return
	}
	h.registry.Publish(p.Room, domain.ChatMessage{User: p.User, Message: p.Message})
}

func (h *Handler) gameJoin(conn domain.Connection, data json.RawMessage) {
	var p domain.GameJoinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.GameID.String() == "" {
		slog.Warn("malformed game:join", "clientId", conn.ID())
		return
	}

	pos := domain.DefaultSpawn
	if p.Pos != nil {
		pos = *p.Pos
	}
	state := domain.PlayerState{
		UserID:   p.UserID,
		Username: p.Username,
		Colors:   p.Colors,
		Pos:      pos,
	}
	h.registry.Join(conn, "game:"+p.GameID.String(), state)
}

func (h *Handler) gamePos(conn domain.Connection, data json.RawMessage) {
	var p domain.GamePosPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Pos == nil {
		slog.Warn("malformed game:pos", "clientId", conn.ID())
		return
	}
	h.registry.UpdatePosition(conn.ID(), *p.Pos)
}

// voice relays a call-setup payload to the addressed connection, verbatim
// except for the added from field. Unknown targets are dropped silently.
func (h *Handler) voice(conn domain.Connection, msgType string, data json.RawMessage) {
	var p domain.VoicePayload
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" {
		slog.Warn("malformed signaling message", "clientId", conn.ID(), "type", msgType)
		return
	}

	target := p.To
	p.To = ""
	p.From = conn.ID()

	frame, err := domain.Encode(msgType, p)
	if err != nil {
		slog.Error("encode signaling frame", "error", err)
		return
	}
	if !h.registry.Relay(target, frame) {
		slog.Debug("signaling target not connected", "clientId", conn.ID(), "target", target)
	}
}

// signal is the generic pass-through: the whole object is forwarded to
// data.to with from overwritten and every other key untouched.
func (h *Handler) signal(conn domain.Connection, data json.RawMessage) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		slog.Warn("malformed signal", "clientId", conn.ID())
		return
	}
	var target string
	if err := json.Unmarshal(fields["to"], &target); err != nil || target == "" {
		slog.Warn("signal without to", "clientId", conn.ID())
		return
	}

	from, err := json.Marshal(conn.ID())
	if err != nil {
		slog.Error("encode sender id", "error", err)
		return
	}
	fields["from"] = from

	frame, err := domain.Encode(domain.TypeSignal, fields)
	if err != nil {
		slog.Error("encode signal frame", "error", err)
		return
	}
	if !h.registry.Relay(target, frame) {
		slog.Debug("signal target not connected", "clientId", conn.ID(), "target", target)
	}
}
