package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Chitollie/creatix/domain"
)

// Hub owns all shared relay state: the connection directory, the presence
// registry with its derived room index, and the chat subscription relation.
// One lock guards everything, so a broadcast can never read membership that
// a concurrent join or disconnect has half-applied.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]domain.Connection
	sessions map[string]*session
	rooms    map[string]map[string]struct{} // room id -> member connection ids
	topics   map[string]map[string]struct{} // chat topic -> subscriber connection ids
	subs     map[string]map[string]struct{} // connection id -> subscribed topics
}

type session struct {
	roomID string
	state  domain.PlayerState
}

func New() *Hub {
	return &Hub{
		conns:    make(map[string]domain.Connection),
		sessions: make(map[string]*session),
		rooms:    make(map[string]map[string]struct{}),
		topics:   make(map[string]map[string]struct{}),
		subs:     make(map[string]map[string]struct{}),
	}
}

func (h *Hub) Connect(conn domain.Connection) {
	h.mu.Lock()
	h.conns[conn.ID()] = conn
	count := len(h.conns)
	h.mu.Unlock()

	slog.Info("client connected", "clientId", conn.ID(), "clients", count)
}

// Disconnect removes the connection from the directory, every chat topic and
// the presence registry in one step, notifying the room it was in. After it
// returns no broadcast can target the connection.
func (h *Hub) Disconnect(conn domain.Connection) {
	id := conn.ID()

	h.mu.Lock()
	if _, ok := h.conns[id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, id)
	for topic := range h.subs[id] {
		h.dropSubscriberLocked(topic, id)
	}
	delete(h.subs, id)
	roomID := h.dropSessionLocked(id)
	if roomID != "" {
		h.notifyLeftLocked(roomID, id)
	}
	count := len(h.conns)
	h.mu.Unlock()

	slog.Info("client disconnected", "clientId", id, "room", roomID, "clients", count)
}

// Join registers the session and delivers both sides of the handshake inside
// one critical section: the game:players snapshot to the joiner and the
// game:player-joined notice to everyone already in the room. Doing both under
// the lock keeps the snapshot and the notice stream mutually consistent.
//
// A connection holds at most one session, so a join while already in another
// room leaves that room first, with a game:player-left notice to it.
func (h *Hub) Join(conn domain.Connection, roomID string, state domain.PlayerState) {
	id := conn.ID()
	state.ID = id

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[id]; !ok {
		return
	}

	if prev := h.dropSessionLocked(id); prev != "" && prev != roomID {
		h.notifyLeftLocked(prev, id)
	}

	members := h.rooms[roomID]
	if members == nil {
		members = make(map[string]struct{})
		h.rooms[roomID] = members
	}

	others := make([]domain.PlayerState, 0, len(members))
	for mid := range members {
		if s, ok := h.sessions[mid]; ok {
			others = append(others, s.state)
		}
	}

	h.sessions[id] = &session{roomID: roomID, state: state}
	members[id] = struct{}{}

	snapshot, err := domain.Encode(domain.TypeGamePlayers, others)
	if err != nil {
		slog.Error("encode snapshot", "error", err)
		return
	}
	conn.Send(snapshot)

	notice, err := domain.Encode(domain.TypePlayerJoined, state)
	if err != nil {
		slog.Error("encode join notice", "error", err)
		return
	}
	h.deliverLocked(members, id, notice)

	slog.Info("player joined", "room", roomID, "clientId", id, "players", len(members))
}

// UpdatePosition stores the new position and echoes it to the rest of the
// room, never back to the mover. Reports false when the connection holds no
// session.
func (h *Hub) UpdatePosition(connID string, pos domain.Position) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, ok := h.sessions[connID]
	if !ok {
		return false
	}
	sess.state.Pos = pos

	frame, err := domain.Encode(domain.TypeGamePos, domain.PosNotice{ID: connID, Pos: pos})
	if err != nil {
		slog.Error("encode position notice", "error", err)
		return false
	}
	h.deliverLocked(h.rooms[sess.roomID], connID, frame)
	return true
}

// Relay forwards a pre-encoded frame to one connection. Unknown targets are
// dropped; there is no feedback channel to the sender.
func (h *Hub) Relay(targetID string, frame []byte) bool {
	h.mu.RLock()
	conn, ok := h.conns[targetID]
	h.mu.RUnlock()

	if !ok {
		return false
	}
	return conn.Send(frame) == nil
}

// Subscribe adds the connection to a chat topic. Idempotent; ignored for
// connections that already disconnected.
func (h *Hub) Subscribe(connID, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[string]struct{})
	}
	h.topics[topic][connID] = struct{}{}
	if h.subs[connID] == nil {
		h.subs[connID] = make(map[string]struct{})
	}
	h.subs[connID][topic] = struct{}{}
}

func (h *Hub) Unsubscribe(connID, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropSubscriberLocked(topic, connID)
	if subs, ok := h.subs[connID]; ok {
		delete(subs, topic)
		if len(subs) == 0 {
			delete(h.subs, connID)
		}
	}
}

// Publish stamps the message and delivers it to every subscriber of the
// topic, sender included. Stamping happens under the lock so timestamps are
// non-decreasing in delivery order within a topic.
func (h *Hub) Publish(topic string, msg domain.ChatMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.topics[topic]
	if len(subs) == 0 {
		return
	}

	msg.Ts = time.Now().UnixMilli()
	frame, err := domain.Encode(domain.TypeChatMessage, msg)
	if err != nil {
		slog.Error("encode chat message", "error", err)
		return
	}
	h.deliverLocked(subs, "", frame)
}

func (h *Hub) Stats() domain.Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return domain.Stats{
		Rooms:       len(h.rooms),
		Sessions:    len(h.sessions),
		Topics:      len(h.topics),
		Connections: len(h.conns),
	}
}

// deliverLocked fans a frame out to every id in members except exclude.
// Send never blocks; a full buffer means the client stalled and its read
// pump will tear the connection down shortly.
func (h *Hub) deliverLocked(members map[string]struct{}, exclude string, frame []byte) {
	for id := range members {
		if id == exclude {
			continue
		}
		conn, ok := h.conns[id]
		if !ok {
			continue
		}
		if err := conn.Send(frame); err != nil {
			slog.Warn("dropping frame for stalled client", "clientId", id, "error", err)
		}
	}
}

// dropSessionLocked removes the session and its room index entry, returning
// the room the connection was in, or "".
func (h *Hub) dropSessionLocked(id string) string {
	sess, ok := h.sessions[id]
	if !ok {
		return ""
	}
	delete(h.sessions, id)
	if members, ok := h.rooms[sess.roomID]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(h.rooms, sess.roomID)
		}
	}
	return sess.roomID
}

func (h *Hub) notifyLeftLocked(roomID, id string) {
	members := h.rooms[roomID]
	if len(members) == 0 {
		return
	}
	frame, err := domain.Encode(domain.TypePlayerLeft, domain.LeftNotice{ID: id})
	if err != nil {
		slog.Error("encode leave notice", "error", err)
		return
	}
	h.deliverLocked(members, "", frame)
}

func (h *Hub) dropSubscriberLocked(topic, id string) {
	subs, ok := h.topics[topic]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}
