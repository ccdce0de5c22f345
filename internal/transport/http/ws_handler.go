package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"quiz-battle-service/internal/battle"
	"quiz-battle-service/internal/domain"
	"github.com/gorilla/websocket"
)

// ChapterSource resolves a chapter label to its question set. Used only on
// the start-battle path; the room actor itself treats questions as opaque.
type ChapterSource interface {
	ResolveChapter(ctx context.Context, chapterID string) ([]domain.Question, error)
}

// WSHandler owns the websocket endpoints and wires connections into room
// actors. It is an explicit connection manager: no process-wide state.
type WSHandler struct {
	rooms    *battle.Registry
	chapters ChapterSource
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(rooms *battle.Registry, chapters ChapterSource, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		rooms:    rooms,
		chapters: chapters,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type setReadyPayload struct {
	IsReady bool `json:"isReady"`
}

type startBattlePayload struct {
	Chapter   string            `json:"chapter"`
	Questions []domain.Question `json:"questions"`
}

type answerPayload struct {
	QuestionIndex int   `json:"questionIndex"`
	Answer        int   `json:"answer"`
	Correct       *bool `json:"correct"`
	TimeSpent     int64 `json:"timeSpent"`
}

type chatPayload struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

type outboundMessage struct {
	Type    string       `json:"type"`
	Payload domain.Event `json:"payload"`
}

func envelope(ev domain.Event) outboundMessage {
	return outboundMessage{Type: ev.EventType(), Payload: ev}
}

// ServeBattle upgrades the request and runs a participant session: inbound
// envelopes are dispatched to the room actor, room broadcasts are pumped
// back out.
func (h *WSHandler) ServeBattle(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	userID := r.URL.Query().Get("userId")
	username := r.URL.Query().Get("name")
	chapter := r.URL.Query().Get("chapter")
	if roomID == "" || userID == "" || username == "" {
		http.Error(w, "missing roomId, userId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	room := h.rooms.GetOrCreate(roomID)
	snapshot, sub, err := room.Join(userID, username, chapter)
	if err != nil {
		_ = conn.WriteJSON(envelope(domain.ErrorEvent{Code: domain.ErrorCode(err), Message: err.Error()}))
		return
	}
	defer room.Leave(userID, sub)

	send, closeSignals, writerDone, pumpDone := h.startPumps(conn, sub, envelope(domain.RoomJoined{Room: snapshot}))

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if inbound.Type == "leaveRoom" {
			break
		}
		if err := h.dispatchParticipant(r.Context(), room, userID, username, inbound); err != nil {
			select {
			case send <- envelope(domain.ErrorEvent{Code: domain.ErrorCode(err), Message: err.Error()}):
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-pumpDone
	close(send)
	<-writerDone
}

// ServeSpectate runs a read-only session. Spectators receive the same
// broadcast stream as participants minus chat, and every write event except
// chat is rejected with FORBIDDEN.
func (h *WSHandler) ServeSpectate(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	if roomID == "" {
		http.Error(w, "missing roomId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	room, ok := h.rooms.Get(roomID)
	if !ok {
		err := domain.ErrRoomNotFound
		_ = conn.WriteJSON(envelope(domain.ErrorEvent{Code: domain.ErrorCode(err), Message: err.Error()}))
		return
	}
	snapshot, sub, err := room.Spectate()
	if err != nil {
		_ = conn.WriteJSON(envelope(domain.ErrorEvent{Code: domain.ErrorCode(err), Message: err.Error()}))
		return
	}
	defer room.Detach(sub)

	send, closeSignals, writerDone, pumpDone := h.startPumps(conn, sub, envelope(domain.RoomJoined{Room: snapshot}))

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if inbound.Type == "leaveRoom" {
			break
		}
		if err := h.dispatchSpectator(room, inbound); err != nil {
			select {
			case send <- envelope(domain.ErrorEvent{Code: domain.ErrorCode(err), Message: err.Error()}):
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-pumpDone
	close(send)
	<-writerDone
}

// ServeForceEnd is the admin hook to short-circuit a room to ENDED with
// whatever partial ranking currently exists.
func (h *WSHandler) ServeForceEnd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	roomID := r.URL.Query().Get("roomId")
	room, ok := h.rooms.Get(roomID)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if err := room.ForceEnd("stopped"); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// startPumps wires the writer goroutine (single writer per connection) and
// the broadcast pump from the room subscription. The greeting is queued
// before the pump starts so the snapshot always reaches the client ahead of
// any broadcast already buffered in the subscription.
func (h *WSHandler) startPumps(conn *websocket.Conn, sub *battle.Subscriber, greeting outboundMessage) (chan outboundMessage, chan struct{}, chan struct{}, chan struct{}) {
	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	pumpDone := make(chan struct{})

	send <- greeting

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Warn("ws write error", "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(pumpDone)
		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					// Room expired; unblock the read loop.
					_ = conn.Close()
					return
				}
				select {
				case send <- envelope(ev):
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	return send, closeSignals, writerDone, pumpDone
}

func (h *WSHandler) dispatchParticipant(ctx context.Context, room *battle.Room, userID, username string, inbound inboundMessage) error {
	switch inbound.Type {
	case "setReady":
		var payload setReadyPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return fmt.Errorf("invalid setReady payload")
		}
		return room.SetReady(userID, payload.IsReady)
	case "startBattle":
		var payload startBattlePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return fmt.Errorf("invalid startBattle payload")
		}
		questions := payload.Questions
		if len(questions) == 0 && payload.Chapter != "" && h.chapters != nil {
			resolved, err := h.chapters.ResolveChapter(ctx, payload.Chapter)
			if err != nil {
				return err
			}
			questions = resolved
		}
		return room.Start(userID, payload.Chapter, questions)
	case "answerQuestion":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return fmt.Errorf("invalid answerQuestion payload")
		}
		// payload.Correct is advisory only; the scoring engine recomputes
		// correctness from the question itself.
		return room.SubmitAnswer(userID, payload.QuestionIndex, payload.Answer, payload.TimeSpent)
	case "sendChatMessage":
		var payload chatPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return fmt.Errorf("invalid sendChatMessage payload")
		}
		name := payload.Username
		if name == "" {
			name = username
		}
		return room.Chat(name, payload.Message)
	default:
		return fmt.Errorf("unsupported message type %q", inbound.Type)
	}
}

func (h *WSHandler) dispatchSpectator(room *battle.Room, inbound inboundMessage) error {
	switch inbound.Type {
	case "joinBattleRoom", "setReady", "startBattle", "answerQuestion":
		return domain.ErrForbidden
	case "sendChatMessage":
		var payload chatPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return fmt.Errorf("invalid sendChatMessage payload")
		}
		name := payload.Username
		if name == "" {
			name = "spectator"
		}
		return room.Chat(name, payload.Message)
	default:
		return fmt.Errorf("unsupported message type %q", inbound.Type)
	}
}
