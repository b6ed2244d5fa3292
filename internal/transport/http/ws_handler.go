package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mrkazawa/quiz-quest-app-sub000/internal/domain"
	"github.com/mrkazawa/quiz-quest-app-sub000/internal/game"
)

// WSHandler is the event-dispatch layer in front of the game engine: it
// turns websocket frames into engine calls and engine results back into
// frames. The engine itself never emits events; everything outbound funnels
// through here.
type WSHandler struct {
	service  *game.Service
	history  game.HistoryRecorder
	hub      *hub
	validate *validator.Validate
	upgrader websocket.Upgrader
}

func NewWSHandler(service *game.Service, history game.HistoryRecorder) *WSHandler {
	return &WSHandler{
		service:  service,
		history:  history,
		hub:      newHub(),
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// clientState is what the reader loop remembers about its connection once it
// has entered a room.
type clientState struct {
	roomCode string
	isHost   bool
}

// ServeWS upgrades the request and runs the connection's read loop. One
// connection id lives exactly as long as the socket; identities and host
// sessions outlive it.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan outboundMessage[any], 16),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	var state clientState
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r.Context(), c, &state, inbound)
	}

	// Socket gone. A player drop is a silent disconnect (membership
	// survives); a host drop releases the session binding so a reconnect
	// can re-authorize.
	if state.roomCode != "" {
		if state.isHost {
			h.service.Hosts().Release(c.id)
		} else {
			h.service.Disconnect(state.roomCode, c.id)
		}
		h.hub.remove(state.roomCode, c)
	}
	c.shutdown()
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, c *client, state *clientState, inbound inboundMessage) {
	switch inbound.Type {
	case "create-room":
		h.handleCreateRoom(ctx, c, state, inbound.Payload)
	case "join":
		h.handleJoin(c, state, inbound.Payload)
	case "leave":
		h.handleLeave(c, state, inbound.Payload)
	case "start-quiz":
		h.handleStartQuiz(c, inbound.Payload)
	case "submit-answer":
		h.handleSubmitAnswer(c, inbound.Payload)
	case "request-advance":
		h.handleRequestAdvance(ctx, c, inbound.Payload)
	case "get-room-info":
		h.handleRoomInfo(c, inbound.Payload)
	case "get-rankings":
		h.handleRankings(c, inbound.Payload)
	case "delete-room":
		h.handleDeleteRoom(c, inbound.Payload)
	default:
		h.sendError(c, "unsupported message type")
	}
}

func (h *WSHandler) decode(c *client, raw json.RawMessage, into any) bool {
	if err := json.Unmarshal(raw, into); err != nil {
		h.sendError(c, "invalid payload")
		return false
	}
	if err := h.validate.Struct(into); err != nil {
		h.sendError(c, "invalid payload: "+err.Error())
		return false
	}
	return true
}

func (h *WSHandler) handleCreateRoom(ctx context.Context, c *client, state *clientState, raw json.RawMessage) {
	var payload createRoomPayload
	if !h.decode(c, raw, &payload) {
		return
	}
	code, err := h.service.CreateRoom(ctx, payload.QuizID, c.id, payload.HostSessionID)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}
	h.detachCurrent(c, state, code)
	state.roomCode = code
	state.isHost = true
	h.hub.add(code, c)
	c.push(outboundMessage[any]{Type: "room-created", Payload: roomCreatedPayload{RoomCode: code}})
}

func (h *WSHandler) handleJoin(c *client, state *clientState, raw json.RawMessage) {
	var payload joinPayload
	if !h.decode(c, raw, &payload) {
		return
	}
	player, err := h.service.Join(payload.RoomCode, c.id, payload.Identity, payload.DisplayName)
	if err != nil {
		c.push(outboundMessage[any]{Type: "join-error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	info, _ := h.service.RoomInfo(payload.RoomCode)
	if state.isHost {
		// The socket is a player from here on; drop its host binding.
		h.service.Hosts().Release(c.id)
	}
	h.detachCurrent(c, state, payload.RoomCode)
	state.roomCode = payload.RoomCode
	state.isHost = false
	h.hub.add(payload.RoomCode, c)
	c.push(outboundMessage[any]{Type: "joined", Payload: joinedPayload{Player: player, Room: info}})
	h.hub.broadcast(payload.RoomCode, outboundMessage[any]{Type: "player-joined", Payload: playerEventPayload{
		Identity:    player.Identity,
		DisplayName: player.DisplayName,
	}})
}

// detachCurrent drops the connection from the room it already occupies before
// it settles into entering. A socket that hops rooms without this keeps its
// old hub entry, and the old room's next broadcast lands on a queue that may
// already be closed.
func (h *WSHandler) detachCurrent(c *client, state *clientState, entering string) {
	if state.roomCode == "" || state.roomCode == entering {
		return
	}
	if !state.isHost {
		h.service.Disconnect(state.roomCode, c.id)
	}
	h.hub.remove(state.roomCode, c)
	state.roomCode = ""
	state.isHost = false
}

func (h *WSHandler) handleLeave(c *client, state *clientState, raw json.RawMessage) {
	var payload roomCodePayload
	if !h.decode(c, raw, &payload) {
		return
	}
	if payload.RoomCode != state.roomCode {
		h.sendError(c, "not in that room")
		return
	}
	identity, removed := h.service.Leave(payload.RoomCode, c.id)
	h.hub.remove(payload.RoomCode, c)
	state.roomCode = ""
	if removed {
		h.hub.broadcast(payload.RoomCode, outboundMessage[any]{Type: "player-left", Payload: playerEventPayload{Identity: identity}})
	}
}

func (h *WSHandler) handleStartQuiz(c *client, raw json.RawMessage) {
	var payload roomCodePayload
	if !h.decode(c, raw, &payload) {
		return
	}
	if err := h.service.AuthorizeHost(payload.RoomCode, c.id); err != nil {
		h.sendError(c, err.Error())
		return
	}
	if err := h.service.Start(payload.RoomCode); err != nil {
		h.sendError(c, err.Error())
		return
	}
	h.hub.broadcast(payload.RoomCode, outboundMessage[any]{Type: "quiz-started", Payload: roomCreatedPayload{RoomCode: payload.RoomCode}})
	h.pushQuestion(payload.RoomCode)
}

func (h *WSHandler) handleSubmitAnswer(c *client, raw json.RawMessage) {
	var payload answerPayload
	if !h.decode(c, raw, &payload) {
		return
	}
	outcome, err := h.service.SubmitAnswer(payload.RoomCode, c.id, *payload.Option)
	if err != nil {
		c.push(outboundMessage[any]{Type: "answer-error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	c.push(outboundMessage[any]{Type: "answer-result", Payload: outcome})
	if h.service.AllAnswered(payload.RoomCode) {
		h.finishQuestion(payload.RoomCode)
	}
}

// handleRequestAdvance moves the room forward one step per host press: an
// open question is closed first (results broadcast), the next press advances
// to the following question or, past the last one, to completion.
func (h *WSHandler) handleRequestAdvance(ctx context.Context, c *client, raw json.RawMessage) {
	var payload roomCodePayload
	if !h.decode(c, raw, &payload) {
		return
	}
	if err := h.service.AuthorizeHost(payload.RoomCode, c.id); err != nil {
		h.sendError(c, err.Error())
		return
	}

	if results, ended := h.service.EndQuestion(payload.RoomCode); ended {
		h.hub.broadcast(payload.RoomCode, outboundMessage[any]{Type: "question-ended", Payload: results})
		return
	}

	advance, err := h.service.Advance(payload.RoomCode)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}
	if !advance.Completed {
		h.pushQuestion(payload.RoomCode)
		return
	}
	h.completeQuiz(ctx, payload.RoomCode)
}

func (h *WSHandler) handleRoomInfo(c *client, raw json.RawMessage) {
	var payload roomCodePayload
	if !h.decode(c, raw, &payload) {
		return
	}
	info, err := h.service.RoomInfo(payload.RoomCode)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}
	c.push(outboundMessage[any]{Type: "room-info", Payload: info})
}

func (h *WSHandler) handleRankings(c *client, raw json.RawMessage) {
	var payload roomCodePayload
	if !h.decode(c, raw, &payload) {
		return
	}
	rankings, err := h.service.Rankings(payload.RoomCode)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}
	c.push(outboundMessage[any]{Type: "rankings", Payload: rankingsPayload{RoomCode: payload.RoomCode, Rankings: rankings}})
}

func (h *WSHandler) handleDeleteRoom(c *client, raw json.RawMessage) {
	var payload roomCodePayload
	if !h.decode(c, raw, &payload) {
		return
	}
	if err := h.service.AuthorizeHost(payload.RoomCode, c.id); err != nil {
		h.sendError(c, err.Error())
		return
	}
	if !h.service.DeleteRoom(payload.RoomCode) {
		h.sendError(c, domain.ErrRoomNotFound.Error())
		return
	}
	h.hub.broadcast(payload.RoomCode, outboundMessage[any]{Type: "room-deleted", Payload: roomCreatedPayload{RoomCode: payload.RoomCode}})
	h.hub.dropRoom(payload.RoomCode)
}

// pushQuestion broadcasts the open question (without its answer) and arms the
// deadline timer that force-ends it when time runs out.
func (h *WSHandler) pushQuestion(roomCode string) {
	q, index, total, ok := h.service.CurrentQuestion(roomCode)
	if !ok {
		return
	}
	h.hub.broadcast(roomCode, outboundMessage[any]{Type: "new-question", Payload: questionPayload{
		QuestionID:    q.ID,
		Text:          q.Text,
		Options:       q.Options,
		TimeLimit:     q.TimeLimitSeconds,
		QuestionIndex: index,
		QuestionCount: total,
	}})
	h.service.ScheduleDeadline(roomCode, h.finishQuestion)
}

func (h *WSHandler) finishQuestion(roomCode string) {
	results, ended := h.service.EndQuestion(roomCode)
	if !ended {
		// Late timer callback against a question that already closed.
		return
	}
	h.hub.broadcast(roomCode, outboundMessage[any]{Type: "question-ended", Payload: results})
}

func (h *WSHandler) completeQuiz(ctx context.Context, roomCode string) {
	rankings, err := h.service.Rankings(roomCode)
	if err != nil {
		return
	}
	info, err := h.service.RoomInfo(roomCode)
	if err != nil {
		return
	}
	if err := h.history.RecordCompletedQuiz(ctx, roomCode, info.QuizName, rankings); err != nil {
		log.Printf("record quiz history for room %s: %v", roomCode, err)
	}
	h.hub.broadcast(roomCode, outboundMessage[any]{Type: "quiz-completed", Payload: completedPayload{
		RoomCode: roomCode,
		QuizName: info.QuizName,
		Rankings: rankings,
	}})
}

func (h *WSHandler) sendError(c *client, message string) {
	c.push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}})
}
