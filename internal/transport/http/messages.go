package http

import (
	"encoding/json"

	"github.com/mrkazawa/quiz-quest-app-sub000/internal/domain"
)

// Every frame on the wire is a tagged envelope. Payload shapes are explicit
// structs validated at this boundary; nothing duck-typed reaches the engine.
type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type createRoomPayload struct {
	QuizID        string `json:"quizId" validate:"required"`
	HostSessionID string `json:"hostSessionId" validate:"required"`
}

type joinPayload struct {
	RoomCode    string `json:"roomCode" validate:"required,len=6,numeric"`
	Identity    string `json:"identity" validate:"required"`
	DisplayName string `json:"displayName" validate:"required"`
}

type answerPayload struct {
	RoomCode string `json:"roomCode" validate:"required,len=6,numeric"`
	Option   *int   `json:"option" validate:"required,min=0,max=3"`
}

type roomCodePayload struct {
	RoomCode string `json:"roomCode" validate:"required,len=6,numeric"`
}

type roomCreatedPayload struct {
	RoomCode string `json:"roomCode"`
}

type joinedPayload struct {
	Player domain.Player   `json:"player"`
	Room   domain.RoomInfo `json:"room"`
}

type playerEventPayload struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName,omitempty"`
}

// questionPayload is the client-facing question view. The correct index is
// deliberately absent until question-ended.
type questionPayload struct {
	QuestionID    int      `json:"questionId"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	TimeLimit     int      `json:"timeLimit"`
	QuestionIndex int      `json:"questionIndex"`
	QuestionCount int      `json:"questionCount"`
}

type completedPayload struct {
	RoomCode string           `json:"roomCode"`
	QuizName string           `json:"quizName"`
	Rankings []domain.Ranking `json:"rankings"`
}

type rankingsPayload struct {
	RoomCode string           `json:"roomCode"`
	Rankings []domain.Ranking `json:"rankings"`
}
