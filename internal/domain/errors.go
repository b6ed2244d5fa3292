package domain

import "errors"

var (
	// ErrRoomNotFound is returned when an operation references a room code
	// with no live room behind it.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomAlreadyStarted rejects a genuinely new identity joining after
	// the quiz started. Reconnecting identities are exempt.
	ErrRoomAlreadyStarted = errors.New("room already started")
	// ErrRoomNotActive rejects gameplay actions before the host starts the quiz.
	ErrRoomNotActive = errors.New("room not active")
	// ErrUnknownParticipant is returned for actions from a connection with no
	// membership mapping in the room.
	ErrUnknownParticipant = errors.New("unknown participant")
	// ErrNoCurrentQuestion rejects submissions while no question is open.
	ErrNoCurrentQuestion = errors.New("no current question")
	// ErrDuplicateAnswer rejects a second submission for the same question.
	ErrDuplicateAnswer = errors.New("answer already submitted for this question")
	// ErrUnauthorized rejects host actions from a connection whose host
	// session does not match the room's.
	ErrUnauthorized = errors.New("not authorized as host for this room")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
)
