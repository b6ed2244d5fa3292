package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/mrkazawa/quiz-quest-app-sub000/internal/domain"
)

// RoomStore abstracts how live rooms are kept (in-memory, Redis-marked, etc).
type RoomStore interface {
	// Put inserts the room under its code and reports false if the code is
	// already taken.
	Put(code string, room *Room) bool
	Get(code string) (*Room, bool)
	Delete(code string) bool
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// HistoryRecorder persists the final scoreboard of a completed quiz. The
// engine never calls it; the event-dispatch layer does, after Advance reports
// completion.
type HistoryRecorder interface {
	RecordCompletedQuiz(ctx context.Context, roomCode, quizName string, rankings []domain.Ranking) error
}

const (
	roomCodeModulus = 1_000_000 // codes are 6 ASCII digits
	maxCodeAttempts = 100
)

// Service owns every live room and exposes the engine's use cases. All state
// lives behind the injected RoomStore so tests can run isolated instances.
type Service struct {
	rooms   RoomStore
	quizzes QuizRepository
	hosts   *HostSessions
	sched   Scheduler
	now     func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewService(rooms RoomStore, quizzes QuizRepository) *Service {
	return NewServiceWithClock(rooms, quizzes, time.Now, WallScheduler{})
}

// NewServiceWithClock is test-only for deterministic timestamps and deadlines.
func NewServiceWithClock(rooms RoomStore, quizzes QuizRepository, now func() time.Time, sched Scheduler) *Service {
	return &Service{
		rooms:   rooms,
		quizzes: quizzes,
		hosts:   NewHostSessions(),
		sched:   sched,
		now:     now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Hosts exposes the host-session tracker for the transport layer.
func (s *Service) Hosts() *HostSessions { return s.hosts }

// CreateRoom loads the quiz, allocates a fresh 6-digit code, and registers a
// not-yet-active room owned by the given host session.
func (s *Service) CreateRoom(ctx context.Context, quizID, hostConnID, hostSessionID string) (string, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return "", err
	}
	if err := domain.ValidateQuiz(quiz); err != nil {
		return "", err
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := s.newCode()
		room := NewRoomWithClock(code, quiz, hostSessionID, s.now)
		room.hostConnID = hostConnID
		if s.rooms.Put(code, room) {
			s.hosts.Bind(hostConnID, hostSessionID)
			return code, nil
		}
	}
	return "", errors.New("could not allocate a unique room code")
}

func (s *Service) newCode() string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return fmt.Sprintf("%06d", s.rng.Intn(roomCodeModulus))
}

// RoomInfo returns a public snapshot of a room.
func (s *Service) RoomInfo(code string) (domain.RoomInfo, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.RoomInfo{}, domain.ErrRoomNotFound
	}
	return room.info(), nil
}

// Join admits a participant, or re-admits a returning one. Score, streak and
// answers survive a reconnect untouched.
func (s *Service) Join(code, connID, identity, displayName string) (domain.Player, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.Player{}, domain.ErrRoomNotFound
	}
	return room.join(connID, identity, displayName)
}

// Leave removes the participant behind the connection entirely.
func (s *Service) Leave(code, connID string) (string, bool) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return "", false
	}
	return room.leave(connID)
}

// Disconnect records a dropped connection without revoking membership, so the
// same identity can rejoin mid-quiz.
func (s *Service) Disconnect(code, connID string) (string, bool) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return "", false
	}
	return room.disconnect(connID)
}

// AuthorizeHost checks that the connection's host session matches the room's
// and, on success, records the connection as the room's current host. This is
// how a reconnecting host regains control.
func (s *Service) AuthorizeHost(code, connID string) error {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	sid, ok := s.hosts.Resolve(connID)
	if !ok || sid != room.HostSessionID() {
		return domain.ErrUnauthorized
	}
	room.setHostConn(connID)
	return nil
}

// Start activates the room at question zero, wiping all member progress.
// Calling it on an already-active room restarts the quiz.
func (s *Service) Start(code string) error {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.start()
	return nil
}

// CurrentQuestion returns the open question with its index and the total
// count.
func (s *Service) CurrentQuestion(code string) (domain.Question, int, int, bool) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.Question{}, 0, 0, false
	}
	return room.currentQuestion()
}

// SubmitAnswer scores one answer for the connection's player.
func (s *Service) SubmitAnswer(code, connID string, selected int) (domain.AnswerOutcome, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.AnswerOutcome{}, domain.ErrRoomNotFound
	}
	return room.submit(connID, selected)
}

// AllAnswered reports whether every member answered the open question.
func (s *Service) AllAnswered(code string) bool {
	room, ok := s.rooms.Get(code)
	if !ok {
		return false
	}
	return room.allAnswered()
}

// EndQuestion closes the open question, filling in misses for silent members,
// and returns the aggregate results. It reports false when there is nothing
// to end, which is the expected case for a late timer callback.
func (s *Service) EndQuestion(code string) (domain.QuestionResults, bool) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.QuestionResults{}, false
	}
	return room.endQuestion()
}

// Advance moves the room to the next question or reports completion. It
// fails with ErrRoomNotActive before the quiz starts. A completed room stays
// registered; deletion is an explicit, separate action.
func (s *Service) Advance(code string) (domain.AdvanceResult, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.AdvanceResult{}, domain.ErrRoomNotFound
	}
	return room.advance()
}

// ScheduleDeadline arms the open question's auto-advance timer. onExpire runs
// once when the time limit passes, unless the question ends or moves on
// first.
func (s *Service) ScheduleDeadline(code string, onExpire func(code string)) bool {
	room, ok := s.rooms.Get(code)
	if !ok {
		return false
	}
	return room.armDeadline(s.sched, func() { onExpire(code) })
}

// Rankings returns the room's scoreboard, best first.
func (s *Service) Rankings(code string) ([]domain.Ranking, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room.rankings(), nil
}

// DeleteRoom cancels any pending timer, releases membership state, and drops
// the room. Deleting an unknown code reports false without error.
func (s *Service) DeleteRoom(code string) bool {
	room, ok := s.rooms.Get(code)
	if !ok {
		return false
	}
	room.release()
	return s.rooms.Delete(code)
}
