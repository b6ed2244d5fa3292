package game

import (
	"sort"
	"sync"
	"time"

	"github.com/mrkazawa/quiz-quest-app-sub000/internal/domain"
)

// Room is one live quiz session. Membership is keyed by stable identity, not
// connection id, so a network drop mid-quiz never erases a participant's
// progress. All mutating methods take the room mutex; timer callbacks arrive
// on their own goroutine.
type Room struct {
	code          string
	quiz          domain.Quiz
	hostSessionID string
	now           func() time.Time

	mu                sync.Mutex
	active            bool
	completed         bool
	current           int
	members           map[string]*domain.Player
	connToIdentity    map[string]string
	everJoined        map[string]struct{}
	hostConnID        string
	createdAt         time.Time
	questionStartedAt time.Time
	deadline          *DeadlineTimer
	// epoch increments whenever the current question opens or closes; a
	// deadline callback holding a stale epoch must no-op.
	epoch uint64
}

// NewRoom is exported for stores and tests that need to seed rooms.
func NewRoom(code string, quiz domain.Quiz, hostSessionID string) *Room {
	return NewRoomWithClock(code, quiz, hostSessionID, time.Now)
}

// NewRoomWithClock allows deterministic timestamps in tests.
func NewRoomWithClock(code string, quiz domain.Quiz, hostSessionID string, now func() time.Time) *Room {
	return &Room{
		code:           code,
		quiz:           quiz,
		hostSessionID:  hostSessionID,
		now:            now,
		members:        make(map[string]*domain.Player),
		connToIdentity: make(map[string]string),
		everJoined:     make(map[string]struct{}),
		createdAt:      now(),
	}
}

func (r *Room) Code() string { return r.code }

func (r *Room) HostSessionID() string { return r.hostSessionID }

func (r *Room) setHostConn(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hostConnID = connID
}

// join admits or re-admits a participant. Before the quiz starts anyone may
// join; afterwards only identities that have joined before may reconnect.
func (r *Room) join(connID, identity, displayName string) (domain.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		_, member := r.members[identity]
		_, seen := r.everJoined[identity]
		if !member && !seen {
			return domain.Player{}, domain.ErrRoomAlreadyStarted
		}
	}

	p, ok := r.members[identity]
	if !ok {
		p = &domain.Player{Identity: identity}
		r.members[identity] = p
	}
	if p.ConnectionID != "" && p.ConnectionID != connID {
		delete(r.connToIdentity, p.ConnectionID)
	}
	p.ConnectionID = connID
	p.DisplayName = displayName
	r.connToIdentity[connID] = identity
	r.everJoined[identity] = struct{}{}
	return *p, nil
}

// leave removes the participant entirely. Unlike a silent disconnect, this is
// an explicit action: the member record goes away, only everJoined remembers.
func (r *Room) leave(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.connToIdentity[connID]
	if !ok {
		return "", false
	}
	delete(r.connToIdentity, connID)
	delete(r.members, identity)
	return identity, true
}

// disconnect clears the connection mapping but keeps the member, so the same
// identity can rejoin later with a new connection.
func (r *Room) disconnect(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.connToIdentity[connID]
	if !ok {
		return "", false
	}
	delete(r.connToIdentity, connID)
	if p, ok := r.members[identity]; ok && p.ConnectionID == connID {
		p.ConnectionID = ""
	}
	return identity, true
}

// start (re)starts the quiz from question zero, wiping every member's
// progress. Guarding against a double start is the caller's concern.
func (r *Room) start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelDeadlineLocked()
	r.active = true
	r.completed = false
	r.current = 0
	r.questionStartedAt = r.now()
	r.epoch++
	for _, p := range r.members {
		p.Score = 0
		p.Streak = 0
		p.Answers = nil
	}
}

func (r *Room) currentQuestion() (domain.Question, int, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active || r.current >= len(r.quiz.Questions) {
		return domain.Question{}, 0, len(r.quiz.Questions), false
	}
	return r.quiz.Questions[r.current], r.current, len(r.quiz.Questions), true
}

// submit scores one answer for the connection's player against the open
// question.
func (r *Room) submit(connID string, selected int) (domain.AnswerOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return domain.AnswerOutcome{}, domain.ErrRoomNotActive
	}
	identity, ok := r.connToIdentity[connID]
	if !ok {
		return domain.AnswerOutcome{}, domain.ErrUnknownParticipant
	}
	p, ok := r.members[identity]
	if !ok {
		return domain.AnswerOutcome{}, domain.ErrUnknownParticipant
	}
	if r.questionStartedAt.IsZero() || r.current >= len(r.quiz.Questions) {
		return domain.AnswerOutcome{}, domain.ErrNoCurrentQuestion
	}

	q := r.quiz.Questions[r.current]
	for _, a := range p.Answers {
		if a.QuestionID == q.ID {
			return domain.AnswerOutcome{}, domain.ErrDuplicateAnswer
		}
	}

	elapsed := r.now().Sub(r.questionStartedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	if limit := float64(q.TimeLimitSeconds); elapsed > limit {
		elapsed = limit
	}

	choice := selected
	result := Score(q, &choice, elapsed, p.Streak)
	p.Answers = append(p.Answers, domain.PlayerAnswer{
		QuestionID:       q.ID,
		Selected:         &choice,
		Correct:          result.Correct,
		TimeTakenSeconds: elapsed,
	})
	p.Score += result.Points
	p.Streak = result.Streak

	return domain.AnswerOutcome{
		Correct:      result.Correct,
		PointsEarned: result.Points,
		Streak:       result.Streak,
		TotalScore:   p.Score,
	}, nil
}

// allAnswered reports whether every current member has answered the open
// question. Consistent with the last submission: both run under the room lock.
func (r *Room) allAnswered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active || r.questionStartedAt.IsZero() || r.current >= len(r.quiz.Questions) {
		return false
	}
	qid := r.quiz.Questions[r.current].ID
	for _, p := range r.members {
		if !hasAnswer(p, qid) {
			return false
		}
	}
	return len(r.members) > 0
}

// endQuestion closes the open question: members who never submitted get a
// synthesized miss (nil selection, full time, streak reset), the deadline
// timer is cancelled, and the aggregate results are returned.
func (r *Room) endQuestion() (domain.QuestionResults, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active || r.questionStartedAt.IsZero() || r.current >= len(r.quiz.Questions) {
		return domain.QuestionResults{}, false
	}

	q := r.quiz.Questions[r.current]
	for _, p := range r.members {
		if hasAnswer(p, q.ID) {
			continue
		}
		p.Answers = append(p.Answers, domain.PlayerAnswer{
			QuestionID:       q.ID,
			Selected:         nil,
			Correct:          false,
			TimeTakenSeconds: float64(q.TimeLimitSeconds),
		})
		p.Streak = 0
	}

	r.cancelDeadlineLocked()
	r.questionStartedAt = time.Time{}
	r.epoch++

	results := domain.QuestionResults{
		QuestionID:    q.ID,
		CorrectIndex:  q.CorrectIndex,
		QuestionIndex: r.current,
		QuestionCount: len(r.quiz.Questions),
		Players:       make([]domain.PlayerResult, 0, len(r.members)),
	}
	for _, p := range r.members {
		pr := domain.PlayerResult{
			Identity:    p.Identity,
			DisplayName: p.DisplayName,
			Score:       p.Score,
			Streak:      p.Streak,
		}
		for i := range p.Answers {
			if p.Answers[i].QuestionID == q.ID {
				pr.Selected = p.Answers[i].Selected
				pr.Correct = p.Answers[i].Correct
				break
			}
		}
		results.Players = append(results.Players, pr)
	}
	sort.Slice(results.Players, func(i, j int) bool {
		return results.Players[i].Identity < results.Players[j].Identity
	})
	return results, true
}

// advance moves the pointer to the next question, or marks the room completed
// once past the last one. The index never moves past the question count. A
// room that never started has nothing to advance through.
func (r *Room) advance() (domain.AdvanceResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return domain.AdvanceResult{}, domain.ErrRoomNotActive
	}

	total := len(r.quiz.Questions)
	if r.completed {
		return domain.AdvanceResult{Completed: true, QuestionIndex: total, QuestionCount: total}, nil
	}

	r.cancelDeadlineLocked()
	r.epoch++
	r.current++
	if r.current >= total {
		r.current = total
		r.completed = true
		r.questionStartedAt = time.Time{}
		return domain.AdvanceResult{Completed: true, QuestionIndex: total, QuestionCount: total}, nil
	}
	r.questionStartedAt = r.now()
	return domain.AdvanceResult{Completed: false, QuestionIndex: r.current, QuestionCount: total}, nil
}

// armDeadline schedules expire to run when the open question's time is up.
// The callback is dropped on the floor if the question moved on first.
func (r *Room) armDeadline(sched Scheduler, expire func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active || r.questionStartedAt.IsZero() || r.current >= len(r.quiz.Questions) {
		return false
	}
	r.cancelDeadlineLocked()

	q := r.quiz.Questions[r.current]
	epoch := r.epoch
	r.deadline = sched.Schedule(time.Duration(q.TimeLimitSeconds)*time.Second, func() {
		if r.epochNow() != epoch {
			return
		}
		expire()
	})
	return true
}

func (r *Room) epochNow() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch
}

func (r *Room) cancelDeadline() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelDeadlineLocked()
}

func (r *Room) cancelDeadlineLocked() {
	if r.deadline != nil {
		r.deadline.Cancel()
		r.deadline = nil
	}
}

// rankings returns the scoreboard, best first; ties break on name then
// identity so the order is stable.
func (r *Room) rankings() []domain.Ranking {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Ranking, 0, len(r.members))
	for _, p := range r.members {
		out = append(out, domain.Ranking{
			Identity:    p.Identity,
			DisplayName: p.DisplayName,
			Score:       p.Score,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].Identity < out[j].Identity
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func (r *Room) info() domain.RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	return domain.RoomInfo{
		Code:          r.code,
		QuizID:        r.quiz.ID,
		QuizName:      r.quiz.Name,
		Active:        r.active,
		Completed:     r.completed,
		QuestionIndex: r.current,
		QuestionCount: len(r.quiz.Questions),
		PlayerCount:   len(r.members),
		CreatedAt:     r.createdAt,
	}
}

// release clears membership state when the room is destroyed.
func (r *Room) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelDeadlineLocked()
	r.epoch++
	r.members = make(map[string]*domain.Player)
	r.connToIdentity = make(map[string]string)
	r.everJoined = make(map[string]struct{})
}

func hasAnswer(p *domain.Player, questionID int) bool {
	for _, a := range p.Answers {
		if a.QuestionID == questionID {
			return true
		}
	}
	return false
}
