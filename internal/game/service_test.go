package game_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mrkazawa/quiz-quest-app-sub000/internal/domain"
	"github.com/mrkazawa/quiz-quest-app-sub000/internal/game"
	"github.com/mrkazawa/quiz-quest-app-sub000/internal/infra/memory"
)

// fakeClock lets tests control elapsed time per question.
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{cur: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

// manualScheduler collects deadline tasks and fires them only on demand, so
// timer races are tested deterministically.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []manualTask
}

type manualTask struct {
	timer *game.DeadlineTimer
	fn    func()
}

func (s *manualScheduler) Schedule(_ time.Duration, fn func()) *game.DeadlineTimer {
	t := &game.DeadlineTimer{}
	s.mu.Lock()
	s.tasks = append(s.tasks, manualTask{timer: t, fn: fn})
	s.mu.Unlock()
	return t
}

func (s *manualScheduler) FirePending() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()
	for _, task := range tasks {
		task.timer.Fire(task.fn)
	}
}

func testQuiz() domain.Quiz {
	return domain.Quiz{
		ID:   "quiz-1",
		Name: "Arithmetic Sprint",
		Questions: []domain.Question{
			{ID: 1, Text: "2+2?", Options: []string{"3", "4", "5", "6"}, CorrectIndex: 1, TimeLimitSeconds: 20, Points: 1000},
			{ID: 2, Text: "3x3?", Options: []string{"6", "7", "8", "9"}, CorrectIndex: 3, TimeLimitSeconds: 20, Points: 1000},
		},
	}
}

func newTestService() (*game.Service, *fakeClock, *manualScheduler) {
	clock := newFakeClock()
	sched := &manualScheduler{}
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": testQuiz(),
	}), 5*time.Minute)
	service := game.NewServiceWithClock(memory.NewRoomStore(), quizzes, clock.Now, sched)
	return service, clock, sched
}

func mustCreateRoom(t *testing.T, s *game.Service) string {
	t.Helper()
	code, err := s.CreateRoom(context.Background(), "quiz-1", "host-conn", "host-session")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return code
}

func TestCreateRoomGeneratesUniqueSixDigitCodes(t *testing.T) {
	service, _, _ := newTestService()

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		code, err := service.CreateRoom(context.Background(), "quiz-1", "host-conn", "host-session")
		if err != nil {
			t.Fatalf("create room %d: %v", i, err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6-digit code, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("expected numeric code, got %q", code)
			}
		}
		if _, dup := seen[code]; dup {
			t.Fatalf("duplicate code %q among live rooms", code)
		}
		seen[code] = struct{}{}
	}
}

func TestCreateRoomUnknownQuiz(t *testing.T) {
	service, _, _ := newTestService()
	_, err := service.CreateRoom(context.Background(), "nope", "host-conn", "host-session")
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestJoinBeforeStartAndRejoinUpdatesName(t *testing.T) {
	service, _, _ := newTestService()
	code := mustCreateRoom(t, service)

	p, err := service.Join(code, "conn-1", "roll-7", "Ann")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if p.Identity != "roll-7" || p.DisplayName != "Ann" {
		t.Fatalf("unexpected player %+v", p)
	}

	// Same identity from a new connection is a rejoin, not a new member.
	p, err = service.Join(code, "conn-2", "roll-7", "Annabel")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if p.DisplayName != "Annabel" {
		t.Fatalf("expected refreshed name, got %q", p.DisplayName)
	}
	info, err := service.RoomInfo(code)
	if err != nil {
		t.Fatalf("room info: %v", err)
	}
	if info.PlayerCount != 1 {
		t.Fatalf("expected 1 member, got %d", info.PlayerCount)
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	service, _, _ := newTestService()
	_, err := service.Join("000000", "conn-1", "roll-7", "Ann")
	if !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected room not found, got %v", err)
	}
}

func TestActiveJoinGuard(t *testing.T) {
	service, _, _ := newTestService()
	code := mustCreateRoom(t, service)

	if _, err := service.Join(code, "conn-1", "roll-1", "Ann"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := service.Start(code); err != nil {
		t.Fatalf("start: %v", err)
	}

	// A genuinely new identity cannot join mid-quiz.
	_, err := service.Join(code, "conn-9", "roll-9", "Late Larry")
	if !errors.Is(err, domain.ErrRoomAlreadyStarted) {
		t.Fatalf("expected already started, got %v", err)
	}

	// A disconnected member reconnects and keeps progress.
	if _, err := service.SubmitAnswer(code, "conn-1", 1); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, ok := service.Disconnect(code, "conn-1"); !ok {
		t.Fatalf("expected disconnect to find the member")
	}
	p, err := service.Join(code, "conn-2", "roll-1", "Ann")
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if p.Score == 0 {
		t.Fatalf("expected score preserved across reconnect, got %+v", p)
	}
	if p.Streak != 1 {
		t.Fatalf("expected streak preserved, got %d", p.Streak)
	}
}

func TestSubmitAnswerErrorTaxonomy(t *testing.T) {
	service, _, _ := newTestService()
	code := mustCreateRoom(t, service)

	if _, err := service.Join(code, "conn-1", "roll-1", "Ann"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := service.SubmitAnswer(code, "conn-1", 1); !errors.Is(err, domain.ErrRoomNotActive) {
		t.Fatalf("expected not active, got %v", err)
	}

	if err := service.Start(code); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := service.SubmitAnswer(code, "conn-ghost", 1); !errors.Is(err, domain.ErrUnknownParticipant) {
		t.Fatalf("expected unknown participant, got %v", err)
	}

	first, err := service.SubmitAnswer(code, "conn-1", 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.SubmitAnswer(code, "conn-1", 2); !errors.Is(err, domain.ErrDuplicateAnswer) {
		t.Fatalf("expected duplicate answer, got %v", err)
	}
	// The rejected duplicate must not touch score or streak.
	rankings, err := service.Rankings(code)
	if err != nil {
		t.Fatalf("rankings: %v", err)
	}
	if rankings[0].Score != first.TotalScore {
		t.Fatalf("duplicate changed score: %d vs %d", rankings[0].Score, first.TotalScore)
	}

	// Between questions there is nothing to answer.
	if _, ended := service.EndQuestion(code); !ended {
		t.Fatalf("expected end question")
	}
	if _, err := service.SubmitAnswer(code, "conn-1", 1); !errors.Is(err, domain.ErrNoCurrentQuestion) {
		t.Fatalf("expected no current question, got %v", err)
	}

	if _, err := service.SubmitAnswer("000000", "conn-1", 1); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected room not found, got %v", err)
	}
}

func TestEndQuestionSynthesizesMisses(t *testing.T) {
	service, _, _ := newTestService()
	code := mustCreateRoom(t, service)

	if _, err := service.Join(code, "conn-1", "roll-1", "Ann"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := service.Join(code, "conn-2", "roll-2", "Ben"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := service.Start(code); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := service.SubmitAnswer(code, "conn-1", 1); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if service.AllAnswered(code) {
		t.Fatalf("Ben has not answered yet")
	}

	results, ended := service.EndQuestion(code)
	if !ended {
		t.Fatalf("expected end question")
	}
	if len(results.Players) != 2 {
		t.Fatalf("expected 2 player results, got %d", len(results.Players))
	}
	for _, pr := range results.Players {
		switch pr.Identity {
		case "roll-1":
			if !pr.Correct || pr.Selected == nil {
				t.Fatalf("expected Ann scored correct, got %+v", pr)
			}
		case "roll-2":
			if pr.Correct || pr.Selected != nil || pr.Streak != 0 {
				t.Fatalf("expected synthesized miss for Ben, got %+v", pr)
			}
		default:
			t.Fatalf("unexpected identity %q", pr.Identity)
		}
	}
	if results.CorrectIndex != 1 || results.QuestionIndex != 0 || results.QuestionCount != 2 {
		t.Fatalf("unexpected aggregate %+v", results)
	}

	// Second end on the same question has nothing to do.
	if _, ended := service.EndQuestion(code); ended {
		t.Fatalf("expected second end to no-op")
	}
}

func TestAdvanceTerminalBehavior(t *testing.T) {
	service, _, _ := newTestService()
	code := mustCreateRoom(t, service)
	if err := service.Start(code); err != nil {
		t.Fatalf("start: %v", err)
	}

	res, err := service.Advance(code)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if res.Completed || res.QuestionIndex != 1 {
		t.Fatalf("expected index 1, got %+v", res)
	}

	res, err = service.Advance(code)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !res.Completed || res.QuestionIndex != 2 {
		t.Fatalf("expected completion at index 2, got %+v", res)
	}

	// The pointer never moves past the question count.
	res, err = service.Advance(code)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !res.Completed || res.QuestionIndex != 2 {
		t.Fatalf("expected stable terminal state, got %+v", res)
	}

	info, err := service.RoomInfo(code)
	if err != nil {
		t.Fatalf("room info: %v", err)
	}
	if !info.Active || !info.Completed {
		t.Fatalf("completed room stays active until deleted, got %+v", info)
	}
}

func TestAdvanceRequiresActiveRoom(t *testing.T) {
	service, _, _ := newTestService()
	code := mustCreateRoom(t, service)

	if _, err := service.Advance(code); !errors.Is(err, domain.ErrRoomNotActive) {
		t.Fatalf("expected ErrRoomNotActive before start, got %v", err)
	}

	// A room that never ran must never record a completion either.
	info, err := service.RoomInfo(code)
	if err != nil {
		t.Fatalf("room info: %v", err)
	}
	if info.Active || info.Completed || info.QuestionIndex != 0 {
		t.Fatalf("expected untouched room state, got %+v", info)
	}
}

func TestTwoPlayerScenario(t *testing.T) {
	service, clock, _ := newTestService()
	code := mustCreateRoom(t, service)

	if _, err := service.Join(code, "p1", "roll-1", "Ann"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := service.Join(code, "p2", "roll-2", "Ben"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := service.Start(code); err != nil {
		t.Fatalf("start: %v", err)
	}

	out, err := service.SubmitAnswer(code, "p1", 1) // correct at 0s elapsed
	if err != nil {
		t.Fatalf("submit p1: %v", err)
	}
	if !out.Correct || out.PointsEarned != 1100 || out.Streak != 1 {
		t.Fatalf("unexpected p1 outcome %+v", out)
	}

	out, err = service.SubmitAnswer(code, "p2", 0) // wrong
	if err != nil {
		t.Fatalf("submit p2: %v", err)
	}
	if out.Correct || out.PointsEarned != 0 || out.Streak != 0 {
		t.Fatalf("unexpected p2 outcome %+v", out)
	}

	if !service.AllAnswered(code) {
		t.Fatalf("expected all answered")
	}

	if _, ended := service.EndQuestion(code); !ended {
		t.Fatalf("expected end question")
	}

	res, err := service.Advance(code)
	if err != nil || res.Completed || res.QuestionIndex != 1 {
		t.Fatalf("expected question 1, got %+v err=%v", res, err)
	}

	// Second question: Ann answers correctly again at 10s for a streak bonus.
	clock.Advance(10 * time.Second)
	out, err = service.SubmitAnswer(code, "p1", 3)
	if err != nil {
		t.Fatalf("submit p1 q2: %v", err)
	}
	// floor(1000 * 0.5 * 1.2)
	if out.PointsEarned != 600 || out.Streak != 2 {
		t.Fatalf("unexpected streak scoring %+v", out)
	}
	if _, err := service.SubmitAnswer(code, "p2", 0); err != nil {
		t.Fatalf("submit p2 q2: %v", err)
	}

	if _, ended := service.EndQuestion(code); !ended {
		t.Fatalf("expected end question 2")
	}
	res, err = service.Advance(code)
	if err != nil || !res.Completed {
		t.Fatalf("expected completion, got %+v err=%v", res, err)
	}

	rankings, err := service.Rankings(code)
	if err != nil {
		t.Fatalf("rankings: %v", err)
	}
	if rankings[0].Identity != "roll-1" || rankings[0].Score != 1700 || rankings[0].Rank != 1 {
		t.Fatalf("unexpected leader %+v", rankings[0])
	}
	if rankings[1].Identity != "roll-2" || rankings[1].Score != 0 || rankings[1].Rank != 2 {
		t.Fatalf("unexpected runner-up %+v", rankings[1])
	}
}

func TestStartResetsProgress(t *testing.T) {
	service, _, _ := newTestService()
	code := mustCreateRoom(t, service)

	if _, err := service.Join(code, "p1", "roll-1", "Ann"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := service.Start(code); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.SubmitAnswer(code, "p1", 1); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := service.Start(code); err != nil {
		t.Fatalf("restart: %v", err)
	}
	rankings, err := service.Rankings(code)
	if err != nil {
		t.Fatalf("rankings: %v", err)
	}
	if rankings[0].Score != 0 {
		t.Fatalf("expected reset score, got %d", rankings[0].Score)
	}
	// The first question is answerable again after the restart.
	if _, err := service.SubmitAnswer(code, "p1", 1); err != nil {
		t.Fatalf("submit after restart: %v", err)
	}
}

func TestLeaveRemovesMembershipButNotEverJoined(t *testing.T) {
	service, _, _ := newTestService()
	code := mustCreateRoom(t, service)

	if _, err := service.Join(code, "p1", "roll-1", "Ann"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := service.Start(code); err != nil {
		t.Fatalf("start: %v", err)
	}

	identity, removed := service.Leave(code, "p1")
	if !removed || identity != "roll-1" {
		t.Fatalf("unexpected leave result %q %v", identity, removed)
	}
	info, _ := service.RoomInfo(code)
	if info.PlayerCount != 0 {
		t.Fatalf("expected no members, got %d", info.PlayerCount)
	}

	// Having once joined, the identity may re-enter the active quiz, albeit
	// starting fresh.
	p, err := service.Join(code, "p1-new", "roll-1", "Ann")
	if err != nil {
		t.Fatalf("rejoin after leave: %v", err)
	}
	if p.Score != 0 {
		t.Fatalf("expected fresh player after explicit leave, got %+v", p)
	}
}

func TestDeadlineTimerEndsQuestion(t *testing.T) {
	service, _, sched := newTestService()
	code := mustCreateRoom(t, service)

	if _, err := service.Join(code, "p1", "roll-1", "Ann"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := service.Start(code); err != nil {
		t.Fatalf("start: %v", err)
	}

	var endedCode string
	if !service.ScheduleDeadline(code, func(c string) {
		endedCode = c
		service.EndQuestion(c)
	}) {
		t.Fatalf("expected deadline scheduled")
	}

	sched.FirePending()
	if endedCode != code {
		t.Fatalf("expected deadline callback for %s, got %q", code, endedCode)
	}
	// The player now carries a synthesized miss.
	if _, err := service.SubmitAnswer(code, "p1", 1); !errors.Is(err, domain.ErrNoCurrentQuestion) {
		t.Fatalf("expected closed question, got %v", err)
	}
}

func TestStaleDeadlineCallbackNoOps(t *testing.T) {
	service, _, sched := newTestService()
	code := mustCreateRoom(t, service)

	if _, err := service.Join(code, "p1", "roll-1", "Ann"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := service.Start(code); err != nil {
		t.Fatalf("start: %v", err)
	}

	fired := 0
	service.ScheduleDeadline(code, func(string) { fired++ })

	// The question ends before the timer fires; the late callback must not
	// act on the next question.
	if _, ended := service.EndQuestion(code); !ended {
		t.Fatalf("expected end question")
	}
	if _, err := service.Advance(code); err != nil {
		t.Fatalf("advance: %v", err)
	}

	sched.FirePending()
	if fired != 0 {
		t.Fatalf("stale deadline fired %d times", fired)
	}
}

func TestDeleteRoomIsIdempotentAndCancelsTimer(t *testing.T) {
	service, _, sched := newTestService()
	code := mustCreateRoom(t, service)

	if err := service.Start(code); err != nil {
		t.Fatalf("start: %v", err)
	}
	fired := 0
	service.ScheduleDeadline(code, func(string) { fired++ })

	if !service.DeleteRoom(code) {
		t.Fatalf("expected delete to succeed")
	}
	if service.DeleteRoom(code) {
		t.Fatalf("expected second delete to report failure")
	}
	if _, err := service.RoomInfo(code); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected room gone, got %v", err)
	}

	sched.FirePending()
	if fired != 0 {
		t.Fatalf("deadline fired after room deletion")
	}
}

func TestAuthorizeHostAcrossReconnect(t *testing.T) {
	service, _, _ := newTestService()
	code := mustCreateRoom(t, service)

	if err := service.AuthorizeHost(code, "host-conn"); err != nil {
		t.Fatalf("authorize original host: %v", err)
	}

	// A stranger's connection is rejected.
	if err := service.AuthorizeHost(code, "intruder"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	// The host reconnects: new connection, same session id.
	service.Hosts().Release("host-conn")
	service.Hosts().Bind("host-conn-2", "host-session")
	if err := service.AuthorizeHost(code, "host-conn-2"); err != nil {
		t.Fatalf("authorize reconnected host: %v", err)
	}

	// A different host session bound to a live connection is still rejected.
	service.Hosts().Bind("other-conn", "other-session")
	if err := service.AuthorizeHost(code, "other-conn"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for mismatched session, got %v", err)
	}
}
