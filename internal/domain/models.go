package domain

import "time"

// Question is immutable quiz content. The engine treats it as read-only;
// authoring and validation happen in the quiz provider.
type Question struct {
	ID               int      `json:"id"`
	Text             string   `json:"text"`
	Options          []string `json:"options"` // always exactly 4
	CorrectIndex     int      `json:"correctIndex"`
	TimeLimitSeconds int      `json:"timeLimit"`
	Points           int      `json:"points"`
}

// Quiz is an ordered set of questions plus display metadata.
type Quiz struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// PlayerAnswer is one scored response. Selected is nil when the deadline
// passed without a submission.
type PlayerAnswer struct {
	QuestionID       int     `json:"questionId"`
	Selected         *int    `json:"selected"`
	Correct          bool    `json:"correct"`
	TimeTakenSeconds float64 `json:"timeTaken"`
}

// Player is one participant's state within a room. Identity is the stable,
// caller-supplied key; ConnectionID is transient and empty while the
// participant is disconnected.
type Player struct {
	Identity     string         `json:"identity"`
	ConnectionID string         `json:"-"`
	DisplayName  string         `json:"displayName"`
	Score        int            `json:"score"`
	Streak       int            `json:"streak"`
	Answers      []PlayerAnswer `json:"-"`
}

// ScoreResult is the outcome of scoring a single submission.
type ScoreResult struct {
	Correct bool
	Points  int
	Streak  int
}

// AnswerOutcome is what a submitter gets back: the score result plus their
// running total.
type AnswerOutcome struct {
	Correct      bool `json:"correct"`
	PointsEarned int  `json:"pointsEarned"`
	Streak       int  `json:"streak"`
	TotalScore   int  `json:"totalScore"`
}

// PlayerResult is one player's line in the end-of-question aggregate.
type PlayerResult struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
	Selected    *int   `json:"selected"`
	Correct     bool   `json:"correct"`
	Score       int    `json:"score"`
	Streak      int    `json:"streak"`
}

// QuestionResults aggregates a finished question for broadcast.
type QuestionResults struct {
	QuestionID    int            `json:"questionId"`
	CorrectIndex  int            `json:"correctIndex"`
	QuestionIndex int            `json:"questionIndex"`
	QuestionCount int            `json:"questionCount"`
	Players       []PlayerResult `json:"players"`
}

// AdvanceResult reports where the room landed after moving past a question.
type AdvanceResult struct {
	Completed     bool `json:"completed"`
	QuestionIndex int  `json:"questionIndex"`
	QuestionCount int  `json:"questionCount"`
}

// Ranking is one row of the final scoreboard, 1-based.
type Ranking struct {
	Rank        int    `json:"rank"`
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// RoomInfo is a read-only snapshot of a room's public state.
type RoomInfo struct {
	Code          string    `json:"code"`
	QuizID        string    `json:"quizId"`
	QuizName      string    `json:"quizName"`
	Active        bool      `json:"active"`
	Completed     bool      `json:"completed"`
	QuestionIndex int       `json:"questionIndex"`
	QuestionCount int       `json:"questionCount"`
	PlayerCount   int       `json:"playerCount"`
	CreatedAt     time.Time `json:"createdAt"`
}
