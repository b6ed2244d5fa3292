package domain

import "fmt"

// OptionsPerQuestion is fixed by the game format.
const OptionsPerQuestion = 4

// ValidateQuiz checks quiz content before it reaches the engine. Loaders call
// this so a malformed quiz never becomes a room.
func ValidateQuiz(quiz Quiz) error {
	if quiz.ID == "" {
		return fmt.Errorf("quiz has no id")
	}
	if len(quiz.Questions) == 0 {
		return fmt.Errorf("quiz %q has no questions", quiz.ID)
	}
	for i, q := range quiz.Questions {
		if len(q.Options) != OptionsPerQuestion {
			return fmt.Errorf("quiz %q question %d: expected %d options, got %d", quiz.ID, i, OptionsPerQuestion, len(q.Options))
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= OptionsPerQuestion {
			return fmt.Errorf("quiz %q question %d: correct index %d out of range", quiz.ID, i, q.CorrectIndex)
		}
		if q.TimeLimitSeconds <= 0 {
			return fmt.Errorf("quiz %q question %d: time limit must be positive", quiz.ID, i)
		}
		if q.Points <= 0 {
			return fmt.Errorf("quiz %q question %d: points must be positive", quiz.ID, i)
		}
	}
	return nil
}
