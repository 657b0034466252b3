package model

import "time"

// Session is one player's run through a language's question set.
//
// Queue holds the question IDs still to be answered, head first. A correct
// answer removes the head; a wrong one moves it to the tail, so the session
// only completes once every question has been solved. Reaching the time
// limit ends it early: EndedAt is set while the queue is still non-empty.
type Session struct {
	ID                 string     `json:"id"`
	Language           string     `json:"language"`
	Score              int        `json:"score"`
	QuestionsAttempted int        `json:"questionsAttempted"`
	QuestionsSolved    int        `json:"questionsSolved"`
	Total              int        `json:"total"`
	Queue              []string   `json:"-"`
	Solved             []string   `json:"solved"`
	Unsolved           []string   `json:"unsolved"` // every wrong attempt, in order; may repeat
	StartedAt          time.Time  `json:"startedAt"`
	EndedAt            *time.Time `json:"endedAt,omitempty"` // nil while in progress
	Version            int        `json:"-"`                 // optimistic lock, bumped on every update
}

// Complete reports whether every question has been solved.
func (s *Session) Complete() bool {
	return len(s.Queue) == 0
}

// Over reports whether the session accepts no more answers: every question
// is solved or the time limit ended it.
func (s *Session) Over() bool {
	return s.Complete() || s.EndedAt != nil
}

// TimeUp reports whether the time limit ended the session with questions
// still unsolved.
func (s *Session) TimeUp() bool {
	return s.EndedAt != nil && !s.Complete()
}

// CurrentQuestionID returns the head of the queue, or "" once the session
// is over.
func (s *Session) CurrentQuestionID() string {
	if s.Over() {
		return ""
	}
	return s.Queue[0]
}

// Elapsed is the time spent so far, frozen once the session ends.
func (s *Session) Elapsed(now time.Time) time.Duration {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}
