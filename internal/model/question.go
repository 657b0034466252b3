// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data. There's no inheritance, so
// shared behaviour comes from small methods like Public() below.
package model

// Question is one debugging exercise: a buggy program and what its fixed
// version must print.
//
// The `yaml:"..."` tags are read when the question bank is loaded; the
// `json:"..."` tags are what the API returns. ExpectedOutput and Explanation
// are only revealed after a submission, so API responses use PublicQuestion.
type Question struct {
	ID             string `yaml:"id"             json:"id"`
	Language       string `yaml:"-"              json:"language"`
	Title          string `yaml:"title"          json:"title"`
	Description    string `yaml:"description"    json:"description"`
	BuggyCode      string `yaml:"buggyCode"      json:"buggyCode"`
	ExpectedOutput string `yaml:"expectedOutput" json:"expectedOutput"`
	TestInput      string `yaml:"testInput"      json:"testInput,omitempty"` // fed to stdin on submit
	Difficulty     string `yaml:"difficulty"     json:"difficulty"`
	Explanation    string `yaml:"explanation"    json:"explanation"`
}

// PublicQuestion is the view of a Question that is safe to show before the
// player has answered it.
type PublicQuestion struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	BuggyCode   string `json:"buggyCode"`
	Difficulty  string `json:"difficulty"`
}

// Public strips the answer fields.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		BuggyCode:   q.BuggyCode,
		Difficulty:  q.Difficulty,
	}
}
