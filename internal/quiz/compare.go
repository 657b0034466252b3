package quiz

import "strings"

// NormalizeOutput makes program output comparable across platforms:
// line endings become \n, trailing whitespace on each line is dropped, and
// leading/trailing blank space around the whole output is trimmed.
func NormalizeOutput(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Comparison is the verdict on one program output.
type Comparison struct {
	IsCorrect bool   `json:"isCorrect"`
	Expected  string `json:"expected"`
	Actual    string `json:"actual"`
}

// Compare checks actual against expected after normalizing both.
func Compare(expected, actual string) Comparison {
	e, a := NormalizeOutput(expected), NormalizeOutput(actual)
	return Comparison{
		IsCorrect: e == a,
		Expected:  e,
		Actual:    a,
	}
}
