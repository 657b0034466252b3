// Package quiz holds the question bank and the rules for judging an answer.
package quiz

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sakif/code-debugger/internal/executor"
	"github.com/sakif/code-debugger/internal/model"
)

//go:embed questions.yaml
var defaultQuestions []byte

// Bank is an immutable, in-memory set of questions grouped by language.
// It is safe for concurrent use.
type Bank struct {
	byLanguage map[executor.Language][]model.Question
	byID       map[executor.Language]map[string]model.Question
}

// DefaultBank loads the question set compiled into the binary.
func DefaultBank() (*Bank, error) {
	return LoadBank(defaultQuestions)
}

// LoadBank parses a YAML document mapping language names to question lists.
//
// Every language key must be a supported executor language, and question IDs
// must be unique within a language.
func LoadBank(data []byte) (*Bank, error) {
	var raw map[string][]model.Question
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("quiz: parsing question bank: %w", err)
	}

	b := &Bank{
		byLanguage: make(map[executor.Language][]model.Question, len(raw)),
		byID:       make(map[executor.Language]map[string]model.Question, len(raw)),
	}
	for key, questions := range raw {
		lang, ok := executor.ParseLanguage(key)
		if !ok {
			return nil, fmt.Errorf("quiz: unsupported language %q in question bank", key)
		}
		if len(questions) == 0 {
			continue
		}

		ids := make(map[string]model.Question, len(questions))
		for i := range questions {
			q := &questions[i]
			if strings.TrimSpace(q.ID) == "" {
				return nil, fmt.Errorf("quiz: %s question #%d has no id", lang, i+1)
			}
			if _, dup := ids[q.ID]; dup {
				return nil, fmt.Errorf("quiz: duplicate question id %q for %s", q.ID, lang)
			}
			q.Language = string(lang)
			ids[q.ID] = *q
		}
		b.byLanguage[lang] = questions
		b.byID[lang] = ids
	}
	return b, nil
}

// Languages returns the languages that have at least one question, sorted.
func (b *Bank) Languages() []executor.Language {
	langs := make([]executor.Language, 0, len(b.byLanguage))
	for lang := range b.byLanguage {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	return langs
}

// ForLanguage returns a copy of the questions for lang in bank order.
func (b *Bank) ForLanguage(lang executor.Language) []model.Question {
	return append([]model.Question(nil), b.byLanguage[lang]...)
}

// Get looks up a single question.
func (b *Bank) Get(lang executor.Language, id string) (model.Question, bool) {
	q, ok := b.byID[lang][id]
	return q, ok
}
