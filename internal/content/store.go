// Package content loads the immutable verification step definitions.
package content

import (
	"encoding/json"
	"fmt"
	"os"
)

// Named service steps rendered outside the ordered rule/question sequence.
const (
	ServiceTryLater = "tryLater"
	ServiceSuccess  = "success"
	ServiceFail     = "fail"
	ServiceError    = "error"
)

var serviceStepNames = []string{ServiceTryLater, ServiceSuccess, ServiceFail, ServiceError}

// Step is a single page of the wizard: a rule page, a quiz question, or a
// named service message. Questions carry Options and CorrectAnswers.
type Step struct {
	Text           string   `json:"text"`
	Image          string   `json:"image,omitempty"`
	ButtonText     string   `json:"buttonText,omitempty"`
	Options        []string `json:"options,omitempty"`
	CorrectAnswers []int    `json:"correctAnswers,omitempty"`
}

type document struct {
	Rules     *[]Step         `json:"rules"`
	Questions *[]Step         `json:"questions"`
	Misc      map[string]Step `json:"misc"`
}

// Store holds the loaded step set. It is populated once at startup and
// read-only afterwards.
type Store struct {
	rules         []Step
	questions     []Step
	misc          map[string]Step
	passThreshold int
}

// Load reads and validates the content document. configuredThreshold of 0
// derives the pass threshold from the question count (all but one correct).
func Load(path string, configuredThreshold int) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content file %q: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse content file %q: %w", path, err)
	}

	if doc.Rules == nil || doc.Questions == nil || doc.Misc == nil {
		return nil, fmt.Errorf("content file %q is missing rules, questions or misc collections", path)
	}

	for _, name := range serviceStepNames {
		if _, ok := doc.Misc[name]; !ok {
			return nil, fmt.Errorf("content file %q is missing service step %q", path, name)
		}
	}

	for i, question := range *doc.Questions {
		if len(question.Options) == 0 {
			return nil, fmt.Errorf("question %d has no options", i)
		}
		for _, answer := range question.CorrectAnswers {
			if answer < 0 || answer >= len(question.Options) {
				return nil, fmt.Errorf("question %d has correct answer %d out of range", i, answer)
			}
		}
	}

	threshold := configuredThreshold
	if threshold == 0 {
		threshold = len(*doc.Questions) - 1
		if threshold < 0 {
			threshold = 0
		}
	}

	return &Store{
		rules:         *doc.Rules,
		questions:     *doc.Questions,
		misc:          doc.Misc,
		passThreshold: threshold,
	}, nil
}

// Rules returns the ordered rule pages.
func (s *Store) Rules() []Step {
	return s.rules
}

// Questions returns the ordered quiz questions.
func (s *Store) Questions() []Step {
	return s.questions
}

// PassThreshold returns the minimum score required to pass the quiz.
func (s *Store) PassThreshold() int {
	return s.passThreshold
}

// ServiceStep returns the named service step.
func (s *Store) ServiceStep(name string) (Step, bool) {
	step, ok := s.misc[name]
	return step, ok
}
