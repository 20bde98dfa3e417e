package icebreaker

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Question is one icebreaker prompt. The bank's content is data, not logic;
// deployments swap it out with a YAML file.
type Question struct {
	ID   string `yaml:"id" json:"id"`
	Text string `yaml:"text" json:"text"`
}

// QuestionBank is the set of prompts a round draws from without replacement.
type QuestionBank struct {
	questions []Question
	byID      map[string]Question
}

type bankFile struct {
	Questions []Question `yaml:"questions"`
}

// NewQuestionBank builds a bank from a fixed slice.
func NewQuestionBank(questions []Question) (*QuestionBank, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("question bank must not be empty")
	}
	byID := make(map[string]Question, len(questions))
	for _, q := range questions {
		if q.ID == "" {
			return nil, fmt.Errorf("question with empty id in bank")
		}
		if _, dup := byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %q in bank", q.ID)
		}
		byID[q.ID] = q
	}
	return &QuestionBank{questions: questions, byID: byID}, nil
}

// LoadQuestionBank reads a YAML question bank from path.
func LoadQuestionBank(path string) (*QuestionBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank: %w", err)
	}
	var f bankFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}
	return NewQuestionBank(f.Questions)
}

// DefaultQuestionBank returns the built-in prompts used when no bank file is
// configured.
func DefaultQuestionBank() *QuestionBank {
	bank, err := NewQuestionBank([]Question{
		{ID: "q-superpower", Text: "If you could have one superpower for a day, what would it be?"},
		{ID: "q-breakfast", Text: "What did you have for breakfast today?"},
		{ID: "q-desert-island", Text: "What three things would you bring to a desert island?"},
		{ID: "q-first-job", Text: "What was your first job?"},
		{ID: "q-hidden-talent", Text: "What's a hidden talent of yours?"},
		{ID: "q-dream-trip", Text: "Where would you go if you could travel anywhere tomorrow?"},
		{ID: "q-last-show", Text: "What was the last show you binge-watched?"},
		{ID: "q-team-animal", Text: "If this team were an animal, which one would it be?"},
		{ID: "q-best-advice", Text: "What's the best advice you've ever received?"},
		{ID: "q-time-machine", Text: "Would you use a time machine to visit the past or the future?"},
	})
	if err != nil {
		panic(err)
	}
	return bank
}

// All returns every question in the bank.
func (b *QuestionBank) All() []Question {
	return b.questions
}

// Get returns a question by ID.
func (b *QuestionBank) Get(id string) (Question, bool) {
	q, ok := b.byID[id]
	return q, ok
}

// Len returns the bank size.
func (b *QuestionBank) Len() int {
	return len(b.questions)
}
