package icebreaker

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/retrolive/retrolive/go/internal/models"
)

// ErrNoParticipants is returned when a turn cannot start because the session
// has nobody to ask.
var ErrNoParticipants = errors.New("no participants available")

// Engine rotates players and questions without replacement within one round.
// It mutates the icebreaker fields of an activity in place; persistence is
// the caller's concern. The engine enforces no caller-identity check;
// whoever can write the activity document can take a turn.
type Engine struct {
	bank *QuestionBank

	// One engine serves every concurrent request, so rng access is locked.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewEngine constructs an engine with its own seeded rng.
func NewEngine(bank *QuestionBank) *Engine {
	return NewEngineWithRand(bank, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewEngineWithRand constructs an engine with an injected rng for
// deterministic tests.
func NewEngineWithRand(bank *QuestionBank, rng *rand.Rand) *Engine {
	return &Engine{bank: bank, rng: rng}
}

func (e *Engine) intn(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Intn(n)
}

// Initialize starts a fresh round: one uniformly random participant gets one
// uniformly random question, and both are recorded as consumed.
func (e *Engine) Initialize(activity *models.Activity, participants []models.Participant) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}

	player := participants[e.intn(len(participants))]
	question := e.bank.questions[e.intn(e.bank.Len())]

	activity.AskedQuestions = []string{question.ID}
	activity.AskedPlayers = []uuid.UUID{player.ID}
	activity.AllPlayersAsked = false
	activity.CurrentTurn = &models.Turn{
		PlayerID:   player.ID,
		PlayerName: player.DisplayName,
		QuestionID: question.ID,
		Question:   question.Text,
	}
	return nil
}

// ChangeQuestion swaps the current player's question. An unasked question is
// preferred; once the bank is exhausted, any question other than the current
// one may repeat, so the same question never comes up twice in a row.
func (e *Engine) ChangeQuestion(activity *models.Activity) error {
	if activity.CurrentTurn == nil {
		return errors.New("no current turn to change the question of")
	}

	question, ok := e.pickQuestion(activity)
	if !ok {
		// Single-question bank: nothing else to offer.
		return nil
	}

	activity.AskedQuestions = appendUnique(activity.AskedQuestions, question.ID)
	activity.CurrentTurn.QuestionID = question.ID
	activity.CurrentTurn.Question = question.Text
	return nil
}

// ChangePlayer hands the turn to a uniformly random participant who has not
// taken one this round. When nobody is left the round is complete:
// AllPlayersAsked is set and nothing else mutates, so a further call just
// re-signals completion.
func (e *Engine) ChangePlayer(activity *models.Activity, participants []models.Participant) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}

	unasked := make([]models.Participant, 0, len(participants))
	for _, p := range participants {
		if !containsUUID(activity.AskedPlayers, p.ID) {
			unasked = append(unasked, p)
		}
	}
	if len(unasked) == 0 {
		activity.AllPlayersAsked = true
		return nil
	}

	player := unasked[e.intn(len(unasked))]
	question, ok := e.pickQuestion(activity)
	if !ok {
		if activity.CurrentTurn == nil {
			return errors.New("no question available for turn")
		}
		q, _ := e.bank.Get(activity.CurrentTurn.QuestionID)
		question = q
	}

	activity.AskedPlayers = append(activity.AskedPlayers, player.ID)
	activity.AskedQuestions = appendUnique(activity.AskedQuestions, question.ID)
	activity.AllPlayersAsked = false
	activity.CurrentTurn = &models.Turn{
		PlayerID:   player.ID,
		PlayerName: player.DisplayName,
		QuestionID: question.ID,
		Question:   question.Text,
	}
	return nil
}

// Restart behaves exactly like Initialize, discarding all round history. It
// works mid-round or after completion.
func (e *Engine) Restart(activity *models.Activity, participants []models.Participant) error {
	return e.Initialize(activity, participants)
}

// pickQuestion chooses uniformly among unasked questions, falling back to a
// uniform choice among everything except the current question once the bank
// is exhausted. Returns false only when no alternative exists.
func (e *Engine) pickQuestion(activity *models.Activity) (Question, bool) {
	var current string
	if activity.CurrentTurn != nil {
		current = activity.CurrentTurn.QuestionID
	}

	unasked := make([]Question, 0, e.bank.Len())
	for _, q := range e.bank.questions {
		if !containsString(activity.AskedQuestions, q.ID) {
			unasked = append(unasked, q)
		}
	}
	if len(unasked) > 0 {
		return unasked[e.intn(len(unasked))], true
	}

	others := make([]Question, 0, e.bank.Len())
	for _, q := range e.bank.questions {
		if q.ID != current {
			others = append(others, q)
		}
	}
	if len(others) == 0 {
		return Question{}, false
	}
	return others[e.intn(len(others))], true
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsUUID(list []uuid.UUID, v uuid.UUID) bool {
	for _, id := range list {
		if id == v {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	if containsString(list, v) {
		return list
	}
	return append(list, v)
}
