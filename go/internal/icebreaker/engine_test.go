package icebreaker

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrolive/retrolive/go/internal/models"
)

func testBank(t *testing.T, n int) *QuestionBank {
	t.Helper()
	questions := make([]Question, n)
	for i := range questions {
		questions[i] = Question{ID: string(rune('a' + i)), Text: "question " + string(rune('a'+i))}
	}
	bank, err := NewQuestionBank(questions)
	require.NoError(t, err)
	return bank
}

func testParticipants(n int) []models.Participant {
	out := make([]models.Participant, n)
	for i := range out {
		out[i] = models.Participant{ID: uuid.New(), DisplayName: "player " + string(rune('A'+i))}
	}
	return out
}

func testEngine(t *testing.T, bankSize int) *Engine {
	t.Helper()
	return NewEngineWithRand(testBank(t, bankSize), rand.New(rand.NewSource(42)))
}

func TestInitializeRecordsPlayerAndQuestion(t *testing.T) {
	engine := testEngine(t, 5)
	players := testParticipants(3)
	activity := &models.Activity{Type: models.ActivityIceBreaker}

	require.NoError(t, engine.Initialize(activity, players))

	require.NotNil(t, activity.CurrentTurn)
	assert.Len(t, activity.AskedPlayers, 1)
	assert.Len(t, activity.AskedQuestions, 1)
	assert.Equal(t, activity.CurrentTurn.PlayerID, activity.AskedPlayers[0])
	assert.Equal(t, activity.CurrentTurn.QuestionID, activity.AskedQuestions[0])
	assert.False(t, activity.AllPlayersAsked)

	assert.ErrorIs(t, engine.Initialize(&models.Activity{}, nil), ErrNoParticipants)
}

func TestChangeQuestionNeverRepeatsImmediately(t *testing.T) {
	engine := testEngine(t, 3)
	players := testParticipants(1)
	activity := &models.Activity{Type: models.ActivityIceBreaker}
	require.NoError(t, engine.Initialize(activity, players))

	// Far more swaps than questions, so the bank exhausts and reuse kicks in.
	for i := 0; i < 50; i++ {
		before := activity.CurrentTurn.QuestionID
		require.NoError(t, engine.ChangeQuestion(activity))
		assert.NotEqual(t, before, activity.CurrentTurn.QuestionID, "swap %d produced the same question twice in a row", i)
	}
}

func TestChangeQuestionSingleQuestionBankIsNoOp(t *testing.T) {
	engine := testEngine(t, 1)
	players := testParticipants(1)
	activity := &models.Activity{Type: models.ActivityIceBreaker}
	require.NoError(t, engine.Initialize(activity, players))

	before := activity.CurrentTurn.QuestionID
	require.NoError(t, engine.ChangeQuestion(activity))
	assert.Equal(t, before, activity.CurrentTurn.QuestionID, "nothing else to offer")
}

func TestChangePlayerCompletesRound(t *testing.T) {
	engine := testEngine(t, 10)
	players := testParticipants(4)
	activity := &models.Activity{Type: models.ActivityIceBreaker}
	require.NoError(t, engine.Initialize(activity, players))

	// Rotate through everyone. Each turn goes to a player who has not had one.
	for turn := 1; turn < len(players); turn++ {
		seen := make(map[uuid.UUID]bool)
		for _, id := range activity.AskedPlayers {
			seen[id] = true
		}
		require.NoError(t, engine.ChangePlayer(activity, players))
		assert.False(t, seen[activity.CurrentTurn.PlayerID], "turn %d repeated a player", turn)
	}
	assert.Len(t, activity.AskedPlayers, len(players))
	assert.False(t, activity.AllPlayersAsked)

	// Nobody left: the round completes and state freezes.
	lastTurn := *activity.CurrentTurn
	require.NoError(t, engine.ChangePlayer(activity, players))
	assert.True(t, activity.AllPlayersAsked)
	assert.Equal(t, lastTurn, *activity.CurrentTurn, "completion mutates nothing else")

	// Re-signalling completion is harmless.
	require.NoError(t, engine.ChangePlayer(activity, players))
	assert.True(t, activity.AllPlayersAsked)
}

func TestChangePlayerIncludesLateJoiners(t *testing.T) {
	engine := testEngine(t, 10)
	players := testParticipants(2)
	activity := &models.Activity{Type: models.ActivityIceBreaker}
	require.NoError(t, engine.Initialize(activity, players))
	require.NoError(t, engine.ChangePlayer(activity, players))

	// Everyone has been asked; a new participant reopens the rotation.
	require.NoError(t, engine.ChangePlayer(activity, players))
	require.True(t, activity.AllPlayersAsked)

	joined := append(players, testParticipants(1)...)
	require.NoError(t, engine.ChangePlayer(activity, joined))
	assert.Equal(t, joined[2].ID, activity.CurrentTurn.PlayerID)
	assert.False(t, activity.AllPlayersAsked, "a fresh turn reopens the round")
}

func TestEngineIsSafeForConcurrentUse(t *testing.T) {
	engine := testEngine(t, 5)
	players := testParticipants(2)

	// One engine serves every session; simultaneous requests for different
	// activities must not trip the race detector on the shared rng.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			activity := &models.Activity{Type: models.ActivityIceBreaker}
			require.NoError(t, engine.Initialize(activity, players))
			for j := 0; j < 100; j++ {
				require.NoError(t, engine.ChangeQuestion(activity))
			}
		}()
	}
	wg.Wait()
}

func TestRestartDiscardsHistory(t *testing.T) {
	engine := testEngine(t, 5)
	players := testParticipants(3)
	activity := &models.Activity{Type: models.ActivityIceBreaker}
	require.NoError(t, engine.Initialize(activity, players))
	require.NoError(t, engine.ChangePlayer(activity, players))
	require.NoError(t, engine.ChangePlayer(activity, players))

	require.NoError(t, engine.Restart(activity, players))
	assert.Len(t, activity.AskedPlayers, 1)
	assert.Len(t, activity.AskedQuestions, 1)
	assert.False(t, activity.AllPlayersAsked)
	require.NotNil(t, activity.CurrentTurn)
}
