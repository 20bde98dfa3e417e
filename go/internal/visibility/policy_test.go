package visibility

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/retrolive/retrolive/go/internal/models"
)

func boolPtr(b bool) *bool { return &b }

func TestCardVisible(t *testing.T) {
	hidden := &models.Card{IsVisible: boolPtr(false)}
	visible := &models.Card{IsVisible: boolPtr(true)}
	legacy := &models.Card{} // flag never written

	assert.True(t, CardVisible(true, hidden), "admin sees hidden cards")
	assert.False(t, CardVisible(false, hidden))
	assert.True(t, CardVisible(false, visible))
	assert.True(t, CardVisible(false, legacy), "missing flag fails open")
}

func TestActivityVisible(t *testing.T) {
	pending := &models.Activity{VisibleToAll: false}
	launched := &models.Activity{VisibleToAll: true}

	assert.True(t, ActivityVisible(true, pending), "admin sees pending activities")
	assert.False(t, ActivityVisible(false, pending), "unset flag fails closed")
	assert.True(t, ActivityVisible(false, launched))
}

func TestFilterCardsPreservesOrder(t *testing.T) {
	cards := []models.Card{
		{ID: uuid.New(), Text: "a", IsVisible: boolPtr(true)},
		{ID: uuid.New(), Text: "b", IsVisible: boolPtr(false)},
		{ID: uuid.New(), Text: "c"},
		{ID: uuid.New(), Text: "d", IsVisible: boolPtr(true)},
	}

	admin := FilterCards(true, cards)
	assert.Len(t, admin, 4)

	participant := FilterCards(false, cards)
	if assert.Len(t, participant, 3) {
		assert.Equal(t, "a", participant[0].Text)
		assert.Equal(t, "c", participant[1].Text)
		assert.Equal(t, "d", participant[2].Text)
	}
}

func TestFilterActivities(t *testing.T) {
	activities := []models.Activity{
		{ID: uuid.New(), VisibleToAll: true},
		{ID: uuid.New(), VisibleToAll: false},
	}

	assert.Len(t, FilterActivities(true, activities), 2)
	assert.Len(t, FilterActivities(false, activities), 1)
}
