// Package visibility holds the stateless rule set deciding what a viewer may
// see. Admins see everything in their session with true flags; everyone else
// sees only what has been made visible.
package visibility

import (
	"github.com/retrolive/retrolive/go/internal/models"
)

// CardVisible reports whether a viewer may see the card. A card missing its
// flag fails open: legacy cards written before the flag existed stay visible.
func CardVisible(viewerIsAdmin bool, card *models.Card) bool {
	if viewerIsAdmin {
		return true
	}
	return card.Visible()
}

// ActivityVisible reports whether a viewer may see the activity. An unset
// flag fails closed: an activity that was never launched must stay hidden
// from participants.
func ActivityVisible(viewerIsAdmin bool, activity *models.Activity) bool {
	if viewerIsAdmin {
		return true
	}
	return activity.VisibleToAll
}

// FilterCards returns the cards the viewer may see, preserving order.
func FilterCards(viewerIsAdmin bool, cards []models.Card) []models.Card {
	if viewerIsAdmin {
		return cards
	}
	out := make([]models.Card, 0, len(cards))
	for _, c := range cards {
		if CardVisible(viewerIsAdmin, &c) {
			out = append(out, c)
		}
	}
	return out
}

// FilterActivities returns the activities the viewer may see, preserving order.
func FilterActivities(viewerIsAdmin bool, activities []models.Activity) []models.Activity {
	if viewerIsAdmin {
		return activities
	}
	out := make([]models.Activity, 0, len(activities))
	for _, a := range activities {
		if ActivityVisible(viewerIsAdmin, &a) {
			out = append(out, a)
		}
	}
	return out
}
