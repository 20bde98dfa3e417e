package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/retrolive/retrolive/go/internal/activity"
	"github.com/retrolive/retrolive/go/internal/authority"
	"github.com/retrolive/retrolive/go/internal/cards"
	"github.com/retrolive/retrolive/go/internal/changefeed"
	"github.com/retrolive/retrolive/go/internal/docstore"
	"github.com/retrolive/retrolive/go/internal/icebreaker"
	"github.com/retrolive/retrolive/go/internal/models"
	"github.com/retrolive/retrolive/go/internal/session"
	"github.com/retrolive/retrolive/go/internal/timer"
)

// APIHandler exposes the imperative operations over HTTP. Identity is the
// caller's self-reported display name; authority checks compare it against
// the session document and are advisory, not authentication.
type APIHandler struct {
	sessions    *session.App
	cards       *cards.App
	activities  *activity.App
	icebreakers *icebreaker.App
	timers      *timer.App
	feed        changefeed.Publisher
}

func NewAPIHandler(sessions *session.App, cardApp *cards.App, activities *activity.App, icebreakers *icebreaker.App, timers *timer.App, feed changefeed.Publisher) *APIHandler {
	return &APIHandler{
		sessions:    sessions,
		cards:       cardApp,
		activities:  activities,
		icebreakers: icebreakers,
		timers:      timers,
		feed:        feed,
	}
}

// RegisterRoutes registers all API routes on the mux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/join", h.handleJoinSession)
	mux.HandleFunc("POST /api/sessions/{id}/presence", h.handleSetPresence)
	mux.HandleFunc("POST /api/sessions/{id}/status", h.handleSetSessionStatus)
	mux.HandleFunc("POST /api/sessions/{id}/close", h.handleCloseSession)
	mux.HandleFunc("POST /api/sessions/{id}/current-activity", h.handleSetCurrentActivity)
	mux.HandleFunc("POST /api/sessions/{id}/cards-visibility", h.handleSetCardsVisibilityDefault)

	mux.HandleFunc("POST /api/sessions/{id}/cards", h.handleAddCard)
	mux.HandleFunc("GET /api/sessions/{id}/cards", h.handleListCards)
	mux.HandleFunc("POST /api/sessions/{id}/cards/visibility", h.handleSetAllCardsVisibility)
	mux.HandleFunc("POST /api/sessions/{id}/columns/{column}/visibility", h.handleSetColumnVisibility)
	mux.HandleFunc("POST /api/cards/{id}/visibility", h.handleSetCardVisibility)

	mux.HandleFunc("POST /api/sessions/{id}/activities", h.handleAddActivity)
	mux.HandleFunc("GET /api/sessions/{id}/activities", h.handleListActivities)
	mux.HandleFunc("GET /api/activities/{id}", h.handleGetActivity)
	mux.HandleFunc("POST /api/activities/{id}/launch", h.handleLaunchActivity)
	mux.HandleFunc("POST /api/activities/{id}/complete", h.handleCompleteActivity)
	mux.HandleFunc("DELETE /api/activities/{id}", h.handleDeleteActivity)

	mux.HandleFunc("POST /api/activities/{id}/icebreaker/initialize", h.icebreakerOp("initialize", h.icebreakers.Initialize))
	mux.HandleFunc("POST /api/activities/{id}/icebreaker/change-question", h.icebreakerOp("change-question", h.icebreakers.ChangeQuestion))
	mux.HandleFunc("POST /api/activities/{id}/icebreaker/change-player", h.icebreakerOp("change-player", h.icebreakers.ChangePlayer))
	mux.HandleFunc("POST /api/activities/{id}/icebreaker/restart", h.icebreakerOp("restart", h.icebreakers.Restart))

	mux.HandleFunc("GET /api/sessions/{id}/timer", h.handleGetTimer)
	mux.HandleFunc("POST /api/sessions/{id}/timer/start", h.handleStartTimer)
	mux.HandleFunc("POST /api/sessions/{id}/timer/pause", h.timerOp(EventTypeTimerPaused, h.timers.Pause))
	mux.HandleFunc("POST /api/sessions/{id}/timer/resume", h.timerOp(EventTypeTimerResumed, h.timers.Resume))
	mux.HandleFunc("POST /api/sessions/{id}/timer/stop", h.timerOp(EventTypeTimerStopped, h.timers.Stop))

	log.Info().Msg("API routes registered")
}

// ---- sessions ----

func (h *APIHandler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	sess, err := h.sessions.Create(r.Context(), req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h.publish(r.Context(), sess.ID, EventTypeSessionUpdated, sess)
	writeJSON(w, http.StatusCreated, sess)
}

func (h *APIHandler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	sess, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *APIHandler) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	participantID, err := h.sessions.AddParticipant(r.Context(), sessionID, req.Name)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.publish(r.Context(), sessionID, EventTypeParticipantJoined, map[string]string{
		"participant_id": participantID.String(),
		"name":           req.Name,
	})
	writeJSON(w, http.StatusOK, map[string]string{"participant_id": participantID.String()})
}

func (h *APIHandler) handleSetPresence(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		ParticipantID uuid.UUID            `json:"participant_id"`
		Presence      models.PresenceState `json:"presence"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.sessions.SetPresence(r.Context(), sessionID, req.ParticipantID, req.Presence); err != nil {
		writeStoreError(w, err)
		return
	}

	h.publish(r.Context(), sessionID, EventTypePresenceChanged, req)
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) handleSetSessionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Name   string               `json:"name"`
		Status models.SessionStatus `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !h.requireAdmin(w, r.Context(), sessionID, req.Name) {
		return
	}

	if err := h.sessions.SetStatus(r.Context(), sessionID, req.Status); err != nil {
		writeStoreError(w, err)
		return
	}

	h.publish(r.Context(), sessionID, EventTypeSessionUpdated, map[string]string{"status": string(req.Status)})
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !h.requireAdmin(w, r.Context(), sessionID, req.Name) {
		return
	}

	if err := h.sessions.Close(r.Context(), sessionID); err != nil {
		writeStoreError(w, err)
		return
	}

	h.publish(r.Context(), sessionID, EventTypeSessionClosed, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) handleSetCurrentActivity(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Name       string     `json:"name"`
		ActivityID *uuid.UUID `json:"activity_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !h.requireAdmin(w, r.Context(), sessionID, req.Name) {
		return
	}

	if err := h.sessions.SetCurrentActivity(r.Context(), sessionID, req.ActivityID); err != nil {
		writeStoreError(w, err)
		return
	}

	h.publish(r.Context(), sessionID, EventTypeSessionUpdated, map[string]*uuid.UUID{"current_activity_id": req.ActivityID})
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) handleSetCardsVisibilityDefault(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Name    string `json:"name"`
		Visible bool   `json:"visible"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !h.requireAdmin(w, r.Context(), sessionID, req.Name) {
		return
	}

	if err := h.sessions.SetCardsVisibility(r.Context(), sessionID, req.Visible); err != nil {
		writeStoreError(w, err)
		return
	}

	h.publish(r.Context(), sessionID, EventTypeSessionUpdated, map[string]bool{"cards_visible": req.Visible})
	w.WriteHeader(http.StatusNoContent)
}

// ---- cards ----

func (h *APIHandler) handleAddCard(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Name      string            `json:"name"`
		Text      string            `json:"text"`
		Column    models.ColumnType `json:"column"`
		IsVisible bool              `json:"is_visible"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	cardID, err := h.cards.AddCard(r.Context(), cards.AddCardRequest{
		SessionID: sessionID,
		Text:      req.Text,
		Column:    req.Column,
		Author:    req.Name,
		IsVisible: req.IsVisible,
	})
	if err != nil {
		switch {
		case errors.Is(err, cards.ErrSessionPaused), errors.Is(err, cards.ErrSessionClosed):
			writeError(w, http.StatusConflict, err)
		case errors.Is(err, docstore.ErrNotFound):
			writeError(w, http.StatusNotFound, err)
		default:
			writeError(w, http.StatusBadRequest, err)
		}
		return
	}

	h.publish(r.Context(), sessionID, EventTypeCardAdded, map[string]string{"card_id": cardID.String()})
	writeJSON(w, http.StatusCreated, map[string]string{"card_id": cardID.String()})
}

func (h *APIHandler) handleListCards(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	viewerIsAdmin, err := h.viewerIsAdmin(r.Context(), sessionID, r.URL.Query().Get("name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	list, err := h.cards.ListCards(r.Context(), sessionID, viewerIsAdmin)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *APIHandler) handleSetCardVisibility(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Name      string    `json:"name"`
		SessionID uuid.UUID `json:"session_id"`
		Visible   bool      `json:"visible"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !h.requireAdmin(w, r.Context(), req.SessionID, req.Name) {
		return
	}

	if err := h.cards.SetCardVisibility(r.Context(), cardID, req.Visible); err != nil {
		writeStoreError(w, err)
		return
	}

	h.publish(r.Context(), req.SessionID, EventTypeCardsVisibilityChanged, map[string]any{
		"card_id": cardID.String(),
		"visible": req.Visible,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) handleSetColumnVisibility(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	column := models.ColumnType(r.PathValue("column"))
	var req struct {
		Name    string `json:"name"`
		Visible bool   `json:"visible"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !h.requireAdmin(w, r.Context(), sessionID, req.Name) {
		return
	}

	if err := h.cards.SetColumnVisibility(r.Context(), sessionID, column, req.Visible); err != nil {
		writeStoreError(w, err)
		return
	}

	h.publish(r.Context(), sessionID, EventTypeCardsVisibilityChanged, map[string]any{
		"column":  string(column),
		"visible": req.Visible,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) handleSetAllCardsVisibility(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Name    string `json:"name"`
		Visible bool   `json:"visible"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !h.requireAdmin(w, r.Context(), sessionID, req.Name) {
		return
	}

	if err := h.cards.SetAllCardsVisibility(r.Context(), sessionID, req.Visible); err != nil {
		writeStoreError(w, err)
		return
	}

	h.publish(r.Context(), sessionID, EventTypeCardsVisibilityChanged, map[string]any{"visible": req.Visible})
	w.WriteHeader(http.StatusNoContent)
}

// ---- activities ----

func (h *APIHandler) handleAddActivity(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Name string                `json:"name"`
		Type models.ActivityType   `json:"type"`
		Kind models.IceBreakerKind `json:"kind"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !h.requireAdmin(w, r.Context(), sessionID, req.Name) {
		return
	}

	act, err := h.activities.Add(r.Context(), activity.AddActivityRequest{
		SessionID: sessionID,
		Type:      req.Type,
		Kind:      req.Kind,
		AddedBy:   req.Name,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h.publish(r.Context(), sessionID, EventTypeActivityAdded, act)
	writeJSON(w, http.StatusCreated, act)
}

func (h *APIHandler) handleListActivities(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	viewerIsAdmin, err := h.viewerIsAdmin(r.Context(), sessionID, r.URL.Query().Get("name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	list, err := h.activities.List(r.Context(), sessionID, viewerIsAdmin)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *APIHandler) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	activityID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	act, err := h.activities.GetWithRetry(r.Context(), activityID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

func (h *APIHandler) handleLaunchActivity(w http.ResponseWriter, r *http.Request) {
	act, ok := h.activityAdminRequest(w, r)
	if !ok {
		return
	}

	launched, err := h.activities.Launch(r.Context(), act.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.publish(r.Context(), act.SessionID, EventTypeActivityLaunched, launched)
	writeJSON(w, http.StatusOK, launched)
}

func (h *APIHandler) handleCompleteActivity(w http.ResponseWriter, r *http.Request) {
	act, ok := h.activityAdminRequest(w, r)
	if !ok {
		return
	}

	completed, err := h.activities.Complete(r.Context(), act.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	// Clear the session pointer when it still references this activity.
	sess, err := h.sessions.GetSession(r.Context(), act.SessionID)
	if err == nil && sess.CurrentActivityID != nil && *sess.CurrentActivityID == act.ID {
		if err := h.sessions.SetCurrentActivity(r.Context(), act.SessionID, nil); err != nil {
			log.Error().Err(err).Str("session_id", act.SessionID.String()).Msg("failed to clear current activity pointer")
		}
	}

	h.publish(r.Context(), act.SessionID, EventTypeActivityCompleted, completed)
	writeJSON(w, http.StatusOK, completed)
}

func (h *APIHandler) handleDeleteActivity(w http.ResponseWriter, r *http.Request) {
	act, ok := h.activityAdminRequest(w, r)
	if !ok {
		return
	}

	sess, err := h.sessions.GetSession(r.Context(), act.SessionID)
	if err == nil && sess.CurrentActivityID != nil && *sess.CurrentActivityID == act.ID {
		if err := h.sessions.SetCurrentActivity(r.Context(), act.SessionID, nil); err != nil {
			log.Error().Err(err).Str("session_id", act.SessionID.String()).Msg("failed to clear current activity pointer")
		}
	}

	if err := h.activities.Delete(r.Context(), act.ID); err != nil {
		writeStoreError(w, err)
		return
	}

	h.publish(r.Context(), act.SessionID, EventTypeActivityDeleted, map[string]string{"activity_id": act.ID.String()})
	w.WriteHeader(http.StatusNoContent)
}

// activityAdminRequest loads the target activity, decodes the caller's name
// and verifies admin authority against the owning session.
func (h *APIHandler) activityAdminRequest(w http.ResponseWriter, r *http.Request) (*models.Activity, bool) {
	activityID, ok := pathUUID(w, r, "id")
	if !ok {
		return nil, false
	}
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return nil, false
	}

	act, err := h.activities.Get(r.Context(), activityID)
	if err != nil {
		writeStoreError(w, err)
		return nil, false
	}
	if !h.requireAdmin(w, r.Context(), act.SessionID, req.Name) {
		return nil, false
	}
	return act, true
}

// ---- icebreaker ----

func (h *APIHandler) icebreakerOp(op string, fn func(context.Context, uuid.UUID) (*models.Activity, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activityID, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		act, err := fn(r.Context(), activityID)
		if err != nil {
			switch {
			case errors.Is(err, icebreaker.ErrNoParticipants):
				writeError(w, http.StatusConflict, err)
			case errors.Is(err, docstore.ErrNotFound):
				writeError(w, http.StatusNotFound, err)
			default:
				writeError(w, http.StatusBadRequest, err)
			}
			return
		}

		h.publish(r.Context(), act.SessionID, EventTypeTurnChanged, map[string]any{
			"operation":         op,
			"current_turn":      act.CurrentTurn,
			"all_players_asked": act.AllPlayersAsked,
		})
		writeJSON(w, http.StatusOK, act)
	}
}

// ---- timer ----

func (h *APIHandler) handleGetTimer(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	state, err := h.timers.Get(r.Context(), sessionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *APIHandler) handleStartTimer(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Name    string `json:"name"`
		Minutes int    `json:"minutes"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !h.requireAdmin(w, r.Context(), sessionID, req.Name) {
		return
	}

	state, err := h.timers.Start(r.Context(), sessionID, req.Minutes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h.publish(r.Context(), sessionID, EventTypeTimerStarted, state)
	writeJSON(w, http.StatusOK, state)
}

func (h *APIHandler) timerOp(eventType EventType, fn func(context.Context, uuid.UUID) (*models.TimerState, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		var req struct {
			Name string `json:"name"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if !h.requireAdmin(w, r.Context(), sessionID, req.Name) {
			return
		}

		state, err := fn(r.Context(), sessionID)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		h.publish(r.Context(), sessionID, eventType, state)
		writeJSON(w, http.StatusOK, state)
	}
}

// ---- helpers ----

// requireAdmin loads the session and verifies the display name holds
// authority. It writes the error response itself and reports success.
func (h *APIHandler) requireAdmin(w http.ResponseWriter, ctx context.Context, sessionID uuid.UUID, name string) bool {
	sess, err := h.sessions.GetSession(ctx, sessionID)
	if err != nil {
		writeStoreError(w, err)
		return false
	}
	if !authority.IsAdmin(sess, name) {
		writeError(w, http.StatusForbidden, errors.New("admin authority required"))
		return false
	}
	return true
}

func (h *APIHandler) viewerIsAdmin(ctx context.Context, sessionID uuid.UUID, name string) (bool, error) {
	sess, err := h.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return authority.IsAdmin(sess, name), nil
}

// publish sends a change feed event, best effort. The document store remains
// the source of truth; a lost notification only delays observers until their
// next snapshot.
func (h *APIHandler) publish(ctx context.Context, sessionID uuid.UUID, eventType EventType, payload any) {
	if h.feed == nil {
		return
	}
	event, err := changefeed.NewEvent(sessionID, string(eventType), payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build feed event")
		return
	}
	if err := h.feed.Publish(ctx, event); err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish feed event")
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(key))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid "+key))
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Error().Err(err).Msg("failed to encode response")
		}
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, docstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}
