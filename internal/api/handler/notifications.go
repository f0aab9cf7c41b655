package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kadrohq/kadro-server/internal/api/respond"
	"github.com/kadrohq/kadro-server/internal/crossing"
	"github.com/kadrohq/kadro-server/internal/notify"
)

// eventRequest is the POST /notifications/events body.
type eventRequest struct {
	Topic   string         `json:"topic"`
	EventID string         `json:"eventId,omitempty"`
	Title   string         `json:"title,omitempty"`
	Body    string         `json:"body,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// adminMessageRequest is the POST /notifications/admin-message body.
type adminMessageRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// PostEvent validates and forwards a notification event to the emitter.
// Two topics carry server-side business rules: teker_dondu_reached is
// recomputed from live attendance and routed through the crossing
// evaluator, and mvp_poll_locked requires the poll lock flag to be set.
// @Summary Emit a notification event
// @Description Validates the topic, applies topic-specific rules, and emits at most once per event id.
// @Tags notifications
// @Accept json
// @Produce json
// @Param request body eventRequest true "event"
// @Success 200 {object} notify.EmitResult
// @Failure 400 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse
// @Router /notifications/events [post]
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body")
		return
	}
	if !notify.ValidTopic(req.Topic) {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_TOPIC",
			"Unknown notification topic", req.Topic)
		return
	}

	topic := notify.Topic(req.Topic)
	dateKey := crossing.DateKey(time.Now(), h.loc)

	// teker_dondu_reached never trusts the client: recompute the live
	// count and let the evaluator decide.
	if topic == notify.TopicTekerDondu {
		h.postTekerDondu(w, r, dateKey)
		return
	}

	if topic == notify.TopicMVPPollLocked {
		locked, err := h.matchday.PollLocked(r.Context(), dateKey)
		if err != nil {
			respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL", "Poll lock check failed", err.Error())
			return
		}
		if !locked {
			respond.WriteError(w, http.StatusConflict, "POLL_NOT_LOCKED", "MVP poll is not locked yet")
			return
		}
		if req.EventID == "" {
			req.EventID = fmt.Sprintf("mvp_poll_locked:%s", dateKey)
		}
	}

	if req.EventID == "" {
		req.EventID = fmt.Sprintf("%s:%s", req.Topic, uuid.NewString())
	}
	title, body := defaultMessage(topic, req.Title, req.Body)

	caller := CallerFrom(r.Context())
	res, err := h.emitter.Emit(r.Context(), notify.Event{
		Topic:         topic,
		EventID:       req.EventID,
		Title:         title,
		Body:          body,
		Data:          req.Data,
		CreatedByUID:  caller.UID,
		CreatedByName: caller.Name,
	})
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "DISPATCH_FAILED", "Event dispatch failed", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, res)
}

// postTekerDondu recomputes the live coming count and runs it through the
// crossing evaluator; the response reports the decision either way.
func (h *Handler) postTekerDondu(w http.ResponseWriter, r *http.Request, dateKey string) {
	count, err := h.matchday.ComingCount(r.Context(), dateKey)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL", "Attendance check failed", err.Error())
		return
	}

	decision, emitRes, err := h.trigger.Check(r.Context(), dateKey, count)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "DISPATCH_FAILED", "Crossing check failed", err.Error())
		return
	}

	resp := map[string]any{
		"comingCount":   count,
		"shouldSend":    decision.ShouldSend,
		"crossingCount": decision.CrossingCount,
	}
	if decision.CooldownActive {
		resp["skipReason"] = "cooldown"
		resp["cooldownRemainingMs"] = decision.CooldownRemaining.Milliseconds()
	} else if !decision.ShouldSend && !decision.PendingSettlesAt.IsZero() {
		resp["skipReason"] = "settling"
		resp["pendingSettlesAt"] = decision.PendingSettlesAt.UTC().Format(time.RFC3339)
	} else if !decision.ShouldSend {
		resp["skipReason"] = "below_threshold"
	}
	if emitRes != nil {
		resp["event"] = emitRes
	}
	respond.WriteJSONObject(w, http.StatusOK, resp)
}

// PostAdminMessage broadcasts a free-form admin message.
// @Summary Send an admin broadcast
// @Description Emits an admin_custom_message event to all opted-in users. Admin token required.
// @Tags notifications
// @Accept json
// @Produce json
// @Param request body adminMessageRequest true "message"
// @Success 200 {object} notify.EmitResult
// @Failure 400 {object} respond.ErrorResponse
// @Router /notifications/admin-message [post]
func (h *Handler) PostAdminMessage(w http.ResponseWriter, r *http.Request) {
	var req adminMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body")
		return
	}
	if req.Title == "" || req.Body == "" {
		respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "title and body are required")
		return
	}

	caller := CallerFrom(r.Context())
	res, err := h.emitter.Emit(r.Context(), notify.Event{
		Topic:         notify.TopicAdminMessage,
		EventID:       "admin:" + uuid.NewString(),
		Title:         req.Title,
		Body:          req.Body,
		CreatedByUID:  caller.UID,
		CreatedByName: caller.Name,
	})
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "DISPATCH_FAILED", "Event dispatch failed", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, res)
}

// GetEvent returns the ledger entry for an event id.
// @Summary Look up a notification event
// @Tags notifications
// @Produce json
// @Param eventID path string true "event id"
// @Success 200 {object} notify.EventRecord
// @Failure 404 {object} respond.ErrorResponse
// @Router /notifications/events/{eventID} [get]
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := notify.NormalizeEventID(chi.URLParam(r, "eventID"))
	rec, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL", "Event lookup failed", err.Error())
		return
	}
	if rec == nil {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "No such event")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, rec)
}

// defaultMessage fills topic defaults for title/body when the caller sent
// none.
func defaultMessage(topic notify.Topic, title, body string) (string, string) {
	if title != "" || body != "" {
		return title, body
	}
	switch topic {
	case notify.TopicMVPPollLocked:
		return "MVP oylaması kapandı 🏆", "Sonuçlar açıklandı, MVP kim bak!"
	case notify.TopicStatsUpdated:
		return "İstatistikler güncellendi 📊", "Maç istatistikleri yenilendi."
	default:
		return title, body
	}
}
