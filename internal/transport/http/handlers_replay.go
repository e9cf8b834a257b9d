package httptransport

import (
	"encoding/json"
	"net/http"

	"veris/internal/audit"
	"veris/internal/domain"
	"veris/pkg/requestcontext"
)

type replayRequest struct {
	OrgID        string   `json:"org_id"`
	EventTypes   []string `json:"event_types,omitempty"`
	TrainingMode *bool    `json:"training_mode,omitempty"`
}

type replayResponse struct {
	ReplayedCount int                 `json:"replayed_count"`
	Events        []replayEventStatus `json:"events"`
}

type replayEventStatus struct {
	EventID         string `json:"event_id"`
	EventType       string `json:"event_type"`
	HandlersInvoked int    `json:"handlers_invoked"`
	Error           string `json:"error,omitempty"`
}

// handleReplay re-delivers an org's stored events to the current handler set.
// The org is taken from the request body, not the token, so operators can
// replay any tenant; the acting operator is recorded in the audit trail
// regardless of which org was replayed.
func (h *Handler) handleReplay(w http.ResponseWriter, r *http.Request) {
	var req replayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	orgID := domain.NormalizeOrgID(req.OrgID)
	if orgID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "org_id is required"})
		return
	}

	ctx := r.Context()
	statuses, err := h.bus.Replay(ctx, orgID, req.EventTypes, req.TrainingMode)
	outcome := audit.OutcomeSuccess
	if err != nil {
		outcome = audit.OutcomeFailure
	}
	if _, auditErr := h.auditLog.Record(ctx, audit.Entry{
		Actor:          requestcontext.Actor(ctx),
		Action:         audit.ActionEventReplay,
		Resource:       "org/" + string(orgID),
		Outcome:        outcome,
		Classification: domain.ClassificationOps,
		After:          map[string]any{"replayed_count": len(statuses), "event_types": req.EventTypes},
	}); auditErr != nil {
		h.logger.Error("replay audit write failed", "org_id", orgID, "error", auditErr)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "replay failed"})
		return
	}
	if err != nil {
		h.logger.Error("replay failed", "org_id", orgID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "replay failed"})
		return
	}

	resp := replayResponse{ReplayedCount: len(statuses), Events: make([]replayEventStatus, 0, len(statuses))}
	for _, s := range statuses {
		resp.Events = append(resp.Events, replayEventStatus{
			EventID:         s.EventID,
			EventType:       s.EventType,
			HandlersInvoked: s.HandlersInvoked,
			Error:           s.Error,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
