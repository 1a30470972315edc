package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jamilsaadou/naneye-sub000/internal/models"
	"github.com/jamilsaadou/naneye-sub000/internal/services/reductions"
	auth "github.com/jamilsaadou/naneye-sub000/internal/transport/auth"
)

type reductionRequestBody struct {
	TaxpayerCode string `json:"taxpayerCode"`
	NoticeNumber string `json:"noticeNumber"`
	Amount       string `json:"amount"`
	Reason       string `json:"reason"`
}

type reductionDecisionBody struct {
	ReductionID string  `json:"reductionId"`
	ReviewNote  *string `json:"reviewNote,omitempty"`
}

func (h *Handlers) RequestReduction(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.requirePost(w, r)
	if !ok {
		return
	}

	var body reductionRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.JSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "malformed JSON body"})
		return
	}

	red, notice, err := h.Reductions.Request(r.Context(), reductions.RequestInput{
		TaxpayerCode: body.TaxpayerCode,
		NoticeNumber: body.NoticeNumber,
		Amount:       body.Amount,
		Reason:       body.Reason,
		RequesterID:  actorID,
	})
	if err != nil {
		h.Error(w, err)
		return
	}

	msg := "reduction submitted for approval"
	if red.Status == models.ReductionApproved {
		msg = "reduction applied"
	}

	resp := map[string]any{"ok": true, "message": msg, "reduction_id": red.ID, "status": red.Status}
	if notice != nil {
		resp["new_total"] = notice.TotalAmount.String()
	}
	h.JSON(w, http.StatusOK, resp)
}

func (h *Handlers) ApproveReduction(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.requirePost(w, r)
	if !ok {
		return
	}

	var body reductionDecisionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.JSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "malformed JSON body"})
		return
	}

	notice, err := h.Reductions.Approve(r.Context(), body.ReductionID, actorID, body.ReviewNote)
	if err != nil {
		h.Error(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"message":   "reduction approved",
		"new_total": notice.TotalAmount.String(),
		"status":    notice.Status,
	})
}

func (h *Handlers) RejectReduction(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.requirePost(w, r)
	if !ok {
		return
	}

	var body reductionDecisionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.JSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "malformed JSON body"})
		return
	}

	if err := h.Reductions.Reject(r.Context(), body.ReductionID, actorID, body.ReviewNote); err != nil {
		h.Error(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"ok": true, "message": "reduction rejected"})
}

// PendingReductions lists the caller's approval inbox.
func (h *Handlers) PendingReductions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.JSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "message": "use GET"})
		return
	}

	actorID, err := auth.GetUserID(r.Context())
	if err != nil {
		h.JSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "message": "unauthorized"})
		return
	}

	reds, err := h.Reductions.PendingForReviewer(r.Context(), actorID)
	if err != nil {
		h.Error(w, err)
		return
	}

	out := make([]map[string]any, 0, len(reds))
	for _, red := range reds {
		out = append(out, map[string]any{
			"id":             red.ID,
			"notice_id":      red.NoticeID,
			"amount":         red.Amount.String(),
			"previous_total": red.PreviousTotal.String(),
			"new_total":      red.NewTotal.String(),
			"reason":         red.Reason,
			"created_at":     red.CreatedAt,
		})
	}
	h.JSON(w, http.StatusOK, map[string]any{"ok": true, "reductions": out})
}

func (h *Handlers) requirePost(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if r.Method != http.MethodPost {
		h.JSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "message": "use POST"})
		return 0, false
	}

	actorID, err := auth.GetUserID(r.Context())
	if err != nil {
		h.JSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "message": "unauthorized"})
		return 0, false
	}
	return actorID, true
}
