package handlers

import (
	"net/http"
	"time"

	"github.com/jamilsaadou/naneye-sub000/internal/services/payments"
	auth "github.com/jamilsaadou/naneye-sub000/internal/transport/auth"
)

// ManualPayment accepts multipart/form-data with taxpayer_id, notice_id,
// amount, method and an optional proof file. The proof is stored first; the
// ledger mutation itself is atomic inside the service.
func (h *Handlers) ManualPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.JSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "message": "use POST"})
		return
	}

	actorID, err := auth.GetUserID(r.Context())
	if err != nil {
		h.JSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "message": "unauthorized"})
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.JSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "bad multipart: " + err.Error()})
		return
	}

	in := payments.ManualPaymentInput{
		TaxpayerID: r.FormValue("taxpayer_id"),
		NoticeID:   r.FormValue("notice_id"),
		Amount:     r.FormValue("amount"),
		Method:     r.FormValue("method"),
		ActorID:    actorID,
	}

	if f, fh, err := r.FormFile("proof"); err == nil {
		defer f.Close()
		url, perr := h.Proofs.Put(r.Context(), fh.Filename, f, fh.Size, fh.Header.Get("Content-Type"))
		if perr != nil {
			h.Logger.Printf("[PAY][MANUAL][ERR] proof upload: %v", perr)
			h.JSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "message": "failed to store proof"})
			return
		}
		in.ProofURL = &url
	}

	payment, notice, err := h.Payments.ApplyManualPayment(r.Context(), in)
	if err != nil {
		h.Error(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"message":    "payment recorded",
		"payment_id": payment.ID,
		"notice": map[string]any{
			"number":       notice.Number,
			"total_amount": notice.TotalAmount.String(),
			"amount_paid":  notice.AmountPaid.String(),
			"status":       notice.Status,
		},
	})
}

// PaymentProofLink hands a supervisor a short-lived download URL for a
// payment's proof document.
func (h *Handlers) PaymentProofLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.JSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "message": "use GET"})
		return
	}

	if _, err := auth.GetUserID(r.Context()); err != nil {
		h.JSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "message": "unauthorized"})
		return
	}

	ref := r.URL.Query().Get("ref")
	if ref == "" {
		h.JSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "ref is required"})
		return
	}

	link, err := h.Proofs.ViewLink(r.Context(), ref, 15*time.Minute)
	if err != nil {
		h.JSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "bad proof reference"})
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"ok": true, "url": link})
}
