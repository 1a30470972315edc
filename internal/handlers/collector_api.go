package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/jamilsaadou/naneye-sub000/internal/apperr"
	"github.com/jamilsaadou/naneye-sub000/internal/models"
	"github.com/jamilsaadou/naneye-sub000/internal/repository/collectorlog"
	"github.com/jamilsaadou/naneye-sub000/internal/services/payments"
	auth "github.com/jamilsaadou/naneye-sub000/internal/transport/auth"
)

type externalPaymentRequest struct {
	NoticeNumber      string `json:"noticeNumber"`
	TaxpayerCode      string `json:"taxpayerCode"`
	Amount            string `json:"amount"`
	ReferenceID       string `json:"referenceId"`
	PaidAtEpochMillis int64  `json:"paidAtEpochMillis"`
}

// CollectorPayment handles the external payment POST. Every invocation,
// whatever its outcome, produces exactly one collector call-log row.
func (h *Handlers) CollectorPayment(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.CollectorFromContext(r.Context())
	if err != nil {
		h.JSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "message": "unauthorized"})
		return
	}

	if r.Method != http.MethodPost {
		h.JSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "message": "use POST"})
		return
	}

	body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))

	var req externalPaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		resp := map[string]any{"ok": false, "message": "malformed JSON body"}
		h.JSON(w, http.StatusBadRequest, resp)
		h.logCall(r.Context(), ident, req, string(body), resp, collectorlog.StatusFailed, "malformed JSON body")
		return
	}

	result, err := h.Payments.ApplyExternalPayment(r.Context(), payments.ExternalPaymentInput{
		NoticeNumber:     req.NoticeNumber,
		TaxpayerCode:     req.TaxpayerCode,
		Amount:           req.Amount,
		ExternalTxnID:    req.ReferenceID,
		PaidAtEpochMilli: req.PaidAtEpochMillis,
		Collector:        ident.Collector,
	})
	if err != nil {
		resp := map[string]any{"ok": false, "message": err.Error()}
		code := http.StatusBadRequest
		if apperr.KindOf(err) == apperr.KindAuth {
			code = http.StatusUnauthorized
		}
		h.JSON(w, code, resp)
		h.logCall(r.Context(), ident, req, string(body), resp, collectorlog.StatusFailed, err.Error())
		return
	}

	resp := map[string]any{"ok": true, "paymentId": result.PaymentID}
	h.JSON(w, http.StatusOK, resp)

	status, msg := collectorlog.StatusSuccess, "payment recorded"
	if result.Duplicate {
		status, msg = collectorlog.StatusIgnored, "duplicate referenceId, prior outcome returned"
	}
	h.logCall(r.Context(), ident, req, string(body), resp, status, msg)
}

// CollectorNotice handles the statement GET for one notice number.
func (h *Handlers) CollectorNotice(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.CollectorFromContext(r.Context())
	if err != nil {
		h.JSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "message": "unauthorized"})
		return
	}

	if r.Method != http.MethodGet {
		h.JSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "message": "use GET"})
		return
	}

	number := r.URL.Query().Get("noticeNumber")
	req := externalPaymentRequest{NoticeNumber: number}

	st, err := h.Payments.NoticeStatement(r.Context(), number)
	if err != nil {
		resp := map[string]any{"ok": false, "message": err.Error()}
		h.JSON(w, http.StatusBadRequest, resp)
		h.logCall(r.Context(), ident, req, "", resp, collectorlog.StatusFailed, err.Error())
		return
	}

	resp := map[string]any{
		"ok": true,
		"notice": map[string]any{
			"number":       st.Notice.Number,
			"year":         st.Notice.Year,
			"total_amount": st.Notice.TotalAmount.String(),
			"amount_paid":  st.Notice.AmountPaid.String(),
			"remaining":    st.Notice.Remaining().String(),
			"status":       st.Notice.Status,
		},
		"taxpayer": taxpayerContact(st),
		"payments": paymentList(st.Payments),
	}
	h.JSON(w, http.StatusOK, resp)
	h.logCall(r.Context(), ident, req, "", resp, collectorlog.StatusSuccess, "statement returned")
}

// CollectorCallLogs is the staff-facing forensic view of a collector's
// recent API calls.
func (h *Handlers) CollectorCallLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.JSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "message": "use GET"})
		return
	}

	collectorID := r.URL.Query().Get("collectorId")
	if collectorID == "" {
		h.JSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "collectorId is required"})
		return
	}

	limit := int64(100)
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.Calls.ByCollector(r.Context(), collectorID, limit)
	if err != nil {
		h.JSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "message": "failed to read call log"})
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"ok": true, "calls": entries})
}

func (h *Handlers) logCall(ctx context.Context, ident *auth.CollectorIdentity, req externalPaymentRequest, rawReq string, resp any, status, message string) {
	respJSON, _ := json.Marshal(resp)

	e := collectorlog.Entry{
		CollectorID:     ident.Collector.ID,
		NoticeNumber:    req.NoticeNumber,
		RequestTxnID:    req.ReferenceID,
		Status:          status,
		Message:         message,
		RequestPayload:  rawReq,
		ResponsePayload: string(respJSON),
	}
	if ident.Claims != nil {
		e.JwtTxnID = ident.Claims.TxnID
		e.JwtIssuer = ident.Claims.Issuer
	}

	if err := h.Calls.Append(ctx, e); err != nil {
		h.Logger.Printf("[COLLECTOR][LOG][ERR] %v", err)
	}
}

func taxpayerContact(st *payments.Statement) map[string]any {
	if st.Taxpayer == nil {
		return nil
	}
	return map[string]any{
		"code":    st.Taxpayer.Code,
		"name":    st.Taxpayer.Name,
		"phone":   st.Taxpayer.Phone,
		"address": st.Taxpayer.Address,
	}
}

func paymentList(pays []models.Payment) []map[string]any {
	out := make([]map[string]any, 0, len(pays))
	for _, p := range pays {
		item := map[string]any{
			"id":      p.ID,
			"amount":  p.Amount.String(),
			"method":  p.Method,
			"paid_at": p.PaidAt,
		}
		if p.ExternalTxnID != nil {
			item["reference_id"] = *p.ExternalTxnID
		}
		out = append(out, item)
	}
	return out
}
