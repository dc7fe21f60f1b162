package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"eventcheckout/internal/adapters/payment"
	"eventcheckout/internal/checkout"
	"eventcheckout/internal/domain"
	"eventcheckout/internal/observability"
)

type Handlers struct {
	svc    *checkout.Service
	logger observability.Logger
}

func NewHandlers(svc *checkout.Service, logger observability.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logger}
}

type participantPayload struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func (p participantPayload) toDomain() domain.Participant {
	return domain.Participant{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Phone:     p.Phone,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the error taxonomy to HTTP statuses. Sold out
// and already-redeemed are expected outcomes, reported as plain 409s.
func (h *Handlers) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrSoldOut):
		writeError(w, http.StatusConflict, "sold out")
	case errors.Is(err, domain.ErrAlreadyRedeemed):
		writeError(w, http.StatusConflict, "voucher already redeemed")
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, retry with backoff")
	case errors.Is(err, domain.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, "invalid signature")
	case errors.Is(err, domain.ErrExternalService):
		writeError(w, http.StatusBadGateway, "payment provider unavailable")
	default:
		h.logger.WithError(err).Error("unhandled error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// Availability handles GET /v1/events/{id}/availability.
func (h *Handlers) Availability(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	a, err := h.svc.Availability(r.Context(), eventID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"available": a.Available,
		"total":     a.Total,
		"sold_out":  a.SoldOut(),
	})
}

// CreateCheckout handles POST /v1/checkout (paid flow).
func (h *Handlers) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EventID        string             `json:"event_id"`
		Participant    participantPayload `json:"participant"`
		EmergencyName  string             `json:"emergency_name"`
		EmergencyPhone string             `json:"emergency_phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.svc.CreateCheckout(r.Context(), checkout.CheckoutRequest{
		EventID:     req.EventID,
		Participant: req.Participant.toDomain(),
		Emergency: domain.EmergencyContact{
			Name:  req.EmergencyName,
			Phone: req.EmergencyPhone,
		},
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id":   session.SessionID,
		"redirect_url": session.RedirectURL,
	})
}

// RegisterWithVoucher handles POST /v1/checkout/voucher.
func (h *Handlers) RegisterWithVoucher(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EventID     string             `json:"event_id"`
		Participant participantPayload `json:"participant"`
		VoucherCode string             `json:"voucher_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.RegisterWithVoucher(r.Context(), checkout.VoucherCheckoutRequest{
		EventID:     req.EventID,
		Participant: req.Participant.toDomain(),
		VoucherCode: req.VoucherCode,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"confirmation_number": result.ConfirmationNumber,
		"session_id":          result.SessionID,
	})
}

// IssueVoucher handles POST /v1/vouchers.
func (h *Handlers) IssueVoucher(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PurchaserEmail string `json:"purchaser_email"`
		RecipientEmail string `json:"recipient_email"`
		Message        string `json:"message"`
		ValueType      string `json:"value_type"`
		OrderID        string `json:"order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	code, err := h.svc.IssueVoucher(r.Context(), checkout.IssueVoucherRequest{
		PurchaserEmail: req.PurchaserEmail,
		RecipientEmail: req.RecipientEmail,
		Message:        req.Message,
		ValueType:      req.ValueType,
		OrderID:        req.OrderID,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"code": code})
}

// GetVoucher handles GET /v1/vouchers/{code}.
func (h *Handlers) GetVoucher(w http.ResponseWriter, r *http.Request) {
	voucher, err := h.svc.GetVoucher(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"code":       voucher.Code,
		"status":     voucher.Status,
		"value_type": voucher.ValueType,
		"created_at": voucher.CreatedAt,
	})
}

// ValidateVoucher handles GET /v1/vouchers/{code}/validate.
func (h *Handlers) ValidateVoucher(w http.ResponseWriter, r *http.Request) {
	validation, err := h.svc.ValidateVoucherCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	resp := map[string]interface{}{"valid": validation.Valid}
	if validation.Valid {
		resp["value_type"] = validation.ValueType
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRegistration handles GET /v1/registrations/{session_id}. The
// success page polls this until the payment callback has landed.
func (h *Handlers) GetRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.GetRegistration(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, registrationPayload(reg))
}

// EventRegistrations handles GET /v1/events/{id}/registrations.
func (h *Handlers) EventRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.svc.ListRegistrations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(regs))
	for i := range regs {
		out = append(out, registrationPayload(&regs[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"registrations": out})
}

func registrationPayload(reg *domain.Registration) map[string]interface{} {
	return map[string]interface{}{
		"confirmation_number": reg.ConfirmationNumber,
		"event_id":            reg.EventID,
		"session_id":          reg.SessionID,
		"first_name":          reg.Participant.FirstName,
		"last_name":           reg.Participant.LastName,
		"email":               reg.Participant.Email,
		"amount_cents":        reg.AmountCents,
		"created_at":          reg.CreatedAt,
	}
}

// PaymentWebhook handles POST /v1/payments/webhook. It acknowledges
// with 200 once the registration write is durable or already recorded;
// any other status lets the gateway redeliver.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	signature := r.Header.Get(payment.SignatureHeader)

	if err := h.svc.HandlePaymentCallback(r.Context(), rawBody, signature); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
