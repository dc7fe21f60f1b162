package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"eventcheckout/internal/domain"
)

// EventPaymentCaptured is the callback type that finalizes a registration.
const EventPaymentCaptured = "payment.captured"

// SignatureHeader carries the hex HMAC-SHA256 of the raw callback body.
const SignatureHeader = "X-Gateway-Signature"

// SessionRequest describes a hosted-checkout session to create. Metadata
// carries the full registration payload so the webhook can write the
// registration without any server-side state.
type SessionRequest struct {
	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	SuccessURL  string            `json:"success_url"`
	CancelURL   string            `json:"cancel_url"`
	Metadata    map[string]string `json:"metadata"`
}

// Session is the gateway's handle for a created checkout session.
type Session struct {
	ID          string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// CallbackEvent is a verified, decoded gateway notification.
type CallbackEvent struct {
	Type    string `json:"type"`
	Session struct {
		ID          string            `json:"id"`
		AmountCents int64             `json:"amount_cents"`
		Metadata    map[string]string `json:"metadata"`
	} `json:"session"`
}

type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

func NewClient(baseURL, webhookSecret string) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  webhookSecret,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateSession asks the gateway for a hosted checkout session.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Mark(err, domain.ErrExternalService)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.Mark(
			errors.Newf("gateway returned status %d", resp.StatusCode),
			domain.ErrExternalService,
		)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, errors.Mark(err, domain.ErrExternalService)
	}
	return &session, nil
}

// VerifyCallback checks the callback signature against the shared secret
// before decoding the payload. Nothing in the body is trusted until the
// HMAC matches.
func (c *Client) VerifyCallback(rawBody []byte, signature string) (*CallbackEvent, error) {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return nil, domain.ErrInvalidSignature
	}
	expectedBytes, _ := hex.DecodeString(expected)
	if !hmac.Equal(provided, expectedBytes) {
		return nil, domain.ErrInvalidSignature
	}

	var event CallbackEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, errors.Mark(err, domain.ErrInvalidInput)
	}
	return &event, nil
}

// Sign computes the signature the gateway would attach to body. Used by
// tests and by local gateway stubs.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
