package listsync

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"eventcheckout/internal/domain"
)

// Client upserts contacts into an external marketing list. The provider
// is eventually consistent and never a precondition for registration
// success.
type Client struct {
	baseURL string
	apiKey  string
	listID  string
	http    *http.Client
}

func NewClient(baseURL, apiKey, listID string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		listID:  listID,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) UpsertContact(ctx context.Context, email string, attributes map[string]string) error {
	if c.baseURL == "" {
		return nil
	}
	payload := map[string]interface{}{
		"email":      email,
		"attributes": attributes,
		"list_id":    c.listID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/contacts", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Mark(err, domain.ErrExternalService)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Mark(
			errors.Newf("list sync returned status %d", resp.StatusCode),
			domain.ErrExternalService,
		)
	}
	return nil
}
