package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/clipsync-app/clipsync/internal/payload"
)

// UploadRequest carries one serialized payload to the remote store.
type UploadRequest struct {
	OwnerID  string
	FileName string
	Kind     payload.Kind
	Payload  *payload.Payload
	// ExpiresAt, when non-zero, asks the store to drop the item after
	// this time.
	ExpiresAt time.Time
}

// Upload sends a serialized payload and returns the stored item's
// summary. Metadata travels in headers so the body stays a raw stream.
func (c *Client) Upload(ctx context.Context, req *UploadRequest) (*ItemSummary, error) {
	if req.OwnerID == "" {
		return nil, fmt.Errorf("api: upload: owner id is empty")
	}

	path := "/owners/" + url.PathEscape(req.OwnerID) + "/items"

	// The payload stream is consumed exactly once, so the request must
	// not be replayed at the HTTP layer. Failed uploads are dropped by
	// the dispatcher, not retried.
	resp, err := c.do(ctx, http.MethodPost, path, req.Payload.Body, requestOpts{
		contentType: req.Payload.ContentType,
		noRetry:     true,
		headers: http.Header{
			"X-Clip-Kind":       []string{req.Kind.String()},
			"X-Clip-Device":     []string{c.device},
			"X-Clip-Filename":   []string{req.FileName},
			"X-Clip-Request-Id": []string{uuid.NewString()},
			"X-Clip-Expires":    expiresHeader(req.ExpiresAt),
		},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var item ItemSummary
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("api: decoding upload response: %w", err)
	}

	return &item, nil
}

// List returns up to take recent items for the owner, most recent first.
func (c *Client) List(ctx context.Context, ownerID string, take int) ([]ItemSummary, error) {
	path := "/owners/" + url.PathEscape(ownerID) + "/items?take=" + strconv.Itoa(take)

	resp, err := c.do(ctx, http.MethodGet, path, nil, requestOpts{})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var items []ItemSummary
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("api: decoding item list: %w", err)
	}

	return items, nil
}

// Download fetches one item including its inline content. Returns nil
// without error when the item no longer exists.
func (c *Client) Download(ctx context.Context, ownerID, itemID string) (*ItemSummary, error) {
	path := "/owners/" + url.PathEscape(ownerID) + "/items/" + url.PathEscape(itemID)

	resp, err := c.do(ctx, http.MethodGet, path, nil, requestOpts{})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}

		return nil, err
	}
	defer resp.Body.Close()

	var item ItemSummary
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("api: decoding item %s: %w", itemID, err)
	}

	return &item, nil
}

// expiresHeader formats an optional expiry as an RFC 3339 header value.
func expiresHeader(t time.Time) []string {
	if t.IsZero() {
		return nil
	}

	return []string{t.UTC().Format(time.RFC3339)}
}
