package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// GetOwnerState fetches the owner's pause/resume flag.
func (c *Client) GetOwnerState(ctx context.Context, ownerID string) (*OwnerState, error) {
	path := "/owners/" + url.PathEscape(ownerID) + "/state"

	resp, err := c.do(ctx, http.MethodGet, path, nil, requestOpts{})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var state OwnerState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("api: decoding owner state: %w", err)
	}

	return &state, nil
}

// SetOwnerState updates the owner's pause flag and returns the stored
// state as the server recorded it.
func (c *Client) SetOwnerState(ctx context.Context, ownerID string, isPaused bool) (*OwnerState, error) {
	path := "/owners/" + url.PathEscape(ownerID) + "/state"

	body, err := json.Marshal(map[string]bool{"IsPaused": isPaused})
	if err != nil {
		return nil, fmt.Errorf("api: encoding owner state: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, path, bytes.NewReader(body), requestOpts{})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var state OwnerState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("api: decoding owner state: %w", err)
	}

	return &state, nil
}
