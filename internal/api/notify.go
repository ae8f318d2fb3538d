package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
)

const (
	// pollGracePeriod is added to the requested long-poll timeout when
	// deriving the per-call deadline, covering network latency on top of
	// the server-side wait.
	pollGracePeriod = 5 * time.Second

	// maxPollBodyBytes bounds a long-poll response body.
	maxPollBodyBytes = 1 << 20
)

// PollNotifications long-polls the remote store for notification events.
// The call blocks server-side for up to timeout and returns an empty
// slice when nothing happened. Malformed events in the response are
// dropped, not surfaced as errors: at-least-once delivery with
// client-side dedup means a lost event is recovered by the next refresh.
func (c *Client) PollNotifications(ctx context.Context, ownerID string, timeout time.Duration) ([]NotificationEvent, error) {
	seconds := int(timeout / time.Second)
	path := "/owners/" + url.PathEscape(ownerID) + "/notifications?timeout=" + strconv.Itoa(seconds)

	callCtx, cancel := context.WithTimeout(ctx, timeout+pollGracePeriod)
	defer cancel()

	resp, err := c.do(callCtx, http.MethodGet, path, nil, requestOpts{noRetry: true})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPollBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("api: reading poll response: %w", err)
	}

	return c.parseEvents(body), nil
}

// parseEvents extracts notification events from a poll response body.
// Accepts either a bare JSON array or an object with an "Events" array.
// Entries missing OwnerId or ItemId are skipped at debug level.
func (c *Client) parseEvents(body []byte) []NotificationEvent {
	if !gjson.ValidBytes(body) {
		c.logger.Debug("discarding malformed poll response",
			slog.Int("bytes", len(body)),
		)

		return nil
	}

	parsed := gjson.ParseBytes(body)
	if parsed.IsObject() {
		parsed = parsed.Get("Events")
	}

	if !parsed.IsArray() {
		return nil
	}

	var events []NotificationEvent

	parsed.ForEach(func(_, raw gjson.Result) bool {
		owner := raw.Get("OwnerId").String()
		itemID := raw.Get("ItemId").String()

		if owner == "" || itemID == "" {
			c.logger.Debug("skipping notification with missing fields",
				slog.String("raw", raw.String()),
			)

			return true
		}

		createdAt, _ := time.Parse(time.RFC3339, raw.Get("CreatedUtc").String())

		events = append(events, NotificationEvent{
			OwnerID:   owner,
			ItemID:    itemID,
			CreatedAt: createdAt,
		})

		return true
	})

	return events
}

// NegotiatePushConnection asks the store for a push subscription
// descriptor. Returns ErrPushUnsupported when the store answers 404 or
// with an empty descriptor. When the response omits an explicit expiry,
// it is derived from the access token's exp claim.
func (c *Client) NegotiatePushConnection(ctx context.Context, ownerID string) (*PushConnection, error) {
	path := "/owners/" + url.PathEscape(ownerID) + "/push/negotiate"

	resp, err := c.do(ctx, http.MethodPost, path, nil, requestOpts{})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrPushUnsupported
		}

		return nil, err
	}
	defer resp.Body.Close()

	var conn PushConnection
	if err := json.NewDecoder(resp.Body).Decode(&conn); err != nil {
		return nil, fmt.Errorf("api: decoding negotiate response: %w", err)
	}

	if conn.URL == "" {
		return nil, ErrPushUnsupported
	}

	if conn.ExpiresAt.IsZero() {
		conn.ExpiresAt = tokenExpiry(conn.AccessToken)
	}

	return &conn, nil
}

// tokenExpiry extracts the exp claim from an unverified JWT. The token
// is validated by the push endpoint, not by us; only the expiry matters
// for scheduling renewal. Returns zero time when absent or unparseable.
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}

	parser := jwt.NewParser()

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}

	return exp.Time
}
