package api

import "time"

// ItemSummary describes one uploaded item as returned by the remote
// store. Listings come back most-recent-first. Content is only present
// on Download responses that inline small payloads.
type ItemSummary struct {
	ID          string    `json:"Id"`
	Kind        string    `json:"Kind"`
	ContentType string    `json:"ContentType"`
	Length      int64     `json:"Length"`
	FileName    string    `json:"FileName,omitempty"`
	Device      string    `json:"Device,omitempty"`
	CreatedAt   time.Time `json:"CreatedUtc"`
	ExpiresAt   time.Time `json:"ExpiresUtc,omitzero"`
	Content     []byte    `json:"Content,omitempty"`
}

// OwnerState is the remote pause/resume flag for an owner.
type OwnerState struct {
	OwnerID   string    `json:"OwnerId"`
	IsPaused  bool      `json:"IsPaused"`
	UpdatedAt time.Time `json:"UpdatedUtc"`
}

// NotificationEvent announces that an item changed for an owner. Events
// are transient: at-least-once delivery, deduplicated client-side.
type NotificationEvent struct {
	OwnerID   string    `json:"OwnerId"`
	ItemID    string    `json:"ItemId"`
	CreatedAt time.Time `json:"CreatedUtc"`
}

// PushConnection is the negotiated descriptor for a push subscription.
// The subscription must be renewed before ExpiresAt.
type PushConnection struct {
	URL         string    `json:"Url"`
	AccessToken string    `json:"AccessToken,omitempty"`
	ExpiresAt   time.Time `json:"ExpiresUtc,omitzero"`
}
