package models

import "time"

// PushSubscription is the browser PushSubscription JSON as produced by
// pushManager.subscribe().
type PushSubscription struct {
	Endpoint string   `json:"endpoint"`
	Keys     PushKeys `json:"keys"`
}

type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Valid reports whether the endpoint and both keys are present.
func (s PushSubscription) Valid() bool {
	return s.Endpoint != "" && s.Keys.P256dh != "" && s.Keys.Auth != ""
}

// UserSubscription is a row of user_subscriptions.
type UserSubscription struct {
	ID           int              `json:"id"`
	Address      string           `json:"address"`
	Subscription PushSubscription `json:"subscription"`
	ChainIDs     []int            `json:"chainIds"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	LastNotified *time.Time       `json:"lastNotified,omitempty"`
}

// EmailSubscription maps a wallet address to an email recipient.
type EmailSubscription struct {
	ID          int        `json:"id"`
	Address     string     `json:"address"`
	Email       string     `json:"email"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastEmailed *time.Time `json:"lastEmailed,omitempty"`
}

// PushPayload is the JSON document delivered to the service worker.
type PushPayload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}
