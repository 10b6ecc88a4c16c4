package event

import "time"

const TokenAuthenticatedDestination string = "token_authenticated"

type TokenAuthenticatedMessage struct {
	EventID    string    `json:"event_id"`
	Username   string    `json:"username"`
	Mode       string    `json:"mode"`
	Slot       int64     `json:"slot"`
	OccurredAt time.Time `json:"occurred_at"`
}
