package event

import "time"

const TokenLockedDestination string = "token_locked"
const TokenLockedConsumerNotification string = "token_locked_notification"

type TokenLockedMessage struct {
	EventID       string    `json:"event_id"`
	Username      string    `json:"username"`
	InvalidLogins int32     `json:"invalid_logins"`
	Threshold     int32     `json:"threshold"`
	OccurredAt    time.Time `json:"occurred_at"`
}
