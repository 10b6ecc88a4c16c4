package event

import "time"

const TokenReplayDetectedDestination string = "token_replay_detected"
const TokenReplayDetectedConsumerNotification string = "token_replay_detected_notification"

// TokenReplayDetectedMessage never carries the replayed code.
type TokenReplayDetectedMessage struct {
	EventID    string    `json:"event_id"`
	Username   string    `json:"username"`
	Mode       string    `json:"mode"`
	ClientIP   string    `json:"client_ip,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
