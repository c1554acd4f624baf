package model

import "time"

// Notification names.
const (
	NotifyScoreUpdated      = "score-updated"
	NotifyCheckpointUpdated = "checkpoint-updated"
	NotifyTeamSubmitted     = "team-submitted"
	NotifyDisplayFreeze     = "display:freeze"
	NotifyDisplayUnfreeze   = "display:unfreeze"
	NotifyDisplaySetScene   = "display:set-scene"
	NotifyCeremonyStarted   = "display:ceremony-started"
	NotifyCeremonyReveal    = "display:ceremony-reveal"
)

// EventChannel is the channel carrying judging updates of an event.
func EventChannel(eventID string) string { return "event:" + eventID }

// DisplayChannel is the channel carrying public-display updates of an event.
func DisplayChannel(eventID string) string { return "display:" + eventID }

// Notification is the fan-out envelope delivered to subscribers.
type Notification struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	EventID  string         `json:"eventId"`
	Channels []string       `json:"channels"`
	At       time.Time      `json:"at"`
	Payload  map[string]any `json:"payload"`
}
