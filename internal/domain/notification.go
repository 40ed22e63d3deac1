package domain

import "time"

// NotificationEntry is one row of the append-only notification audit log.
type NotificationEntry struct {
	ID         string    `json:"id"`
	Assignment string    `json:"assignment"`
	Course     string    `json:"course"`
	Channel    string    `json:"channel"`
	SentTime   time.Time `json:"sentTime"`
}

// Settings is the mutable runtime configuration record. It holds the
// notification recipient, editable through the HTTP API between runs.
type Settings struct {
	ReceiverEmail string `json:"receiverEmail"`
}
