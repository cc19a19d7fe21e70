package model

import "time"

// Message is a free-text check-in as relayed by a text or mail gateway,
// e.g. "T3 hill repeats". From is the challenger name.
type Message struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}
