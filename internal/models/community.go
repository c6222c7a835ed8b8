package models

import "time"

// Community is the isolation boundary: one chat server owning its own
// channels and one logical markov model. Created on first contact.
type Community struct {
	ID        string    `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
