package models

import "time"

// Question represents an audience question in a webinar.
type Question struct {
	ID        int64     `json:"id"`
	WebinarID int64     `json:"webinar_id"`
	UserID    int64     `json:"user_id"`
	Content   string    `json:"content"`
	Approved  bool      `json:"approved"`
	Answered  bool      `json:"answered"`
	CreatedAt time.Time `json:"created_at"`
}
