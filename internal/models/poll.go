package models

import "time"

// Poll represents a multiple-choice poll in a webinar.
type Poll struct {
	ID        int64     `json:"id"`
	WebinarID int64     `json:"webinar_id"`
	Question  string    `json:"question"`
	OptionA   string    `json:"option_a"`
	OptionB   string    `json:"option_b"`
	OptionC   string    `json:"option_c,omitempty"`
	OptionD   string    `json:"option_d,omitempty"`
	Launched  bool      `json:"launched"`
	Closed    bool      `json:"closed"`
	CreatedAt time.Time `json:"created_at"`
}

// PollTally is the answer count per option.
type PollTally struct {
	A int `json:"A"`
	B int `json:"B"`
	C int `json:"C"`
	D int `json:"D"`
}
