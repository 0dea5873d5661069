package models

import (
	"time"

	"github.com/google/uuid"
)

type Mentorship struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Duration    *string   `json:"duration,omitempty"` // free text, e.g. "3 months" or "6 sessions"
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MentorshipPatch carries the mutable fields of a mentorship. Nil fields are left untouched.
type MentorshipPatch struct {
	Name        *string
	Description *string
	Price       *float64
	Duration    *string
	IsActive    *bool
}

func (p MentorshipPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.Duration == nil && p.IsActive == nil
}

func NewID() string {
	return uuid.NewString()
}

func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
