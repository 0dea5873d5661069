package models

import "time"

type CashEventType string

const (
	CashEventSessionOpened   CashEventType = "cash.session_opened"
	CashEventSessionClosed   CashEventType = "cash.session_closed"
	CashEventMovementAdded   CashEventType = "cash.movement_added"
	CashEventMovementRemoved CashEventType = "cash.movement_removed"
	CashEventExpensePaid     CashEventType = "expense.paid"
)

// CashEvent is pushed to the owner's realtime connections. UserID selects
// the recipients and is not part of the payload.
type CashEvent struct {
	Type      CashEventType `json:"type"`
	UserID    int64         `json:"-"`
	Payload   any           `json:"payload"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewCashEvent(eventType CashEventType, userID int64, payload any) CashEvent {
	return CashEvent{
		Type:      eventType,
		UserID:    userID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}
