package models

import (
	"encoding/json"
	"time"
)

// EventType tags every message on the persistent channel.
type EventType string

const (
	EventNewBooking       EventType = "new_booking"
	EventBookingCancelled EventType = "booking_cancelled"
	EventNewMessage       EventType = "new_message"
	EventCalendarUpdate   EventType = "calendar_update"
	EventAnalyticsUpdate  EventType = "analytics_update"
	EventPricingUpdate    EventType = "pricing_update"
	EventPromotionUpdate  EventType = "promotion_update"
	EventReviewUpdate     EventType = "review_update"
	EventUsersUpdate      EventType = "users_update"

	// server replies
	EventConnected EventType = "connected"
	EventPong      EventType = "pong"

	// client heartbeat
	EventPing EventType = "ping"
)

// KnownEvents lists the inbound mutation events clients react to.
var KnownEvents = []EventType{
	EventNewBooking,
	EventBookingCancelled,
	EventNewMessage,
	EventCalendarUpdate,
	EventAnalyticsUpdate,
	EventPricingUpdate,
	EventPromotionUpdate,
	EventReviewUpdate,
	EventUsersUpdate,
}

// Message is the envelope used in both directions: {type, data?, timestamp?}.
type Message struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// NewMessage encodes data into an envelope stamped with the current time in ms.
func NewMessage(t EventType, data any) (Message, error) {
	msg := Message{Type: t, Timestamp: time.Now().UnixMilli()}
	if data == nil {
		return msg, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	msg.Data = raw
	return msg, nil
}

// CalendarUpdate is the payload of calendar_update.
type CalendarUpdate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}
