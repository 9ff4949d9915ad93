package models

import "time"

// DayLayout is the storage and wire format of every calendar day.
const DayLayout = "2006-01-02"

// Source identifies the channel a reservation arrived through.
// It drives display styling only; all sources share one conflict space.
type Source string

const (
	SourceDirect      Source = "direct"
	SourceChannelA    Source = "channel-a"
	SourceChannelB    Source = "channel-b"
	SourceAdminManual Source = "admin-manual"
	SourceBlocked     Source = "blocked"
)

func (s Source) Valid() bool {
	switch s {
	case SourceDirect, SourceChannelA, SourceChannelB, SourceAdminManual, SourceBlocked:
		return true
	}
	return false
}

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Reservation is one stay (or block) on the property calendar.
// EndDate is the checkout day: the guest does not occupy that night.
type Reservation struct {
	ID            string  `json:"id" bson:"id"`
	StartDate     string  `json:"startDate" bson:"startDate"`
	EndDate       string  `json:"endDate" bson:"endDate"`
	Source        Source  `json:"source" bson:"source"`
	Status        Status  `json:"status" bson:"status"`
	GuestLabel    string  `json:"guestLabel,omitempty" bson:"guestLabel,omitempty"`
	Price         float64 `json:"price,omitempty" bson:"price,omitempty"`
	PaymentMethod string  `json:"paymentMethod,omitempty" bson:"paymentMethod,omitempty"`
	CreatedAt     int64   `json:"createdAt" bson:"createdAt"`
}

// Start parses StartDate as a UTC calendar day.
func (r Reservation) Start() (time.Time, error) {
	return time.Parse(DayLayout, r.StartDate)
}

// End parses EndDate as a UTC calendar day.
func (r Reservation) End() (time.Time, error) {
	return time.Parse(DayLayout, r.EndDate)
}

func (r Reservation) Active() bool {
	return r.Status != StatusCancelled
}
