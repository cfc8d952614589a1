package models

import "time"

// Device is one installed app instance able to receive pushes.
type Device struct {
	ID         int64     `db:"id" json:"id"`
	Phone      string    `db:"phone" json:"phone"`
	PhoneKey   string    `db:"phone_key" json:"-"`
	PushToken  string    `db:"push_token" json:"push_token"`
	LastActive time.Time `db:"last_active" json:"last_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// PendingNotification is a push held until a device for its phone registers.
type PendingNotification struct {
	ID        int64         `db:"id" json:"id"`
	Phone     string        `db:"phone" json:"phone"`
	PhoneKey  string        `db:"phone_key" json:"-"`
	Title     string        `db:"title" json:"title"`
	Body      string        `db:"body" json:"body"`
	BookingID int64         `db:"booking_id" json:"booking_id"`
	Status    PendingStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	SentAt    *time.Time    `db:"sent_at" json:"sent_at,omitempty"`
}

type PushMessage struct {
	Title     string
	Body      string
	Link      string
	BookingID int64
}

// AssignmentMessage is the push sent to a team member added to a booking.
func AssignmentMessage(b *Booking, link string) PushMessage {
	body := "You have been assigned to " + b.ClientName + " on " + b.DateRange()
	if b.EventType != "" {
		body += " (" + b.EventType + ")"
	}
	return PushMessage{
		Title:     "📸 New Assignment",
		Body:      body,
		Link:      link,
		BookingID: b.ID,
	}
}

// PushJob is one queued assignment push for a phone.
type PushJob struct {
	Phone   string
	Message PushMessage
}

// DeliveryResult is the outcome for one device token.
type DeliveryResult struct {
	Token string
	Err   error
}

// DeliveryReport aggregates one dispatch to a phone.
type DeliveryReport struct {
	Phone     string
	PhoneKey  string
	Queued    bool
	PendingID int64
	Flushed   int
	Results   []DeliveryResult
}

func (r *DeliveryReport) Sent() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

func (r *DeliveryReport) Failed() int {
	return len(r.Results) - r.Sent()
}
