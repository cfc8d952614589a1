package models

import "fmt"

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

// UpdatedByBot marks rows written by this service so datastore echoes of its own writes can be skipped.
const UpdatedByBot = "telegram-bot"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusRejected  BookingStatus = "rejected"
	StatusBlocked   BookingStatus = "blocked"
)

var validTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusRejected, StatusBlocked},
	StatusConfirmed: {StatusRejected, StatusBlocked},
	StatusRejected:  {StatusConfirmed},
	StatusBlocked:   {StatusPending, StatusConfirmed},
}

func (s BookingStatus) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus treats an empty value as pending; anything outside the enum is an error.
func ParseBookingStatus(s string) (BookingStatus, error) {
	if s == "" {
		return StatusPending, nil
	}
	status := BookingStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}

// EventCategory is derived from the free-form event type.
type EventCategory string

const (
	CategoryFullPackage   EventCategory = "full_package"
	CategoryCustom        EventCategory = "custom"
	CategoryUncategorized EventCategory = "uncategorized"
)

// EventCategories lists the categories in the order the wizard offers them.
var EventCategories = []EventCategory{CategoryFullPackage, CategoryCustom, CategoryUncategorized}

func (c EventCategory) Label() string {
	switch c {
	case CategoryFullPackage:
		return "Full Package"
	case CategoryCustom:
		return "Custom"
	default:
		return "General"
	}
}

func (c EventCategory) Valid() bool {
	switch c {
	case CategoryFullPackage, CategoryCustom, CategoryUncategorized:
		return true
	}
	return false
}

// PendingStatus tracks a queued push message.
type PendingStatus string

const (
	PendingQueued PendingStatus = "pending"
	PendingSent   PendingStatus = "sent"
)
