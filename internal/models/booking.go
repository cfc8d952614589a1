package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const DayLayout = "2006-01-02"

var dayPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type Booking struct {
	ID             int64         `db:"id" json:"id"`
	ClientName     string        `db:"client_name" json:"client_name"`
	ClientPhone    string        `db:"client_phone" json:"client_phone"`
	BookingDate    Day           `db:"booking_date" json:"booking_date"`
	BookingEndDate *Day          `db:"booking_end_date" json:"booking_end_date,omitempty"`
	EventType      string        `db:"event_type" json:"event_type"`
	Status         BookingStatus `db:"status" json:"status"`
	AssignedTo     string        `db:"assigned_to" json:"assigned_to"`
	AssignedPhones PhoneList     `db:"assigned_phones" json:"assigned_phones"`
	AdditionalInfo string        `db:"additional_info" json:"additional_info"`
	UpdatedBy      string        `db:"updated_by" json:"updated_by,omitempty"`
	Version        int64         `db:"version" json:"version"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

func (b *Booking) Category() EventCategory {
	return CategorizeEvent(b.EventType)
}

// EndDay is the last day of the booking; single-day bookings end on their start.
func (b *Booking) EndDay() Day {
	if b.BookingEndDate == nil || b.BookingEndDate.IsZero() {
		return b.BookingDate
	}
	return *b.BookingEndDate
}

// DateRange renders "2025-12-20" or "2025-12-20 → 2025-12-22".
func (b *Booking) DateRange() string {
	end := b.EndDay()
	if end.Equal(b.BookingDate.Time) {
		return b.BookingDate.String()
	}
	return fmt.Sprintf("%s → %s", b.BookingDate, end)
}

func (b *Booking) Assignees() AssigneeList {
	return ParseAssignees(b.AssignedTo)
}

func (b *Booking) Validate() error {
	if b.BookingDate.IsZero() {
		return fmt.Errorf("booking_date is required")
	}
	if b.BookingEndDate != nil && !b.BookingEndDate.IsZero() && b.BookingEndDate.Before(b.BookingDate.Time) {
		return fmt.Errorf("booking_end_date %s is before booking_date %s", b.BookingEndDate, b.BookingDate)
	}
	if !b.Status.Valid() {
		return fmt.Errorf("invalid booking status: %s", b.Status)
	}
	return nil
}

// CategorizeEvent maps a free-form event type to a category by keyword.
func CategorizeEvent(eventType string) EventCategory {
	lower := strings.ToLower(eventType)
	switch {
	case strings.Contains(lower, "full") || strings.Contains(lower, "package"):
		return CategoryFullPackage
	case strings.Contains(lower, "custom"):
		return CategoryCustom
	default:
		return CategoryUncategorized
	}
}

// Day is a calendar date without time of day, stored as YYYY-MM-DD.
type Day struct {
	time.Time
}

func NewDay(year int, month time.Month, day int) Day {
	return Day{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates t to its calendar date in t's own location.
func DayOf(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

// ParseDay accepts only the strict YYYY-MM-DD form of a real date.
func ParseDay(s string) (Day, error) {
	s = strings.TrimSpace(s)
	if !dayPattern.MatchString(s) {
		return Day{}, fmt.Errorf("date %q must look like YYYY-MM-DD", s)
	}
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("date %q is not a real date", s)
	}
	return Day{t}, nil
}

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DayLayout)
}

func (d Day) AddDays(n int) Day {
	return Day{d.AddDate(0, 0, n)}
}

func (d Day) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON also accepts full timestamps and keeps their date part.
func (d *Day) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Day{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Day{}
		return nil
	}
	parsed, err := ParseDay(datePrefix(s))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d *Day) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Day{}
		return nil
	case time.Time:
		*d = DayOf(v)
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Day", src)
	}
}

func (d *Day) scanString(s string) error {
	if s == "" {
		*d = Day{}
		return nil
	}
	parsed, err := ParseDay(datePrefix(s))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Day) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

func datePrefix(s string) string {
	if len(s) > len(DayLayout) {
		return s[:len(DayLayout)]
	}
	return s
}

// PhoneList holds raw phone strings, stored as a JSON array.
type PhoneList []string

// Contains matches by normalized key.
func (p PhoneList) Contains(phone string) bool {
	for _, existing := range p {
		if SamePhone(existing, phone) {
			return true
		}
	}
	return false
}

// Add appends phone unless an equivalent number is present.
func (p PhoneList) Add(phone string) (PhoneList, bool) {
	phone = strings.TrimSpace(phone)
	if NormalizePhone(phone) == "" || p.Contains(phone) {
		return p, false
	}
	out := make(PhoneList, len(p), len(p)+1)
	copy(out, p)
	return append(out, phone), true
}

// Missing returns the numbers of p whose key is absent from other.
func (p PhoneList) Missing(other PhoneList) PhoneList {
	var out PhoneList
	for _, phone := range p {
		if !other.Contains(phone) && !out.Contains(phone) {
			out = append(out, phone)
		}
	}
	return out
}

func (p *PhoneList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = PhoneList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into PhoneList", src)
	}
	if len(raw) == 0 {
		*p = PhoneList{}
		return nil
	}
	var out PhoneList
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode assigned_phones: %w", err)
	}
	if out == nil {
		out = PhoneList{}
	}
	*p = out
	return nil
}

func (p PhoneList) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]string(p))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// AssigneeList is the parsed form of the comma-joined assigned_to column.
type AssigneeList []string

func ParseAssignees(s string) AssigneeList {
	var out AssigneeList
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Contains compares whole names case-insensitively, so "Ravi" does not match
// "Ravindra". This replaces substring matching against the comma-joined
// assigned_to text: a name is a duplicate only when it equals an entry.
func (a AssigneeList) Contains(name string) bool {
	name = strings.TrimSpace(name)
	for _, existing := range a {
		if strings.EqualFold(existing, name) {
			return true
		}
	}
	return false
}

func (a AssigneeList) String() string {
	return strings.Join(a, ", ")
}

// GoogleCalendarLink builds an all-day event template link covering the whole booking.
func GoogleCalendarLink(b *Booking) string {
	if b == nil || b.BookingDate.IsZero() {
		return ""
	}
	start := b.BookingDate.Format("20060102")
	end := b.EndDay().AddDays(1).Format("20060102")

	title := fmt.Sprintf("📸 %s: %s", b.Category().Label(), b.ClientName)
	details := []string{"Client: " + b.ClientName}
	if b.ClientPhone != "" {
		details = append(details, "Phone: "+b.ClientPhone)
	}
	if b.EventType != "" {
		details = append(details, "Event: "+b.EventType)
	}
	if b.AssignedTo != "" {
		details = append(details, "Team: "+b.AssignedTo)
	}

	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", title)
	q.Set("dates", start+"/"+end)
	q.Set("details", strings.Join(details, "\n"))
	return "https://calendar.google.com/calendar/render?" + q.Encode()
}

// AssigneeChange is the outcome of adding one person to a booking.
type AssigneeChange struct {
	Booking    *Booking
	Name       string
	Phone      string
	PhoneAdded bool
}
