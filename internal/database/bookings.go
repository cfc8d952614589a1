package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"candypic/internal/models"
)

const bookingColumns = `id, client_name, client_phone, booking_date, booking_end_date, event_type, status,
	assigned_to, assigned_phones, additional_info, updated_by, version, created_at, updated_at`

// CreateBooking inserts the booking and fills in its id, version and timestamps.
func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	if b.Status == "" {
		b.Status = models.StatusPending
	}
	if err := b.Validate(); err != nil {
		return err
	}
	if b.AssignedPhones == nil {
		b.AssignedPhones = models.PhoneList{}
	}

	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	b.Version = 1

	query := db.Rebind(`
		INSERT INTO bookings (client_name, client_phone, booking_date, booking_end_date, event_type, status,
			assigned_to, assigned_phones, additional_info, updated_by, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err := db.QueryRowxContext(ctx, query,
		b.ClientName, b.ClientPhone, dayArg(b.BookingDate), endDayArg(b.BookingEndDate), b.EventType, b.Status.String(),
		b.AssignedTo, phonesArg(b.AssignedPhones), b.AdditionalInfo, b.UpdatedBy, b.Version, b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var b models.Booking
	query := db.Rebind(`SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`)
	if err := db.GetContext(ctx, &b, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return &b, nil
}

// FindClash returns one other confirmed booking on the same start date, or nil.
func (db *DB) FindClash(ctx context.Context, date models.Day, excludeID int64) (*models.Booking, error) {
	var b models.Booking
	query := db.Rebind(`SELECT ` + bookingColumns + ` FROM bookings
		WHERE booking_date = ? AND status = ? AND id <> ?
		ORDER BY id
		LIMIT 1`)
	if err := db.GetContext(ctx, &b, query, dayArg(date), models.StatusConfirmed.String(), excludeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find clash on %s: %w", date, err)
	}
	return &b, nil
}

// DecideBooking moves a pending booking to status. It only succeeds while the
// booking is still pending; otherwise the current booking is returned with ErrAlreadyDecided.
func (db *DB) DecideBooking(ctx context.Context, id int64, status models.BookingStatus) (*models.Booking, error) {
	if !models.StatusPending.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: pending -> %s", ErrInvalidTransition, status)
	}

	query := db.Rebind(`
		UPDATE bookings
		SET status = ?, updated_by = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = ?`)
	res, err := db.ExecContext(ctx, query, status.String(), models.UpdatedByBot, time.Now(), id, models.StatusPending.String())
	if err != nil {
		return nil, fmt.Errorf("decide booking %d: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	current, err := db.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return current, ErrAlreadyDecided
	}
	return current, nil
}

// UpdateAssignees writes the assignee list if the booking still has expectedVersion.
func (db *DB) UpdateAssignees(
	ctx context.Context,
	id int64,
	assignedTo string,
	phones models.PhoneList,
	status models.BookingStatus,
	expectedVersion int64,
) error {
	query := db.Rebind(`
		UPDATE bookings
		SET assigned_to = ?, assigned_phones = ?, status = ?, updated_by = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`)
	res, err := db.ExecContext(ctx, query, assignedTo, phonesArg(phones), status.String(), models.UpdatedByBot, time.Now(), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("update assignees of booking %d: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := db.GetBooking(ctx, id); err != nil {
			return err
		}
		return ErrConcurrentModification
	}
	return nil
}

// UpcomingBookings lists confirmed bookings still running on or after from.
func (db *DB) UpcomingBookings(ctx context.Context, from models.Day, limit int) ([]models.Booking, error) {
	if limit <= 0 {
		limit = 10
	}
	query := db.Rebind(`SELECT ` + bookingColumns + ` FROM bookings
		WHERE status = ? AND COALESCE(booking_end_date, booking_date) >= ?
		ORDER BY booking_date ASC, id ASC
		LIMIT ?`)

	bookings := []models.Booking{}
	if err := db.SelectContext(ctx, &bookings, query, models.StatusConfirmed.String(), dayArg(from), limit); err != nil {
		return nil, fmt.Errorf("upcoming bookings: %w", err)
	}
	return bookings, nil
}

// Arguments are passed as plain strings so sqlite3 and pgx bind them the same way.

func dayArg(d models.Day) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func endDayArg(d *models.Day) any {
	if d == nil {
		return nil
	}
	return dayArg(*d)
}

func phonesArg(p models.PhoneList) string {
	v, err := p.Value()
	if err != nil {
		return "[]"
	}
	return v.(string)
}
