package database

import (
	"context"
	"fmt"
	"time"

	"candypic/internal/models"
)

func (db *DB) CreatePendingNotification(ctx context.Context, n *models.PendingNotification) error {
	n.PhoneKey = models.NormalizePhone(n.Phone)
	if n.PhoneKey == "" {
		return fmt.Errorf("pending notification phone %q has no digits", n.Phone)
	}
	n.Status = models.PendingQueued
	n.CreatedAt = time.Now()

	query := db.Rebind(`
		INSERT INTO pending_notifications (phone, phone_key, title, body, booking_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	if err := db.QueryRowxContext(ctx, query,
		n.Phone, n.PhoneKey, n.Title, n.Body, n.BookingID, string(n.Status), n.CreatedAt,
	).Scan(&n.ID); err != nil {
		return fmt.Errorf("insert pending notification: %w", err)
	}
	return nil
}

func (db *DB) PendingByPhone(ctx context.Context, phoneKey string) ([]models.PendingNotification, error) {
	pending := []models.PendingNotification{}
	query := db.Rebind(`SELECT id, phone, phone_key, title, body, booking_id, status, created_at, sent_at
		FROM pending_notifications
		WHERE phone_key = ? AND status = ?
		ORDER BY id`)
	if err := db.SelectContext(ctx, &pending, query, phoneKey, string(models.PendingQueued)); err != nil {
		return nil, fmt.Errorf("pending notifications for %s: %w", phoneKey, err)
	}
	return pending, nil
}

func (db *DB) GetPendingNotification(ctx context.Context, id int64) (*models.PendingNotification, error) {
	var n models.PendingNotification
	query := db.Rebind(`SELECT id, phone, phone_key, title, body, booking_id, status, created_at, sent_at
		FROM pending_notifications WHERE id = ?`)
	if err := db.GetContext(ctx, &n, query, id); err != nil {
		return nil, fmt.Errorf("get pending notification %d: %w", id, err)
	}
	return &n, nil
}

// ClaimPendingNotification flips pending to sent. Only one caller can win a given row.
func (db *DB) ClaimPendingNotification(ctx context.Context, id int64) (bool, error) {
	query := db.Rebind(`UPDATE pending_notifications SET status = ?, sent_at = ? WHERE id = ? AND status = ?`)
	res, err := db.ExecContext(ctx, query, string(models.PendingSent), time.Now(), id, string(models.PendingQueued))
	if err != nil {
		return false, fmt.Errorf("claim pending notification %d: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
