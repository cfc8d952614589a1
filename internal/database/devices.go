package database

import (
	"context"
	"fmt"
	"time"

	"candypic/internal/models"
)

// UpsertDevice registers a device, keyed by push token. Re-registering refreshes phone and last_active.
func (db *DB) UpsertDevice(ctx context.Context, d *models.Device) error {
	if d.PushToken == "" {
		return fmt.Errorf("push_token is required")
	}
	d.PhoneKey = models.NormalizePhone(d.Phone)
	if d.PhoneKey == "" {
		return fmt.Errorf("device phone %q has no digits", d.Phone)
	}

	now := time.Now()
	if d.LastActive.IsZero() {
		d.LastActive = now
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}

	query := db.Rebind(`
		INSERT INTO devices (phone, phone_key, push_token, last_active, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (push_token) DO UPDATE
		SET phone = excluded.phone, phone_key = excluded.phone_key, last_active = excluded.last_active
		RETURNING id`)

	if err := db.QueryRowxContext(ctx, query, d.Phone, d.PhoneKey, d.PushToken, d.LastActive, d.CreatedAt).Scan(&d.ID); err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

func (db *DB) DevicesByPhone(ctx context.Context, phoneKey string) ([]models.Device, error) {
	devices := []models.Device{}
	query := db.Rebind(`SELECT id, phone, phone_key, push_token, last_active, created_at
		FROM devices WHERE phone_key = ? ORDER BY id`)
	if err := db.SelectContext(ctx, &devices, query, phoneKey); err != nil {
		return nil, fmt.Errorf("devices for %s: %w", phoneKey, err)
	}
	return devices, nil
}
