package database

import (
	"context"
	"testing"

	"candypic/internal/config"
	"candypic/internal/conversation"
	"candypic/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"}, &logger)
	require.NoError(t, err)
	db.Close() // closed handle makes every query fail

	ctx := context.Background()
	day := models.NewDay(2025, 12, 20)

	t.Run("CreateBooking_Error", func(t *testing.T) {
		assert.Error(t, db.CreateBooking(ctx, &models.Booking{BookingDate: day}))
	})

	t.Run("CreateBooking_Invalid", func(t *testing.T) {
		assert.Error(t, db.CreateBooking(ctx, &models.Booking{}))
	})

	t.Run("GetBooking_Error", func(t *testing.T) {
		_, err := db.GetBooking(ctx, 1)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrBookingNotFound)
	})

	t.Run("FindClash_Error", func(t *testing.T) {
		_, err := db.FindClash(ctx, day, 0)
		assert.Error(t, err)
	})

	t.Run("DecideBooking_Error", func(t *testing.T) {
		_, err := db.DecideBooking(ctx, 1, models.StatusConfirmed)
		assert.Error(t, err)
	})

	t.Run("UpdateAssignees_Error", func(t *testing.T) {
		assert.Error(t, db.UpdateAssignees(ctx, 1, "Asha", nil, models.StatusConfirmed, 1))
	})

	t.Run("UpcomingBookings_Error", func(t *testing.T) {
		_, err := db.UpcomingBookings(ctx, day, 10)
		assert.Error(t, err)
	})

	t.Run("Devices_Error", func(t *testing.T) {
		assert.Error(t, db.UpsertDevice(ctx, &models.Device{Phone: "9876543210", PushToken: "tok"}))
		_, err := db.DevicesByPhone(ctx, "9876543210")
		assert.Error(t, err)
	})

	t.Run("Pending_Error", func(t *testing.T) {
		assert.Error(t, db.CreatePendingNotification(ctx, &models.PendingNotification{Phone: "9876543210"}))
		_, err := db.PendingByPhone(ctx, "9876543210")
		assert.Error(t, err)
		_, err = db.ClaimPendingNotification(ctx, 1)
		assert.Error(t, err)
	})

	t.Run("Conversation_Error", func(t *testing.T) {
		repo := NewConversationRepository(db, 0, &logger)
		key := conversation.Key{ChatID: 1, UserID: 2}
		_, err := repo.GetState(ctx, key)
		assert.Error(t, err)
		assert.Error(t, repo.ClearState(ctx, key))
	})
}
