package push

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"candypic/internal/config"
	"candypic/internal/database"
	"candypic/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	Token   string
	Message models.PushMessage
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []sent
	fail     map[string]error
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeSender) Send(_ context.Context, token string, msg models.PushMessage) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[token]; err != nil {
		return err
	}
	f.sent = append(f.sent, sent{Token: token, Message: msg})
	return nil
}

func (f *fakeSender) Sent() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"}, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newDispatcher(t *testing.T, sender *fakeSender, maxParallel int) (*Dispatcher, *database.DB) {
	t.Helper()
	db := newTestDB(t)
	logger := zerolog.Nop()
	return NewDispatcher(db, sender, config.PushConfig{Link: "/calendar", MaxParallel: maxParallel}, &logger), db
}

func TestNotifyQueuesWithoutDevices(t *testing.T) {
	sender := &fakeSender{}
	d, db := newDispatcher(t, sender, 4)
	ctx := context.Background()

	report, err := d.Notify(ctx, "+91 98765-43210", models.PushMessage{Title: "t", Body: "b", BookingID: 9})
	require.NoError(t, err)
	assert.True(t, report.Queued)
	assert.Equal(t, "9876543210", report.PhoneKey)
	assert.Empty(t, sender.Sent())

	n, err := db.GetPendingNotification(ctx, report.PendingID)
	require.NoError(t, err)
	assert.Equal(t, models.PendingQueued, n.Status)
	assert.Equal(t, int64(9), n.BookingID)
}

func TestNotifyInvalidPhone(t *testing.T) {
	d, _ := newDispatcher(t, &fakeSender{}, 4)
	_, err := d.Notify(context.Background(), "n/a", models.PushMessage{})
	assert.ErrorIs(t, err, ErrInvalidPhone)
}

func TestNotifyFansOutToEveryDevice(t *testing.T) {
	sender := &fakeSender{fail: map[string]error{"tok-2": errors.New("unregistered")}}
	d, db := newDispatcher(t, sender, 4)
	ctx := context.Background()

	for _, tok := range []string{"tok-1", "tok-2", "tok-3"} {
		require.NoError(t, db.UpsertDevice(ctx, &models.Device{Phone: "9876543210", PushToken: tok}))
	}

	report, err := d.Notify(ctx, "+919876543210", models.PushMessage{Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.False(t, report.Queued)
	require.Len(t, report.Results, 3)
	assert.Equal(t, 2, report.Sent())
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, "tok-2", report.Results[1].Token)
	assert.Error(t, report.Results[1].Err)

	for _, s := range sender.Sent() {
		assert.Equal(t, "/calendar", s.Message.Link)
	}
}

func TestNotifyBoundsParallelism(t *testing.T) {
	sender := &fakeSender{delay: 20 * time.Millisecond}
	d, db := newDispatcher(t, sender, 2)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, db.UpsertDevice(ctx, &models.Device{Phone: "9876543210", PushToken: string(rune('a' + i))}))
	}

	report, err := d.Notify(ctx, "9876543210", models.PushMessage{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, 6, report.Sent())
	assert.LessOrEqual(t, sender.peak.Load(), int32(2))
}

func TestRegisterDeviceFlushesOnce(t *testing.T) {
	sender := &fakeSender{}
	d, db := newDispatcher(t, sender, 4)
	ctx := context.Background()

	queued, err := d.Notify(ctx, "9876543210", models.PushMessage{Title: "📸 New Assignment", Body: "Priya on 2025-12-20", BookingID: 1})
	require.NoError(t, err)
	require.True(t, queued.Queued)

	device := &models.Device{Phone: "+91 98765-43210", PushToken: "install-1"}
	report, err := d.RegisterDevice(ctx, device)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Flushed)
	assert.Equal(t, 1, report.Sent())

	got := sender.Sent()
	require.Len(t, got, 1)
	assert.Equal(t, "install-1", got[0].Token)
	assert.Contains(t, got[0].Message.Body, "Priya")
	assert.Equal(t, "/calendar", got[0].Message.Link)

	n, err := db.GetPendingNotification(ctx, queued.PendingID)
	require.NoError(t, err)
	assert.Equal(t, models.PendingSent, n.Status)
	assert.NotNil(t, n.SentAt)

	again, err := d.RegisterDevice(ctx, &models.Device{Phone: "9876543210", PushToken: "install-1"})
	require.NoError(t, err)
	assert.Zero(t, again.Flushed)
	assert.Len(t, sender.Sent(), 1)
}

func TestRegisterDeviceConcurrentFlush(t *testing.T) {
	sender := &fakeSender{}
	d, _ := newDispatcher(t, sender, 4)
	ctx := context.Background()

	_, err := d.Notify(ctx, "9876543210", models.PushMessage{Title: "t", Body: "b"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.RegisterDevice(ctx, &models.Device{Phone: "9876543210", PushToken: "same-token"})
		}()
	}
	wg.Wait()

	assert.Len(t, sender.Sent(), 1)
}

func TestLogSender(t *testing.T) {
	logger := zerolog.Nop()
	assert.NoError(t, LogSender{Logger: &logger}.Send(context.Background(), "abcdefghij", models.PushMessage{Title: "t"}))
	assert.Equal(t, "efghij", tokenSuffix("abcdefghij"))
	assert.Equal(t, "abc", tokenSuffix("abc"))
}
