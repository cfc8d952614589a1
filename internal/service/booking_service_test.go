package service

import (
	"context"
	"errors"
	"testing"

	"candypic/internal/database"
	"candypic/internal/events"
	"candypic/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockRepo) FindClash(ctx context.Context, date models.Day, excludeID int64) (*models.Booking, error) {
	args := m.Called(ctx, date, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockRepo) DecideBooking(ctx context.Context, id int64, status models.BookingStatus) (*models.Booking, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockRepo) UpdateAssignees(
	ctx context.Context,
	id int64,
	assignedTo string,
	phones models.PhoneList,
	status models.BookingStatus,
	expectedVersion int64,
) error {
	return m.Called(ctx, id, assignedTo, phones, status, expectedVersion).Error(0)
}

func (m *mockRepo) UpcomingBookings(ctx context.Context, from models.Day, limit int) ([]models.Booking, error) {
	args := m.Called(ctx, from, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

func newBookingService() (*BookingService, *mockRepo, *mockEventBus) {
	repo := new(mockRepo)
	bus := new(mockEventBus)
	logger := zerolog.Nop()
	return NewBookingService(repo, bus, &logger), repo, bus
}

func TestBookingService_FindClash(t *testing.T) {
	svc, repo, _ := newBookingService()
	ctx := context.Background()
	day := models.NewDay(2025, 12, 20)

	existing := &models.Booking{ID: 1, ClientName: "Meera", BookingDate: day, Status: models.StatusConfirmed}
	repo.On("FindClash", ctx, day, int64(2)).Return(existing, nil).Once()

	clash, err := svc.FindClash(ctx, &models.Booking{ID: 2, BookingDate: day})
	require.NoError(t, err)
	assert.Equal(t, "Meera", clash.ClientName)

	clash, err = svc.FindClash(ctx, &models.Booking{ID: 3})
	require.NoError(t, err)
	assert.Nil(t, clash)
	repo.AssertExpectations(t)
}

func TestBookingService_CreateBooking(t *testing.T) {
	svc, repo, bus := newBookingService()
	ctx := context.Background()

	b := &models.Booking{ClientName: "Priya", BookingDate: models.NewDay(2025, 12, 20), EventType: "Custom"}
	repo.On("CreateBooking", ctx, b).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Booking).ID = 10
	}).Return(nil).Once()
	bus.On("PublishJSON", events.EventBookingCreated, mock.Anything).Return(nil).Once()

	require.NoError(t, svc.CreateBooking(ctx, b))
	assert.Equal(t, int64(10), b.ID)
	assert.Equal(t, models.StatusConfirmed, b.Status)
	assert.Equal(t, models.UpdatedByBot, b.UpdatedBy)
	repo.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestBookingService_CreateBookingInvalid(t *testing.T) {
	svc, repo, _ := newBookingService()
	err := svc.CreateBooking(context.Background(), &models.Booking{ClientName: "NoDate"})
	assert.Error(t, err)
	repo.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestBookingService_Decisions(t *testing.T) {
	ctx := context.Background()

	t.Run("Approve", func(t *testing.T) {
		svc, repo, bus := newBookingService()
		decided := &models.Booking{ID: 1, Status: models.StatusConfirmed}
		repo.On("DecideBooking", ctx, int64(1), models.StatusConfirmed).Return(decided, nil).Once()
		bus.On("PublishJSON", events.EventBookingApproved, events.DecisionPayload{BookingID: 1, Status: "confirmed"}).Return(nil).Once()

		b, err := svc.Approve(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, b.Status)
		bus.AssertExpectations(t)
	})

	t.Run("Reject", func(t *testing.T) {
		svc, repo, bus := newBookingService()
		decided := &models.Booking{ID: 2, Status: models.StatusRejected}
		repo.On("DecideBooking", ctx, int64(2), models.StatusRejected).Return(decided, nil).Once()
		bus.On("PublishJSON", events.EventBookingRejected, mock.Anything).Return(nil).Once()

		_, err := svc.Reject(ctx, 2)
		require.NoError(t, err)
		bus.AssertExpectations(t)
	})

	t.Run("AlreadyDecided", func(t *testing.T) {
		svc, repo, bus := newBookingService()
		current := &models.Booking{ID: 3, Status: models.StatusRejected}
		repo.On("DecideBooking", ctx, int64(3), models.StatusConfirmed).Return(current, database.ErrAlreadyDecided).Once()

		b, err := svc.Approve(ctx, 3)
		assert.ErrorIs(t, err, database.ErrAlreadyDecided)
		require.NotNil(t, b)
		assert.Equal(t, models.StatusRejected, b.Status)
		bus.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything)
	})
}

func TestBookingService_AddAssignee(t *testing.T) {
	ctx := context.Background()
	day := models.NewDay(2025, 12, 20)

	t.Run("AddsNameAndPhone", func(t *testing.T) {
		svc, repo, bus := newBookingService()
		b := &models.Booking{ID: 1, ClientName: "Priya", BookingDate: day, Status: models.StatusConfirmed, AssignedTo: "Ravi", Version: 2}
		repo.On("GetBooking", ctx, int64(1)).Return(b, nil).Once()
		repo.On("UpdateAssignees", ctx, int64(1), "Ravi, Asha", models.PhoneList{"+919876543210"}, models.StatusConfirmed, int64(2)).
			Return(nil).Once()
		bus.On("PublishJSON", events.EventAssigneeAdded, events.AssignmentPayload{
			BookingID:  1,
			Name:       "Asha",
			Phone:      "+919876543210",
			ClientName: "Priya",
			Date:       "2025-12-20",
		}).Return(nil).Once()

		change, err := svc.AddAssignee(ctx, 1, " Asha ", "+919876543210")
		require.NoError(t, err)
		assert.True(t, change.PhoneAdded)
		assert.Equal(t, "Ravi, Asha", change.Booking.AssignedTo)
		assert.Equal(t, int64(3), change.Booking.Version)
		repo.AssertExpectations(t)
		bus.AssertExpectations(t)
	})

	t.Run("NameOnlyDoesNotPush", func(t *testing.T) {
		svc, repo, bus := newBookingService()
		b := &models.Booking{ID: 1, BookingDate: day, Status: models.StatusPending, Version: 1}
		repo.On("GetBooking", ctx, int64(1)).Return(b, nil).Once()
		repo.On("UpdateAssignees", ctx, int64(1), "Asha", mock.Anything, models.StatusConfirmed, int64(1)).Return(nil).Once()

		change, err := svc.AddAssignee(ctx, 1, "Asha", "")
		require.NoError(t, err)
		assert.False(t, change.PhoneAdded)
		assert.Equal(t, models.StatusConfirmed, change.Booking.Status)
		bus.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything)
	})

	t.Run("Duplicate", func(t *testing.T) {
		svc, repo, _ := newBookingService()
		b := &models.Booking{ID: 1, BookingDate: day, AssignedTo: "Ravi, Asha", Version: 4}
		repo.On("GetBooking", ctx, int64(1)).Return(b, nil).Once()

		change, err := svc.AddAssignee(ctx, 1, "asha", "9876543210")
		assert.ErrorIs(t, err, database.ErrDuplicateAssignee)
		assert.Equal(t, "Ravi, Asha", change.Booking.AssignedTo)
		repo.AssertNotCalled(t, "UpdateAssignees", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PrefixIsNotDuplicate", func(t *testing.T) {
		svc, repo, _ := newBookingService()
		b := &models.Booking{ID: 1, BookingDate: day, AssignedTo: "Ravindra", Version: 1}
		repo.On("GetBooking", ctx, int64(1)).Return(b, nil).Once()
		repo.On("UpdateAssignees", ctx, int64(1), "Ravindra, Ravi", mock.Anything, models.StatusConfirmed, int64(1)).Return(nil).Once()

		_, err := svc.AddAssignee(ctx, 1, "Ravi", "")
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("LostRace", func(t *testing.T) {
		svc, repo, _ := newBookingService()
		b := &models.Booking{ID: 1, BookingDate: day, Version: 1}
		repo.On("GetBooking", ctx, int64(1)).Return(b, nil).Once()
		repo.On("UpdateAssignees", ctx, int64(1), "Asha", mock.Anything, models.StatusConfirmed, int64(1)).
			Return(database.ErrConcurrentModification).Once()

		_, err := svc.AddAssignee(ctx, 1, "Asha", "")
		assert.ErrorIs(t, err, database.ErrConcurrentModification)
	})

	t.Run("EmptyName", func(t *testing.T) {
		svc, _, _ := newBookingService()
		_, err := svc.AddAssignee(ctx, 1, "  ", "")
		assert.Error(t, err)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc, repo, _ := newBookingService()
		repo.On("GetBooking", ctx, int64(9)).Return(nil, database.ErrBookingNotFound).Once()
		_, err := svc.AddAssignee(ctx, 9, "Asha", "")
		assert.True(t, errors.Is(err, database.ErrBookingNotFound))
	})
}

func TestBookingService_Upcoming(t *testing.T) {
	svc, repo, _ := newBookingService()
	ctx := context.Background()
	from := models.NewDay(2025, 12, 1)

	repo.On("UpcomingBookings", ctx, from, 5).Return([]models.Booking{{ID: 1}, {ID: 2}}, nil).Once()

	list, err := svc.Upcoming(ctx, from, 5)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
