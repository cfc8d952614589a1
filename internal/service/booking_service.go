package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"candypic/internal/database"
	"candypic/internal/domain"
	"candypic/internal/events"
	"candypic/internal/metrics"
	"candypic/internal/models"

	"github.com/rs/zerolog"
)

type BookingService struct {
	repo     domain.BookingRepository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewBookingService(repo domain.BookingRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
	}
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

// FindClash returns another confirmed booking starting on the same day, or nil.
// The result is advisory: nothing is blocked on it.
func (s *BookingService) FindClash(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	if booking == nil || booking.BookingDate.IsZero() {
		return nil, nil
	}
	return s.repo.FindClash(ctx, booking.BookingDate, booking.ID)
}

// CreateBooking stores a booking entered through the chat wizard.
func (s *BookingService) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking.Status == "" {
		booking.Status = models.StatusConfirmed
	}
	booking.UpdatedBy = models.UpdatedByBot
	if err := booking.Validate(); err != nil {
		return err
	}

	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		return err
	}
	metrics.IncWizardBooking()

	s.publishEvent(events.EventBookingCreated, events.DecisionPayload{
		BookingID:  booking.ID,
		ClientName: booking.ClientName,
		Status:     booking.Status.String(),
	})
	return nil
}

func (s *BookingService) Approve(ctx context.Context, id int64) (*models.Booking, error) {
	return s.decide(ctx, id, models.StatusConfirmed, events.EventBookingApproved)
}

func (s *BookingService) Reject(ctx context.Context, id int64) (*models.Booking, error) {
	return s.decide(ctx, id, models.StatusRejected, events.EventBookingRejected)
}

// decide returns the stored booking alongside ErrAlreadyDecided so callers can show the real status.
func (s *BookingService) decide(ctx context.Context, id int64, status models.BookingStatus, eventType string) (*models.Booking, error) {
	booking, err := s.repo.DecideBooking(ctx, id, status)
	if err != nil {
		if errors.Is(err, database.ErrAlreadyDecided) && booking != nil {
			s.logger.Info().
				Int64("booking_id", id).
				Str("wanted", status.String()).
				Str("current", booking.Status.String()).
				Msg("Booking already decided")
		}
		return booking, err
	}

	metrics.IncDecision(status.String())
	s.publishEvent(eventType, events.DecisionPayload{
		BookingID:  booking.ID,
		ClientName: booking.ClientName,
		Status:     booking.Status.String(),
	})
	return booking, nil
}

// AddAssignee appends name (and phone, if any) to the booking and marks it confirmed.
// A name already on the booking returns ErrDuplicateAssignee and changes nothing.
func (s *BookingService) AddAssignee(ctx context.Context, id int64, name, phone string) (*models.AssigneeChange, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("assignee name is empty")
	}

	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	change := &models.AssigneeChange{Booking: booking, Name: name, Phone: strings.TrimSpace(phone)}
	assignees := booking.Assignees()
	if assignees.Contains(name) {
		return change, database.ErrDuplicateAssignee
	}
	assignees = append(assignees, name)

	phones := booking.AssignedPhones
	if change.Phone != "" {
		phones, change.PhoneAdded = phones.Add(change.Phone)
	}

	err = s.repo.UpdateAssignees(ctx, id, assignees.String(), phones, models.StatusConfirmed, booking.Version)
	if err != nil {
		return nil, fmt.Errorf("add assignee %q: %w", name, err)
	}

	booking.AssignedTo = assignees.String()
	booking.AssignedPhones = phones
	booking.Status = models.StatusConfirmed
	booking.UpdatedBy = models.UpdatedByBot
	booking.Version++

	if models.NormalizePhone(change.Phone) != "" {
		payload := events.AssignmentPayload{
			BookingID:  booking.ID,
			Name:       name,
			Phone:      change.Phone,
			ClientName: booking.ClientName,
			Date:       booking.BookingDate.String(),
			EventType:  booking.EventType,
		}
		if booking.BookingEndDate != nil {
			payload.EndDate = booking.BookingEndDate.String()
		}
		s.publishEvent(events.EventAssigneeAdded, payload)
	}

	s.logger.Info().
		Int64("booking_id", id).
		Str("assignee", name).
		Bool("phone_added", change.PhoneAdded).
		Msg("Assignee added")
	return change, nil
}

func (s *BookingService) Upcoming(ctx context.Context, from models.Day, limit int) ([]models.Booking, error) {
	return s.repo.UpcomingBookings(ctx, from, limit)
}

func (s *BookingService) publishEvent(eventType string, payload interface{}) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
