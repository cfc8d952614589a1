package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received []AssignmentPayload
	bus.Subscribe(EventAssigneeAdded, func(event *Event) error {
		var p AssignmentPayload
		if err := event.Decode(&p); err != nil {
			return err
		}
		received = append(received, p)
		return nil
	})

	err := bus.PublishJSON(EventAssigneeAdded, AssignmentPayload{BookingID: 7, Name: "Asha", Phone: "9876543210"})
	require.NoError(t, err)

	require.Len(t, received, 1)
	assert.Equal(t, int64(7), received[0].BookingID)
	assert.Equal(t, "Asha", received[0].Name)
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe(EventBookingApproved, func(_ *Event) error { count1++; return nil })
	bus.Subscribe(EventBookingApproved, func(_ *Event) error { count2++; return nil })

	require.NoError(t, bus.Publish(&Event{Type: EventBookingApproved}))
	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
}

func TestEventBusHandlerErrors(t *testing.T) {
	bus := NewEventBus()
	boom := errors.New("boom")
	var after bool

	bus.Subscribe(EventBookingRejected, func(_ *Event) error { return boom })
	bus.Subscribe(EventBookingRejected, func(_ *Event) error { after = true; return nil })

	err := bus.PublishJSON(EventBookingRejected, DecisionPayload{BookingID: 1, Status: "rejected"})
	assert.ErrorIs(t, err, boom)
	assert.True(t, after, "later handlers still run")
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NoError(t, bus.Publish(&Event{Type: "unknown"}))
	assert.NoError(t, bus.PublishJSON("unknown", nil))

	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON(EventBookingCreated, nil))
}
