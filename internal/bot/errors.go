package bot

import (
	"errors"

	"candypic/internal/database"
)

// errorMessage maps known failures to operator text. Anything else is shown
// raw so the operator sees what the datastore said.
func errorMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, database.ErrBookingNotFound):
		return "⚠️ Booking not found. It may have been deleted."
	case errors.Is(err, database.ErrAlreadyDecided):
		return "⚠️ This booking was already decided."
	case errors.Is(err, database.ErrConcurrentModification):
		return "⚠️ Booking changed while you were editing. Please try again."
	case errors.Is(err, database.ErrDuplicateAssignee):
		return "⚠️ Already assigned."
	case errors.Is(err, database.ErrInvalidTransition):
		return "⚠️ That status change is not allowed."
	}

	return "❌ " + err.Error()
}
