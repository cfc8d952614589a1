package conversation

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var ErrUnknownStep = errors.New("unknown conversation step")

type Flow string

const (
	FlowWizard Flow = "wizard"
	FlowAssign Flow = "assign"
)

type Step string

const (
	StepEventType   Step = "event_type"
	StepAssignee    Step = "assignee"
	StepStartDate   Step = "start_date"
	StepEndDateMode Step = "end_date_mode"
	StepEndDate     Step = "end_date"
	StepClientName  Step = "client_name"
	StepClientPhone Step = "client_phone"
	StepPersist     Step = "persist"

	StepCollecting Step = "collecting"
)

var flowSteps = map[Flow][]Step{
	FlowWizard: {StepEventType, StepAssignee, StepStartDate, StepEndDateMode, StepEndDate, StepClientName, StepClientPhone},
	FlowAssign: {StepCollecting},
}

// Key identifies one operator's conversation in one chat.
type Key struct {
	ChatID int64
	UserID int64
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.ChatID, k.UserID)
}

// State is the persisted step of a flow. PromptMessageID is the bot message
// whose reply (or button press) continues the flow.
type State struct {
	Key             Key
	Flow            Flow
	Step            Step
	Fields          []string
	PromptMessageID int
	UpdatedAt       time.Time
}

func (s *State) Validate() error {
	steps, ok := flowSteps[s.Flow]
	if !ok {
		return fmt.Errorf("flow %q: %w", s.Flow, ErrUnknownStep)
	}
	known := false
	for _, step := range steps {
		if step == s.Step {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("flow %q step %q: %w", s.Flow, s.Step, ErrUnknownStep)
	}
	for i, f := range s.Fields {
		if HasReserved(f) {
			return fmt.Errorf("field %d: %w", i, ErrReservedCharacter)
		}
	}
	return nil
}

// Context is the encoded form of Fields kept by state repositories.
func (s *State) Context() (string, error) {
	return Encode(s.Fields)
}

// Restore rebuilds a state from its stored parts. A missing or corrupted
// context, or an unknown step, yields ok=false: the caller treats it as no state.
func Restore(key Key, flow, step, context string, promptMessageID int, updatedAt time.Time) (*State, bool) {
	fields, ok := Decode(context)
	if !ok {
		return nil, false
	}
	s := &State{
		Key:             key,
		Flow:            Flow(flow),
		Step:            Step(step),
		Fields:          fields,
		PromptMessageID: promptMessageID,
		UpdatedAt:       updatedAt,
	}
	if err := s.Validate(); err != nil {
		return nil, false
	}
	return s, true
}

// Wizard is the typed view of a booking wizard's fields.
type Wizard struct {
	EventType   string
	Assignee    string
	StartDate   string
	EndDate     string
	ClientName  string
	ClientPhone string
}

const wizardFieldCount = 6

func WizardFrom(s *State) Wizard {
	f := make([]string, wizardFieldCount)
	copy(f, s.Fields)
	return Wizard{
		EventType:   f[0],
		Assignee:    f[1],
		StartDate:   f[2],
		EndDate:     f[3],
		ClientName:  f[4],
		ClientPhone: f[5],
	}
}

func (w Wizard) Fields() []string {
	return []string{w.EventType, w.Assignee, w.StartDate, w.EndDate, w.ClientName, w.ClientPhone}
}

// Missing names the required fields that are still empty.
func (w Wizard) Missing() []string {
	var missing []string
	if w.StartDate == "" {
		missing = append(missing, "start date")
	}
	if w.ClientName == "" {
		missing = append(missing, "client name")
	}
	if w.ClientPhone == "" {
		missing = append(missing, "client phone")
	}
	return missing
}

// WizardOptions shape the step sequence.
type WizardOptions struct {
	OfferAssignee bool
	SameEndDate   bool
}

// NextWizardStep returns the step after cur, StepPersist after the last one.
func NextWizardStep(cur Step, opts WizardOptions) Step {
	switch cur {
	case StepEventType:
		if opts.OfferAssignee {
			return StepAssignee
		}
		return StepStartDate
	case StepAssignee:
		return StepStartDate
	case StepStartDate:
		return StepEndDateMode
	case StepEndDateMode:
		if opts.SameEndDate {
			return StepClientName
		}
		return StepEndDate
	case StepEndDate:
		return StepClientName
	case StepClientName:
		return StepClientPhone
	default:
		return StepPersist
	}
}

// Assignment is the typed view of an assignment loop: the booking id, then names added so far.
type Assignment struct {
	BookingID int64
	Added     []string
}

func AssignmentFrom(s *State) (Assignment, error) {
	if s.Flow != FlowAssign || len(s.Fields) == 0 {
		return Assignment{}, fmt.Errorf("not an assignment session")
	}
	id, err := strconv.ParseInt(s.Fields[0], 10, 64)
	if err != nil {
		return Assignment{}, fmt.Errorf("assignment booking id: %w", err)
	}
	return Assignment{BookingID: id, Added: append([]string(nil), s.Fields[1:]...)}, nil
}

func (a Assignment) Fields() []string {
	return append([]string{strconv.FormatInt(a.BookingID, 10)}, a.Added...)
}
