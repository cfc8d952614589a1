package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"candypic/internal/conversation"
	"candypic/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxNameLength = 100

const (
	promptEventType   = "🆕 *New booking*\n\nWhat kind of event is it? Tap a type or reply with your own."
	promptAssignee    = "👤 Who is covering it? Tap a team member or Skip."
	promptStartDate   = "📅 Start date? Reply with YYYY-MM-DD."
	promptEndDateMode = "🗓 Does it end on the same day?"
	promptEndDate     = "📅 End date? Reply with YYYY-MM-DD."
	promptClientName  = "🙋 Client name?"
	promptClientPhone = "📞 Client phone number?"

	msgInvalidDate = "⚠️ Invalid date. Use YYYY-MM-DD, for example 2025-12-20."
)

func (b *Bot) offerAssignee() bool {
	return len(b.config.Team) > 0
}

func (b *Bot) startWizard(ctx context.Context, msg *tgbotapi.Message) {
	key := conversation.Key{ChatID: msg.Chat.ID, UserID: msg.From.ID}
	if old, err := b.stateService.GetState(ctx, key); err == nil && old != nil {
		b.clearKeyboard(ctx, key.ChatID, old.PromptMessageID)
	}

	wiz := conversation.Wizard{}
	prompt, err := b.promptWizardStep(key.ChatID, msg.MessageID, conversation.StepEventType)
	if err != nil {
		b.log(ctx).Error().Err(err).Msg("Failed to start wizard")
		return
	}

	b.saveState(ctx, &conversation.State{
		Key:             key,
		Flow:            conversation.FlowWizard,
		Step:            conversation.StepEventType,
		Fields:          wiz.Fields(),
		PromptMessageID: prompt.MessageID,
	})
}

func (b *Bot) promptWizardStep(chatID int64, replyTo int, step conversation.Step) (tgbotapi.Message, error) {
	switch step {
	case conversation.StepEventType:
		var rows [][]tgbotapi.InlineKeyboardButton
		for _, c := range models.EventCategories {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(c.Label(), cbWizardType+string(c)),
			))
		}
		return b.tgService.SendWithInlineKeyboard(chatID, promptEventType, tgbotapi.NewInlineKeyboardMarkup(rows...))
	case conversation.StepAssignee:
		var rows [][]tgbotapi.InlineKeyboardButton
		for i, m := range b.config.Team {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(m.Name, cbWizardTeam+strconv.Itoa(i)),
			))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Skip", cbWizardSkip)))
		return b.tgService.SendWithInlineKeyboard(chatID, promptAssignee, tgbotapi.NewInlineKeyboardMarkup(rows...))
	case conversation.StepStartDate:
		return b.tgService.SendForceReply(chatID, replyTo, promptStartDate, "2025-12-20")
	case conversation.StepEndDateMode:
		return b.tgService.SendWithInlineKeyboard(chatID, promptEndDateMode, tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Same day", cbEndSame),
				tgbotapi.NewInlineKeyboardButtonData("Different end date", cbEndDiff),
			),
		))
	case conversation.StepEndDate:
		return b.tgService.SendForceReply(chatID, replyTo, promptEndDate, "2025-12-21")
	case conversation.StepClientName:
		return b.tgService.SendForceReply(chatID, replyTo, promptClientName, "Full name")
	case conversation.StepClientPhone:
		return b.tgService.SendForceReply(chatID, replyTo, promptClientPhone, "+91 98765 43210")
	}
	return tgbotapi.Message{}, fmt.Errorf("step %q: %w", step, conversation.ErrUnknownStep)
}

func stepHasButtons(step conversation.Step) bool {
	switch step {
	case conversation.StepEventType, conversation.StepAssignee, conversation.StepEndDateMode:
		return true
	}
	return false
}

func (b *Bot) handleWizardMessage(ctx context.Context, msg *tgbotapi.Message, state *conversation.State) {
	wiz := conversation.WizardFrom(state)
	text := strings.TrimSpace(msg.Text)
	chatID := msg.Chat.ID
	opts := conversation.WizardOptions{OfferAssignee: b.offerAssignee()}

	switch state.Step {
	case conversation.StepEventType:
		if problem := validateName(text); problem != "" {
			b.send(ctx, chatID, problem)
			return
		}
		wiz.EventType = text
	case conversation.StepAssignee:
		if !strings.EqualFold(text, "skip") {
			member, ok := b.config.TeamMemberByName(text)
			if !ok {
				b.send(ctx, chatID, "⚠️ Unknown team member. Tap a name or Skip.")
				return
			}
			wiz.Assignee = member.Name
		}
	case conversation.StepStartDate:
		day, err := models.ParseDay(text)
		if err != nil {
			b.repromptWizard(ctx, state, chatID, msg.MessageID, msgInvalidDate)
			return
		}
		wiz.StartDate = day.String()
	case conversation.StepEndDateMode:
		b.repromptWizard(ctx, state, chatID, msg.MessageID, "Please tap one of the buttons.")
		return
	case conversation.StepEndDate:
		day, err := models.ParseDay(text)
		if err != nil {
			b.repromptWizard(ctx, state, chatID, msg.MessageID, msgInvalidDate)
			return
		}
		if start, err := models.ParseDay(wiz.StartDate); err == nil && day.Before(start.Time) {
			b.repromptWizard(ctx, state, chatID, msg.MessageID,
				fmt.Sprintf("⚠️ End date can't be before the start date (%s).", start))
			return
		}
		wiz.EndDate = day.String()
	case conversation.StepClientName:
		if problem := validateName(text); problem != "" {
			b.repromptWizard(ctx, state, chatID, msg.MessageID, problem)
			return
		}
		wiz.ClientName = text
	case conversation.StepClientPhone:
		phone := text
		if msg.Contact != nil {
			phone = strings.TrimSpace(msg.Contact.PhoneNumber)
		}
		if !models.IsDialable(phone) || conversation.HasReserved(phone) {
			b.repromptWizard(ctx, state, chatID, msg.MessageID, "⚠️ A phone number needs at least 10 digits.")
			return
		}
		wiz.ClientPhone = phone
	default:
		return
	}

	b.advanceWizard(ctx, state, wiz, opts, chatID, msg.MessageID)
}

func (b *Bot) handleWizardCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	state := b.callbackState(ctx, cb, conversation.FlowWizard)
	if state == nil {
		b.answer(ctx, cb.ID, "This prompt is no longer active.")
		return
	}
	defer b.answer(ctx, cb.ID, "")

	wiz := conversation.WizardFrom(state)
	chatID := cb.Message.Chat.ID
	opts := conversation.WizardOptions{OfferAssignee: b.offerAssignee()}
	data := cb.Data

	switch {
	case state.Step == conversation.StepEventType && strings.HasPrefix(data, cbWizardType):
		category := models.EventCategory(strings.TrimPrefix(data, cbWizardType))
		if !category.Valid() {
			return
		}
		wiz.EventType = category.Label()
	case state.Step == conversation.StepAssignee && data == cbWizardSkip:
	case state.Step == conversation.StepAssignee && strings.HasPrefix(data, cbWizardTeam):
		idx, err := strconv.Atoi(strings.TrimPrefix(data, cbWizardTeam))
		if err != nil || idx < 0 || idx >= len(b.config.Team) {
			return
		}
		wiz.Assignee = b.config.Team[idx].Name
	case state.Step == conversation.StepEndDateMode && data == cbEndSame:
		wiz.EndDate = wiz.StartDate
		opts.SameEndDate = true
	case state.Step == conversation.StepEndDateMode && data == cbEndDiff:
	default:
		return
	}

	b.advanceWizard(ctx, state, wiz, opts, chatID, 0)
}

// advanceWizard moves to the step after state.Step, or persists after the last one.
func (b *Bot) advanceWizard(
	ctx context.Context,
	state *conversation.State,
	wiz conversation.Wizard,
	opts conversation.WizardOptions,
	chatID int64,
	replyTo int,
) {
	next := conversation.NextWizardStep(state.Step, opts)
	if next == conversation.StepPersist {
		b.persistWizard(ctx, state, wiz, chatID)
		return
	}

	if stepHasButtons(state.Step) {
		b.clearKeyboard(ctx, chatID, state.PromptMessageID)
	}
	prompt, err := b.promptWizardStep(chatID, replyTo, next)
	if err != nil {
		b.log(ctx).Error().Err(err).Str("step", string(next)).Msg("Failed to send wizard prompt")
		return
	}

	state.Step = next
	state.Fields = wiz.Fields()
	state.PromptMessageID = prompt.MessageID
	b.saveState(ctx, state)
}

// repromptWizard explains the problem and asks the same question again without advancing.
func (b *Bot) repromptWizard(ctx context.Context, state *conversation.State, chatID int64, replyTo int, problem string) {
	b.send(ctx, chatID, problem)

	if stepHasButtons(state.Step) {
		b.clearKeyboard(ctx, chatID, state.PromptMessageID)
	}
	prompt, err := b.promptWizardStep(chatID, replyTo, state.Step)
	if err != nil {
		b.log(ctx).Error().Err(err).Str("step", string(state.Step)).Msg("Failed to re-send wizard prompt")
		return
	}
	state.PromptMessageID = prompt.MessageID
	b.saveState(ctx, state)
}

func (b *Bot) persistWizard(ctx context.Context, state *conversation.State, wiz conversation.Wizard, chatID int64) {
	if missing := wiz.Missing(); len(missing) > 0 {
		b.abortWizard(ctx, state, chatID, "Missing "+strings.Join(missing, ", ")+".")
		return
	}

	booking, err := b.wizardBooking(wiz)
	if err != nil {
		b.abortWizard(ctx, state, chatID, err.Error()+".")
		return
	}

	if err := b.bookingService.CreateBooking(ctx, booking); err != nil {
		// the state stays on this step so the operator can answer again to retry
		b.log(ctx).Error().Err(err).Msg("Failed to save wizard booking")
		b.send(ctx, chatID, errorMessage(err))
		return
	}

	if err := b.stateService.ClearState(ctx, state.Key); err != nil {
		b.log(ctx).Warn().Err(err).Msg("Failed to clear wizard state")
	}

	text := bookingSummary(booking)
	if clash, err := b.bookingService.FindClash(ctx, booking); err == nil && clash != nil {
		text = clashWarning(clash) + "\n" + text
	}
	b.sendMarkdown(ctx, chatID, text)

	b.log(ctx).Info().Int64("booking_id", booking.ID).Str("client", booking.ClientName).Msg("Wizard booking saved")
	b.queueAssignmentPushes(ctx, booking, booking.AssignedPhones)
}

func (b *Bot) abortWizard(ctx context.Context, state *conversation.State, chatID int64, reason string) {
	if err := b.stateService.ClearState(ctx, state.Key); err != nil {
		b.log(ctx).Warn().Err(err).Msg("Failed to clear wizard state")
	}
	b.send(ctx, chatID, "❌ "+reason+" Please start again with /newbooking.")
}

func (b *Bot) wizardBooking(wiz conversation.Wizard) (*models.Booking, error) {
	start, err := models.ParseDay(wiz.StartDate)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ClientName:     wiz.ClientName,
		ClientPhone:    wiz.ClientPhone,
		BookingDate:    start,
		EventType:      wiz.EventType,
		Status:         models.StatusConfirmed,
		AssignedTo:     wiz.Assignee,
		AssignedPhones: models.PhoneList{},
	}
	if wiz.EndDate != "" {
		end, err := models.ParseDay(wiz.EndDate)
		if err != nil {
			return nil, err
		}
		if end.Before(start.Time) {
			return nil, fmt.Errorf("end date %s is before start date %s", end, start)
		}
		booking.BookingEndDate = &end
	}
	if member, ok := b.config.TeamMemberByName(wiz.Assignee); ok && member.Phone != "" {
		booking.AssignedPhones, _ = booking.AssignedPhones.Add(member.Phone)
	}
	return booking, nil
}

func (b *Bot) saveState(ctx context.Context, state *conversation.State) bool {
	if err := b.stateService.SaveState(ctx, state); err != nil {
		b.send(ctx, state.Key.ChatID, errorMessage(err))
		return false
	}
	return true
}

// validateName returns a user-facing problem, or "" when text is acceptable.
func validateName(text string) string {
	switch {
	case text == "":
		return "⚠️ Please reply with some text."
	case utf8.RuneCountInString(text) > maxNameLength:
		return fmt.Sprintf("⚠️ That's too long (max %d characters).", maxNameLength)
	case conversation.HasReserved(text):
		return "⚠️ That contains characters that can't be stored."
	}
	return ""
}
