package bot

import (
	"fmt"
	"strings"

	"candypic/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const separatorLine = "──────────────"

func esc(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return esc(s)
}

func assigneesText(b *models.Booking) string {
	if a := b.Assignees(); len(a) > 0 {
		return esc(a.String())
	}
	return "Unassigned"
}

// clashWarning names the booking already holding the date.
func clashWarning(clash *models.Booking) string {
	var sb strings.Builder
	sb.WriteString("⚠️ *WARNING: DATE CLASH DETECTED!*\n")
	fmt.Fprintf(&sb, "Already booked on %s for *%s*", clash.BookingDate, esc(clash.ClientName))
	fmt.Fprintf(&sb, " (team: %s)\n", assigneesText(clash))
	sb.WriteString(separatorLine + "\n")
	return sb.String()
}

// bookingCard renders the enquiry card posted to the operators' chat.
func bookingCard(b *models.Booking, clash *models.Booking) string {
	var sb strings.Builder
	sb.WriteString("📸 *New Booking Enquiry!*\n\n")
	if clash != nil {
		sb.WriteString(clashWarning(clash))
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "👤 *Client:* %s\n", orDash(b.ClientName))
	fmt.Fprintf(&sb, "📞 *Phone:* %s\n", orDash(b.ClientPhone))
	fmt.Fprintf(&sb, "📅 *Date:* %s\n", b.DateRange())
	fmt.Fprintf(&sb, "🎉 *Event:* %s (%s)\n", orDash(b.EventType), b.Category().Label())
	if strings.TrimSpace(b.AdditionalInfo) != "" {
		fmt.Fprintf(&sb, "📝 *Notes:* %s\n", esc(b.AdditionalInfo))
	}
	if b.AssignedTo != "" {
		fmt.Fprintf(&sb, "👥 *Team:* %s\n", assigneesText(b))
	}
	sb.WriteString(separatorLine + "\n")
	fmt.Fprintf(&sb, "📌 *Status:* %s", statusLabel(b.Status))
	return sb.String()
}

func statusLabel(s models.BookingStatus) string {
	switch s {
	case models.StatusPending:
		return "⏳ Pending"
	case models.StatusConfirmed:
		return "✅ Confirmed"
	case models.StatusRejected:
		return "❌ Rejected"
	case models.StatusBlocked:
		return "🚫 Blocked"
	default:
		return string(s)
	}
}

func decisionKeyboard(id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", fmt.Sprintf("%s%d", cbApprove, id)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", fmt.Sprintf("%s%d", cbReject, id)),
		),
	)
}

func bookingSummary(b *models.Booking) string {
	var sb strings.Builder
	sb.WriteString("✅ *Booking saved*\n\n")
	fmt.Fprintf(&sb, "👤 *Client:* %s\n", esc(b.ClientName))
	fmt.Fprintf(&sb, "📞 *Phone:* %s\n", esc(b.ClientPhone))
	fmt.Fprintf(&sb, "📅 *Date:* %s\n", b.DateRange())
	fmt.Fprintf(&sb, "🎉 *Event:* %s\n", orDash(b.EventType))
	fmt.Fprintf(&sb, "👥 *Team:* %s\n", assigneesText(b))
	if link := models.GoogleCalendarLink(b); link != "" {
		fmt.Fprintf(&sb, "\n[Add to Google Calendar](%s)", link)
	}
	return sb.String()
}

// upcomingList renders one entry per booking: date range, client, event label and team.
func upcomingList(bookings []models.Booking) string {
	if len(bookings) == 0 {
		return "📭 No upcoming confirmed bookings."
	}

	var sb strings.Builder
	sb.WriteString("📅 *Upcoming bookings*\n")
	for i := range bookings {
		b := &bookings[i]
		fmt.Fprintf(&sb, "\n%d. *%s* · %s\n", i+1, b.DateRange(), orDash(b.ClientName))
		fmt.Fprintf(&sb, "    %s · 👥 %s\n", b.Category().Label(), assigneesText(b))
	}
	return sb.String()
}

const helpText = `📸 *Booking assistant*

/newbooking - enter a booking step by step
/upcoming - list upcoming confirmed bookings
/export - upcoming bookings as a spreadsheet
/cancel - stop the current wizard or assignment

New enquiries are posted here with Approve and Reject buttons. After approving, reply to the assignment prompt with a contact or a name to add team members.`
