package bot

import (
	"context"
	"fmt"

	"candypic/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	exportSheet = "Upcoming"
	exportLimit = 500
)

var exportHeaders = []string{"Start", "End", "Client", "Phone", "Event", "Category", "Team", "Notes"}

func (b *Bot) handleExport(ctx context.Context, chatID int64) {
	today := b.today()
	bookings, err := b.bookingService.Upcoming(ctx, today, exportLimit)
	if err != nil {
		b.log(ctx).Error().Err(err).Msg("Failed to load bookings for export")
		b.send(ctx, chatID, errorMessage(err))
		return
	}

	data, err := exportUpcoming(bookings)
	if err != nil {
		b.log(ctx).Error().Err(err).Msg("Failed to build export")
		b.send(ctx, chatID, errorMessage(err))
		return
	}

	name := fmt.Sprintf("upcoming_%s.xlsx", today)
	caption := fmt.Sprintf("📊 %d upcoming bookings from %s", len(bookings), today)
	if _, err := b.tgService.SendDocument(chatID, name, data, caption); err != nil {
		b.log(ctx).Error().Err(err).Msg("Failed to send export")
	}
}

// exportUpcoming writes one row per booking into an xlsx workbook.
func exportUpcoming(bookings []models.Booking) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0EBF5"}, Pattern: 1},
	})
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeaders))
	_ = f.SetCellStyle(exportSheet, "A1", lastCol+"1", headerStyle)

	for r := range bookings {
		bk := &bookings[r]
		row := []interface{}{
			bk.BookingDate.String(),
			bk.EndDay().String(),
			bk.ClientName,
			bk.ClientPhone,
			bk.EventType,
			bk.Category().Label(),
			bk.Assignees().String(),
			bk.AdditionalInfo,
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("error writing row %d: %w", r+2, err)
		}
	}

	_ = f.SetColWidth(exportSheet, "A", "B", 12)
	_ = f.SetColWidth(exportSheet, "C", lastCol, 20)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("error writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}
