// Package export renders the admin dashboard data as an Excel workbook for
// offline reporting.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"parkgrid/internal/models"
)

const timeLayout = "2006-01-02 15:04"

// Report writes dashboard data to an Excel workbook.
type Report struct {
	file       *excelize.File
	firstSheet bool
	currentRow int
	sheet      string
}

// NewReport creates an empty workbook.
func NewReport() *Report {
	return &Report{file: excelize.NewFile(), firstSheet: true}
}

func (r *Report) addSheet(name string) error {
	if len(name) > 31 {
		name = name[:31] // Excel sheet name limit
	}
	if r.firstSheet {
		r.file.SetSheetName("Sheet1", name)
		r.firstSheet = false
	} else {
		if _, err := r.file.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	r.sheet = name
	r.currentRow = 1
	return nil
}

func (r *Report) writeRow(values []interface{}) error {
	for i, val := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, r.currentRow)
		if err != nil {
			return err
		}
		if err := r.file.SetCellValue(r.sheet, cell, val); err != nil {
			return err
		}
	}
	r.currentRow++
	return nil
}

func (r *Report) writeHeader(columns []string) error {
	values := make([]interface{}, len(columns))
	for i, col := range columns {
		values[i] = col
	}
	if err := r.writeRow(values); err != nil {
		return err
	}

	style, err := r.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, r.currentRow-1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), r.currentRow-1)
		_ = r.file.SetCellStyle(r.sheet, startCell, endCell, style)
	}
	return nil
}

// AddBookings writes the bookings sheet, most recent first, with the
// category derived at now.
func (r *Report) AddBookings(bookings []models.Booking, now time.Time) error {
	if err := r.addSheet("Bookings"); err != nil {
		return err
	}
	if err := r.writeHeader([]string{"ID", "User", "Slot", "Start", "End", "Status", "Category", "Created"}); err != nil {
		return err
	}
	for _, b := range bookings {
		row := []interface{}{
			b.ID,
			b.User.Username,
			b.ParkingSlot.SlotNumber,
			b.StartTime.Format(timeLayout),
			b.EndTime.Format(timeLayout),
			string(b.Status.Normalize()),
			string(b.Category(now)),
			b.CreatedAt.Format(timeLayout),
		}
		if err := r.writeRow(row); err != nil {
			return err
		}
	}
	return nil
}

// AddSlots writes the slots sheet in the given (already sorted) order.
func (r *Report) AddSlots(slots []models.Slot) error {
	if err := r.addSheet("Slots"); err != nil {
		return err
	}
	if err := r.writeHeader([]string{"Slot", "Occupied", "Occupied By"}); err != nil {
		return err
	}
	for _, s := range slots {
		occupant := ""
		if s.OccupiedBy != nil {
			occupant = s.OccupiedBy.Username
		}
		if err := r.writeRow([]interface{}{s.SlotNumber, s.IsOccupied, occupant}); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the workbook to w.
func (r *Report) Save(w io.Writer) error {
	return r.file.Write(w)
}

// SaveToFile writes the workbook to disk.
func (r *Report) SaveToFile(path string) error {
	return r.file.SaveAs(path)
}

// Close releases workbook resources.
func (r *Report) Close() error {
	return r.file.Close()
}
