package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"dtr/internal/timefmt"
	"dtr/internal/tracker"
)

var csvHeader = []string{"User ID", "Date", "Time In", "Time Out", "Duration (minutes)", "Duration", "Note"}

// WriteCSV пишет по строке на запись; у открытой записи пустые time out и длительность.
func WriteCSV(w io.Writer, entries []tracker.Entry, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{e.UserID, e.Date, e.TimeIn.In(loc).Format(time.RFC3339), "", "", "", ""}
		if e.TimeOut != nil {
			row[3] = e.TimeOut.In(loc).Format(time.RFC3339)
		}
		if e.Duration != nil {
			row[4] = strconv.Itoa(*e.Duration)
			row[5] = timefmt.FormatMinutes(*e.Duration)
		}
		if e.Note != nil {
			row[6] = *e.Note
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
