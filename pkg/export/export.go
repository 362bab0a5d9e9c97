// Package export writes computed plans in machine-readable formats for the
// rendering and reporting layers.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/capaplan/capaplan/core/model"
)

const dateLayout = "2006-01-02"

// WriteJSON writes the whole plan to w in JSON format.
func WriteJSON(w io.Writer, plan *model.Plan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}

// WritePeriodsCSV writes one row per scheduled item.
func WritePeriodsCSV(w io.Writer, periods []model.Period) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"item_id", "start", "end", "working_days", "calendar_days", "effective_capacity"}); err != nil {
		return err
	}
	for _, p := range periods {
		rec := []string{
			p.ItemID,
			p.Start.Format(dateLayout),
			p.End.Format(dateLayout),
			strconv.Itoa(p.WorkingDays),
			strconv.Itoa(p.CalendarDays),
			strconv.FormatFloat(p.EffectiveCapacity, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteConflictsCSV writes one row per detected conflict.
func WriteConflictsCSV(w io.Writer, conflicts []model.Conflict) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"items", "resources", "start", "end"}); err != nil {
		return err
	}
	for _, c := range conflicts {
		rec := []string{
			strings.Join(c.ItemIDs, ";"),
			strings.Join(c.ResourceIDs, ";"),
			c.Start.Format(dateLayout),
			c.End.Format(dateLayout),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV writes periods followed by a blank line and the conflicts.
func WriteCSV(w io.Writer, plan *model.Plan) error {
	if err := WritePeriodsCSV(w, plan.Periods); err != nil {
		return err
	}
	if len(plan.Conflicts) == 0 {
		return nil
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	return WriteConflictsCSV(w, plan.Conflicts)
}
