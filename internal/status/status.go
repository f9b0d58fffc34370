// Package status derives the user-facing risk label of a process from its
// stored status and due date. All functions take "now" explicitly.
package status

import (
	"fmt"
	"strings"
	"time"
)

// Visual is the closed set of user-facing process states.
type Visual string

const (
	InProgress Visual = "em_andamento"
	Done       Visual = "concluido"
	Overdue    Visual = "atrasado"
	DueSoon    Visual = "vence_em_breve"
)

// DueSoonWindowDays is the last day offset, inclusive, labelled as due soon.
const DueSoonWindowDays = 15

const (
	labelInProgress = "Em andamento"
	labelDone       = "Concluído"
	labelCanceled   = "Cancelado"
	labelOverdue    = "Atrasado"
)

// Result is a derived visual status and its label.
type Result struct {
	Visual Visual `json:"visual_status"`
	Label  string `json:"status_label"`
}

// Derive maps a stored status and optional due date to a Result relative to
// now. Canceled processes share the Done visual but keep their own label.
func Derive(stored string, due *time.Time, now time.Time) Result {
	switch strings.ToLower(strings.TrimSpace(stored)) {
	case "concluído", "concluido":
		return Result{Visual: Done, Label: labelDone}
	case "cancelado":
		return Result{Visual: Done, Label: labelCanceled}
	}
	if due == nil {
		return Result{Visual: InProgress, Label: labelInProgress}
	}

	diff := DaysUntil(*due, now)
	switch {
	case diff < 0:
		return Result{Visual: Overdue, Label: labelOverdue}
	case diff <= DueSoonWindowDays:
		return Result{Visual: DueSoon, Label: dueSoonLabel(diff)}
	default:
		return Result{Visual: InProgress, Label: labelInProgress}
	}
}

// DeriveString is Derive for a due date still in its stored text form.
func DeriveString(stored, due string, now time.Time) Result {
	return Derive(stored, ParseDueDate(due), now)
}

// DaysUntil counts calendar days from now to due. Due dates are stored at UTC
// midnight, so their calendar date is read in UTC whatever location the
// database driver returned them in. now is taken at midnight in its own
// location. Time of day on either side is ignored.
func DaysUntil(due, now time.Time) int {
	due = due.UTC()
	// Comparing UTC midnights of the calendar dates keeps DST days at 24h.
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(dueDay.Sub(today).Hours() / 24)
}

// ParseDueDate reads a YYYY-MM-DD date or an RFC 3339 timestamp and returns
// its calendar date at UTC midnight. A timestamp keeps the date of its own
// offset. Empty or unparsable input means no due date.
func ParseDueDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return nil
		}
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &day
}

func dueSoonLabel(days int) string {
	unit := "dia"
	if days > 1 {
		unit = "dias"
	}
	return fmt.Sprintf("Vence em %d %s", days, unit)
}
