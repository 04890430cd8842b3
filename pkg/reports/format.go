package reports

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}

func formatRating(avg *float64, n int) string {
	if avg == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f (%d)", *avg, n)
}

func eventState(completed *time.Time) string {
	if completed != nil {
		return "done " + completed.Format(dateLayout)
	}
	return "open"
}
