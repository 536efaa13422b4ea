package form

import (
	"fmt"
	"regexp"
	"time"
)

const dateLayout = "02/01/2006"

var datePattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

// FormatDate renders t as DD/MM/YYYY from its own calendar fields.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%02d/%02d/%04d", t.Day(), int(t.Month()), t.Year())
}

// ParseDate accepts exactly DD/MM/YYYY and returns midnight local time.
func ParseDate(s string) (time.Time, error) {
	if !datePattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("date %q: want DD/MM/YYYY", s)
	}
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", s, err)
	}
	return t, nil
}
