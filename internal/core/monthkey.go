package core

import "time"

const monthKeyLayout = "2006-01"

// MonthKey buckets a date into its "YYYY-MM" calendar month.
func MonthKey(t time.Time) string {
	return t.Format(monthKeyLayout)
}

// ValidMonthKey reports whether s is a well-formed "YYYY-MM" key.
func ValidMonthKey(s string) bool {
	if len(s) != len(monthKeyLayout) {
		return false
	}
	_, err := time.Parse(monthKeyLayout, s)
	return err == nil
}
