// Package timefmt считает минуты, форматирует "H:MM" и календарные даты YYYY-MM-DD.
package timefmt

import (
	"fmt"
	"math"
	"time"
)

const DateLayout = "2006-01-02"

// DurationMinutes = max(0, round((out-in)/60000)) в миллисекундах, как хранит клиент.
func DurationMinutes(in, out time.Time) int {
	ms := out.Sub(in).Milliseconds()
	m := int(math.Floor(float64(ms)/60000 + 0.5))
	if m < 0 {
		return 0
	}
	return m
}

// FormatMinutes печатает минуты как H:MM (часы не ограничены сутками).
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

// DateOf: календарная дата момента t в зоне loc.
func DateOf(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// PrevDate: дата накануне дня, содержащего t в зоне loc.
func PrevDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).AddDate(0, 0, -1).Format(DateLayout)
}

// ParseDate проверяет строку YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// DaysBetween: число дней в диапазоне [from, to] включительно.
func DaysBetween(from, to string) (int, error) {
	f, err := ParseDate(from)
	if err != nil {
		return 0, err
	}
	t, err := ParseDate(to)
	if err != nil {
		return 0, err
	}
	return int(t.Sub(f).Hours()/24) + 1, nil
}
