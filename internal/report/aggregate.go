// Package report собирает сводки по участникам и выгружает их в CSV/PDF.
package report

import (
	"sort"

	"dtr/internal/timefmt"
	"dtr/internal/tracker"
)

type Day struct {
	Date         string          `json:"date"`
	Entries      []tracker.Entry `json:"entries"`
	TotalMinutes int             `json:"total_minutes"`
	Total        string          `json:"total"`
}

type UserGroup struct {
	UserID       string `json:"user_id"`
	Days         []Day  `json:"days"`
	TotalMinutes int    `json:"total_minutes"`
	Total        string `json:"total"`
}

// Meta: шапка отчёта.
type Meta struct {
	OrgName string
	From    string
	To      string
}

// GroupByUser раскладывает записи по участникам и дням.
// Порядок: участники по user_id, дни по дате, записи по time_in.
func GroupByUser(entries []tracker.Entry) []UserGroup {
	byUser := make(map[string]map[string][]tracker.Entry)
	for _, e := range entries {
		days, ok := byUser[e.UserID]
		if !ok {
			days = make(map[string][]tracker.Entry)
			byUser[e.UserID] = days
		}
		days[e.Date] = append(days[e.Date], e)
	}

	users := make([]string, 0, len(byUser))
	for u := range byUser {
		users = append(users, u)
	}
	sort.Strings(users)

	out := make([]UserGroup, 0, len(users))
	for _, u := range users {
		g := UserGroup{UserID: u}
		dates := make([]string, 0, len(byUser[u]))
		for d := range byUser[u] {
			dates = append(dates, d)
		}
		sort.Strings(dates)
		for _, d := range dates {
			rows := byUser[u][d]
			sort.SliceStable(rows, func(i, j int) bool { return rows[i].TimeIn.Before(rows[j].TimeIn) })
			day := Day{Date: d, Entries: rows, TotalMinutes: tracker.TotalMinutes(rows)}
			day.Total = timefmt.FormatMinutes(day.TotalMinutes)
			g.Days = append(g.Days, day)
			g.TotalMinutes += day.TotalMinutes
		}
		g.Total = timefmt.FormatMinutes(g.TotalMinutes)
		out = append(out, g)
	}
	return out
}

// GrandTotal в минутах.
func GrandTotal(groups []UserGroup) int {
	n := 0
	for _, g := range groups {
		n += g.TotalMinutes
	}
	return n
}
