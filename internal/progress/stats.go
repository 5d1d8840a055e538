package progress

import (
	"time"

	"example.com/smartroutine/internal/domain"
)

// DailyTotal is the validated minutes logged on one calendar day.
type DailyTotal struct {
	Date    time.Time
	Label   string
	Minutes int
}

// WeeklyStatistics summarises the trailing seven calendar days.
type WeeklyStatistics struct {
	Days             []DailyTotal
	MinutesByType    map[domain.ActivityType]int
	TotalMinutes     int
	BestDay          DailyTotal
	MostFrequentType string
}

// NotAvailable is reported when no activity type has any minutes.
const NotAvailable = "N/A"

// WeekStart returns midnight six days before now, the lower bound of the
// weekly statistics window.
func WeekStart(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d-6, 0, 0, 0, 0, now.Location())
}

// Summarize aggregates validated activities created between WeekStart(now)
// and the end of now's day. Days are ordered oldest first.
func Summarize(activities []domain.Activity, now time.Time) WeeklyStatistics {
	start := WeekStart(now)
	stats := WeeklyStatistics{
		Days:          make([]DailyTotal, 7),
		MinutesByType: make(map[domain.ActivityType]int, len(domain.ActivityTypes)),
	}
	for i := range stats.Days {
		day := start.AddDate(0, 0, i)
		stats.Days[i] = DailyTotal{Date: day, Label: day.Format("Mon")}
	}
	for _, t := range domain.ActivityTypes {
		stats.MinutesByType[t] = 0
	}

	end := start.AddDate(0, 0, 7)
	for _, a := range activities {
		if a.Status != domain.ReviewStatusValidated {
			continue
		}
		created := a.CreatedAt.In(now.Location())
		if created.Before(start) || !created.Before(end) {
			continue
		}
		for i := range stats.Days {
			if sameDay(created, stats.Days[i].Date) {
				stats.Days[i].Minutes += a.DurationMinutes
				break
			}
		}
		if _, known := stats.MinutesByType[a.Type]; known {
			stats.MinutesByType[a.Type] += a.DurationMinutes
		}
		stats.TotalMinutes += a.DurationMinutes
	}

	stats.BestDay = stats.Days[0]
	for _, day := range stats.Days[1:] {
		if day.Minutes > stats.BestDay.Minutes {
			stats.BestDay = day
		}
	}

	stats.MostFrequentType = NotAvailable
	best := 0
	for _, t := range domain.ActivityTypes {
		if minutes := stats.MinutesByType[t]; minutes > best {
			best = minutes
			stats.MostFrequentType = string(t)
		}
	}
	return stats
}
