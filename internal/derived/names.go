package derived

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nocsaren/GA-mock-to-html/pkg/types"
)

const (
	dateTimeLayout = "2006-01-02 15:04:05-07:00"
	timeLayout     = "15:04:05"
)

// Event names that the exported pipeline renamed instead of title-casing.
var eventTitles = map[string]string{
	types.EventSessionStart:         "Session Started",
	types.EventSpendVirtualCurrency: "Spent Virtual Currency",
	types.EventMiniGameStarted:      "Mini-game Started",
	types.EventMiniGameCompleted:    "Mini-game Completed",
	types.EventAppRemove:            "App Removed",
	"earn_virtual_currency":         "Earned Virtual Currency",
	"screen_view":                   "Screen Viewed",
	"app_update":                    "App Updated",
	"app_clear_data":                "App Data Cleared",
}

// EventTitle renders a raw event name the way the processed tables show it.
func EventTitle(name string) string {
	if t, ok := eventTitles[name]; ok {
		return t
	}
	return cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
}

// skipLastEvents never count as a session's or user's last event.
var skipLastEvents = map[string]bool{
	"user_engagement":             true,
	"screen_view":                 true,
	"earn_virtual_currency":       true,
	"firebase_campaign":           true,
	types.EventAppRemove:          true,
	"app_clear_data":              true,
	"app_update":                  true,
	types.EventStartingCurrencies: true,
}

var weekdays = [...]string{
	time.Monday:    "Pazartesi",
	time.Tuesday:   "Salı",
	time.Wednesday: "Çarşamba",
	time.Thursday:  "Perşembe",
	time.Friday:    "Cuma",
	time.Saturday:  "Cumartesi",
	time.Sunday:    "Pazar",
}

func weekdayName(t time.Time) string {
	return weekdays[t.Weekday()]
}

func daytimeName(hour int) string {
	switch {
	case hour <= 5:
		return "Gece"
	case hour <= 11:
		return "Sabah"
	case hour <= 17:
		return "Öğle"
	default:
		return "Akşam"
	}
}

func weekendName(t time.Time) string {
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return "Hafta Sonu"
	}
	return "Hafta İçi"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeLayout)
}

func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func round(f float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(f*p) / p
}

// ratio returns num/den rounded to three places, or 0 when den is zero.
func ratio(num, den float64) string {
	if den == 0 {
		return "0"
	}
	return types.FormatFloat(round(num/den, 3))
}
