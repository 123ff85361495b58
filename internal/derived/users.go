package derived

import (
	"time"

	"github.com/nocsaren/GA-mock-to-html/pkg/types"
)

// conversionParams are boolean event params reduced to "ever true" per user.
var conversionParams = []string{
	"pp_accepted",
	"video_start",
	"video_finished",
	"entered",
	"shown",
	"opened",
	"return",
	"closed",
	"drag",
}

// userCountEvents are counted per user under their display title.
var userCountEvents = []string{
	types.EventAdRewarded,
	types.EventQuestionCompleted,
	types.EventGameEnded,
	types.EventAppRemove,
	types.EventSessionStart,
}

// excludeLastUserEvent never counts as a user's last event.
var excludeLastUserEvent = map[string]bool{
	types.EventAppRemove:          true,
	"app_clear_data":              true,
	"app_update":                  true,
	"user_engagement":             true,
	"screen_view":                 true,
	"firebase_campaign":           true,
	types.EventStartingCurrencies: true,
}

type userStats struct {
	ctx            *types.UserContext
	firstDate      time.Time
	lastDate       time.Time
	lastName       string
	sessions       int
	characters     int
	playtime       float64
	startVersion   string
	version        string
	counts         map[string]int
	conversions    map[string]bool
	tutorial       bool
	totalEvents    int
	itemCounts     map[string]int
	completedCount int
}

func (d *Dataset) userStats(u *userRows) *userStats {
	s := &userStats{
		ctx:         u.ctx,
		sessions:    len(u.sessions),
		counts:      make(map[string]int),
		conversions: make(map[string]bool),
		itemCounts:  make(map[string]int),
		totalEvents: len(u.rows),
	}
	characters := make(map[string]bool)
	for i, r := range u.rows {
		day := midnight(r.Time)
		if i == 0 {
			s.firstDate = day
			s.startVersion = r.AppVersion
		}
		s.version = r.AppVersion
		if !excludeLastUserEvent[r.Name] {
			s.lastDate = day
			s.lastName = r.Name
		}

		s.counts[r.Name]++
		if r.Item != "" {
			s.itemCounts[r.Item]++
		}
		if c, ok := r.Param(types.ParamCharacterName); ok && !c.IsNull() {
			characters[c.Str] = true
		}
		for _, key := range conversionParams {
			if isTrue(r, key) {
				s.conversions[key] = true
			}
		}
		if v, ok := r.Param(types.ParamTutorialVideo); ok && v.Kind == types.KindString && v.Str == "tutorial_video" {
			s.tutorial = true
		}
	}
	for _, sess := range u.sessions {
		s.playtime += sess.seconds() / 60
	}
	s.characters = len(characters)
	s.completedCount = s.counts[types.EventQuestionCompleted]
	return s
}

func (s *userStats) flags() []string {
	q := s.completedCount
	return []string{
		flag(q > 0),
		flag(q > 1),
		flag(q > 2),
		flag(s.characters >= 2),
		flag(q >= 10),
		flag(s.sessions >= 2),
		flag(!s.lastDate.IsZero() && s.lastDate.After(s.firstDate)),
		flag(s.playtime >= 10),
	}
}

var flagColumns = []string{
	"answered_first_question",
	"answered_second_question",
	"answered_third_question",
	"saw_mi",
	"answered_ten_questions",
	"second_session_started",
	"second_day_active",
	"passed_10_min",
}

// ByUsers returns the per-user feature table and its boolean companion.
// Every vocabulary key contributes <key>_count and <key>_ratio, where the
// ratio is the exact share of the user's events referencing the key.
func (d *Dataset) ByUsers() (*Table, *Table) {
	var keys []string
	for _, e := range d.vocab.Entries() {
		keys = append(keys, e.Key)
	}

	cols := []string{
		"user_pseudo_id",
		"first_event_date",
		"total_sessions",
		"total_characters_opened",
		"country",
		"install_source",
		"operating_system",
		"operating_system_version",
		"is_limited_ad_tracking",
		"device_language",
		"start_version",
		"version",
		"total_playtime_minutes",
	}
	for _, ev := range userCountEvents {
		cols = append(cols, EventTitle(ev))
	}
	for _, key := range conversionParams {
		cols = append(cols, "event_params__"+key)
	}
	cols = append(cols, "wecolme_video_played", "tutorial_completed", "last_event_date", "last_event_name")
	cols = append(cols, flagColumns...)
	cols = append(cols, "total_events")
	for _, key := range keys {
		cols = append(cols, CountColumn(key), RatioColumn(key))
	}
	users := NewTable(ByUsersName, cols...)

	metaCols := []string{"user_pseudo_id"}
	for _, key := range conversionParams {
		metaCols = append(metaCols, "event_params__"+key)
	}
	metaCols = append(metaCols,
		"answered_first_question",
		"answered_second_question",
		"answered_third_question",
		"saw_mi",
		"passed_10_min",
		"answered_ten_questions",
		"second_session_started",
		"second_day_active",
		"tutorial_completed",
		"wecolme_video_played",
		"start_version",
	)
	meta := NewTable(UsersMetaName, metaCols...)

	for _, u := range d.users {
		s := d.userStats(u)
		ctx := s.ctx
		lastDate := ""
		if !s.lastDate.IsZero() {
			lastDate = formatTime(s.lastDate)
		}
		lastName := ""
		if s.lastName != "" {
			lastName = EventTitle(s.lastName)
		}

		cells := []string{
			ctx.PseudoID,
			formatTime(s.firstDate),
			itoa(s.sessions),
			itoa(s.characters),
			ctx.Geo.Country,
			ctx.AppInfo.InstallSource,
			ctx.Device.OperatingSystem,
			ctx.Device.OperatingSystemVersion,
			ctx.Device.LimitedAdTracking,
			ctx.Device.Language,
			s.startVersion,
			s.version,
			types.FormatFloat(round(s.playtime, 2)),
		}
		for _, ev := range userCountEvents {
			cells = append(cells, itoa(s.counts[ev]))
		}
		conv := make([]string, len(conversionParams))
		for i, key := range conversionParams {
			conv[i] = flag(s.conversions[key])
		}
		cells = append(cells, conv...)
		cells = append(cells, "0", flag(s.tutorial), lastDate, lastName)
		flags := s.flags()
		cells = append(cells, flags...)
		cells = append(cells, itoa(s.totalEvents))
		for _, key := range keys {
			n := s.itemCounts[key]
			cells = append(cells, itoa(n), exactRatio(n, s.totalEvents))
		}
		users.Append(cells...)

		metaCells := append([]string{ctx.PseudoID}, conv...)
		metaCells = append(metaCells,
			flags[0], flags[1], flags[2], flags[3], flags[7], flags[4], flags[5], flags[6],
			flag(s.tutorial), "0", s.startVersion,
		)
		meta.Append(metaCells...)
	}
	return users, meta
}

// CountColumn is the by_users column counting events that reference key.
func CountColumn(key string) string { return key + "_count" }

// RatioColumn is the by_users column holding CountColumn over total events.
func RatioColumn(key string) string { return key + "_ratio" }

// exactRatio formats m/k with the shortest representation that round-trips,
// or 0 when k is zero.
func exactRatio(m, k int) string {
	if k == 0 {
		return "0"
	}
	return types.FormatFloat(float64(m) / float64(k))
}
