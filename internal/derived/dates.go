package derived

import (
	"sort"
	"time"

	"github.com/nocsaren/GA-mock-to-html/pkg/types"
)

// breakdowns are the ad params counted per distinct value and day.
var breakdowns = []struct {
	param, prefix string
}{
	{types.ParamAdNetwork, "nwk_"},
	{types.ParamAdUnitID, "unt_"},
	{types.ParamAdInstance, "ins_"},
}

type dayStats struct {
	users      map[string]bool
	android    map[string]bool
	ios        map[string]bool
	sessions   map[int64]bool
	newUsers   int
	uninstalls int
	ads        int
	started    int
	completed  int
	breakdown  map[string]int
}

// ByDate aggregates events per calendar day (UTC). Breakdown columns are
// added for every ad network, unit and instance value seen in the run.
func (d *Dataset) ByDate() *Table {
	days := make(map[time.Time]*dayStats)
	var order []time.Time
	values := make([]map[string]bool, len(breakdowns))
	for i := range values {
		values[i] = make(map[string]bool)
	}

	for _, r := range d.rows {
		day := midnight(r.Time)
		s, ok := days[day]
		if !ok {
			s = &dayStats{
				users:     make(map[string]bool),
				android:   make(map[string]bool),
				ios:       make(map[string]bool),
				sessions:  make(map[int64]bool),
				breakdown: make(map[string]int),
			}
			days[day] = s
			order = append(order, day)
		}
		s.users[r.User.PseudoID] = true
		switch r.User.Device.OperatingSystem {
		case "ANDROID":
			s.android[r.User.PseudoID] = true
		case "IOS":
			s.ios[r.User.PseudoID] = true
		}
		if r.InSession() {
			s.sessions[r.SessionID] = true
		}
		switch r.Name {
		case types.EventFirstOpen:
			s.newUsers++
		case types.EventAppRemove:
			s.uninstalls++
		case types.EventAdRewarded:
			s.ads++
		case types.EventQuestionStarted:
			s.started++
		case types.EventQuestionCompleted:
			s.completed++
		}
		for i, b := range breakdowns {
			if v := d.param(r, b.param); v != "" {
				values[i][v] = true
				s.breakdown[b.prefix+v]++
			}
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	cols := []string{
		"event_date",
		"weekday",
		"unique_users",
		"new_users",
		"android_users",
		"ios_users",
		"uninstall_count",
		"unique_sessions",
		"ads_watched",
		"questions_started",
		"questions_completed",
	}
	var extra []string
	for i, b := range breakdowns {
		names := make([]string, 0, len(values[i]))
		for v := range values[i] {
			names = append(names, b.prefix+v)
		}
		sort.Strings(names)
		extra = append(extra, names...)
	}
	t := NewTable(ByDateName, append(cols, extra...)...)

	for _, day := range order {
		s := days[day]
		cells := []string{
			formatTime(day),
			weekdayName(day),
			itoa(len(s.users)),
			itoa(s.newUsers),
			itoa(len(s.android)),
			itoa(len(s.ios)),
			itoa(s.uninstalls),
			itoa(len(s.sessions)),
			itoa(s.ads),
			itoa(s.started),
			itoa(s.completed),
		}
		for _, name := range extra {
			cells = append(cells, itoa(s.breakdown[name]))
		}
		t.Append(cells...)
	}
	return t
}
