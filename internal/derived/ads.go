package derived

import (
	"sort"

	"github.com/nocsaren/GA-mock-to-html/pkg/types"
)

const unknownAdValue = "Unknown/Missing"

var adEvents = map[string]bool{
	"ad_loaded":             true,
	"ad_closed":             true,
	"ad_displayed":          true,
	types.EventAdRewarded:   true,
	types.EventAdLoadFailed: true,
	"ad_clicked":            true,
}

// filledAdParams show unknownAdValue instead of a blank cell.
var filledAdParams = map[string]bool{
	types.ParamAdNetwork:    true,
	types.ParamAdPlacement:  true,
	types.ParamAdRewardType: true,
	types.ParamAdInstance:   true,
}

var byAdsColumns = concat(
	[]column{
		{"event_datetime", func(_ *Dataset, r *row) string { return formatTime(r.Time) }},
		{"event_params__ga_session_id", func(_ *Dataset, r *row) string { return sessionID(r) }},
		{"event_name", func(_ *Dataset, r *row) string { return EventTitle(r.Name) }},
	},
	adParamColumns(
		types.ParamAdID,
		types.ParamAdUnitID,
		types.ParamAdNetwork,
		types.ParamAdPlacement,
		types.ParamAdRewardType,
		types.ParamAdInstance,
		types.ParamAdErrorCode,
	),
	paramColumns(types.ParamCharacterName, types.ParamCurrentTier, types.ParamQuestionIndex),
	[]column{
		{"question_address", (*Dataset).questionAddress},
		{"ts_weekday", func(_ *Dataset, r *row) string { return weekdayName(r.Time.UTC()) }},
		{"ts_daytime_named", func(_ *Dataset, r *row) string { return daytimeName(r.Time.UTC().Hour()) }},
		{"app_info__version", func(_ *Dataset, r *row) string { return r.AppVersion }},
		{"geo__country", func(_ *Dataset, r *row) string { return r.User.Geo.Country }},
		{"device__operating_system", func(_ *Dataset, r *row) string { return r.User.Device.OperatingSystem }},
		{"event_server_delay_seconds", func(_ *Dataset, r *row) string { return serverDelay(r) }},
	},
)

func adParamColumns(keys ...string) []column {
	out := paramColumns(keys...)
	for i, key := range keys {
		if !filledAdParams[key] {
			continue
		}
		plain := out[i].cell
		out[i].cell = func(d *Dataset, r *row) string {
			if v := plain(d, r); v != "" {
				return v
			}
			return unknownAdValue
		}
	}
	return out
}

// ByAds returns one row per ad event.
func (d *Dataset) ByAds() *Table {
	return d.selectRows(ByAdsName, byAdsColumns, d.rows, func(r *row) bool { return adEvents[r.Name] })
}

func (d *Dataset) selectRows(name string, cols []column, rows []*row, keep func(*row) bool) *Table {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	t := NewTable(name, names...)
	for _, r := range rows {
		if !keep(r) {
			continue
		}
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = c.cell(d, r)
		}
		t.Append(cells...)
	}
	return t
}

var technicalEvents = map[string]bool{
	types.EventAppException: true,
	types.EventAdLoadFailed: true,
}

// technicalRow pairs an event with the one preceding it in its session.
type technicalRow struct {
	*row
	prev *row
}

var technicalColumns = []struct {
	name string
	cell func(d *Dataset, t technicalRow) string
}{
	{"event_datetime", func(_ *Dataset, t technicalRow) string { return formatTime(t.Time) }},
	{"event_name", func(_ *Dataset, t technicalRow) string { return EventTitle(t.Name) }},
	{"user_pseudo_id", func(_ *Dataset, t technicalRow) string { return t.User.PseudoID }},
	{"event_params__ga_session_id", func(_ *Dataset, t technicalRow) string { return sessionID(t.row) }},
	{"app_info__version", func(_ *Dataset, t technicalRow) string { return t.AppVersion }},
	{"device__mobile_marketing_name", func(_ *Dataset, t technicalRow) string { return t.User.Device.MarketingName }},
	{"device__operating_system_version", func(_ *Dataset, t technicalRow) string { return t.User.Device.OperatingSystemVersion }},
	{"prev_event_name", func(_ *Dataset, t technicalRow) string {
		if t.prev == nil {
			return ""
		}
		return EventTitle(t.prev.Name)
	}},
	{"prev_event_menu", func(d *Dataset, t technicalRow) string {
		if t.prev == nil {
			return ""
		}
		return d.param(t.prev, types.ParamMenuName)
	}},
	{"event_params__ad_network", func(d *Dataset, t technicalRow) string { return d.param(t.row, types.ParamAdNetwork) }},
	{"event_params__ad_instance", func(d *Dataset, t technicalRow) string { return d.param(t.row, types.ParamAdInstance) }},
	{"event_params__ad_id", func(d *Dataset, t technicalRow) string { return d.param(t.row, types.ParamAdID) }},
	{"event_params__ad_error_code", func(d *Dataset, t technicalRow) string { return d.param(t.row, types.ParamAdErrorCode) }},
	{"event_server_delay_seconds", func(_ *Dataset, t technicalRow) string { return serverDelay(t.row) }},
}

// TechnicalEvents returns exceptions and ad load failures with the event
// that preceded them in the same session.
func (d *Dataset) TechnicalEvents() *Table {
	names := make([]string, len(technicalColumns))
	for i, c := range technicalColumns {
		names[i] = c.name
	}
	t := NewTable(TechnicalEventsName, names...)

	for _, u := range d.users {
		sessions := make([]*sessionSpan, len(u.sessions))
		copy(sessions, u.sessions)
		sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].id < sessions[j].id })

		for _, s := range sessions {
			var prev *row
			for _, r := range s.rows {
				if technicalEvents[r.Name] {
					tr := technicalRow{row: r, prev: prev}
					cells := make([]string, len(technicalColumns))
					for i, c := range technicalColumns {
						cells[i] = c.cell(d, tr)
					}
					t.Append(cells...)
				}
				prev = r
			}
		}
	}
	return t
}
