package derived

import (
	"iter"
	"strconv"
	"strings"

	"github.com/nocsaren/GA-mock-to-html/internal/vocab"
	"github.com/nocsaren/GA-mock-to-html/pkg/types"
)

type column struct {
	name string
	cell func(d *Dataset, r *row) string
}

func paramColumn(key string) column {
	return column{
		name: "event_params__" + key,
		cell: func(d *Dataset, r *row) string { return d.param(r, key) },
	}
}

func paramColumns(keys ...string) []column {
	out := make([]column, len(keys))
	for i, k := range keys {
		out[i] = paramColumn(k)
	}
	return out
}

func sessionDuration(r *row) float64 {
	if r.session == nil {
		return 0
	}
	return r.session.seconds()
}

var processedColumns = concat(
	[]column{
		{"event_timestamp", func(_ *Dataset, r *row) string { return strconv.FormatInt(r.TimestampMicros(), 10) }},
		{"event_name", func(_ *Dataset, r *row) string { return EventTitle(r.Name) }},
		{"user_pseudo_id", func(_ *Dataset, r *row) string { return r.User.PseudoID }},
		{"event_params__ga_session_id", func(_ *Dataset, r *row) string { return sessionID(r) }},
		{"event_datetime", func(_ *Dataset, r *row) string { return formatTime(r.Time) }},
		{"event_date", func(_ *Dataset, r *row) string { return formatTime(midnight(r.Time)) }},
		{"event_time", func(_ *Dataset, r *row) string { return r.Time.UTC().Format(timeLayout) }},
		{"ts_weekday", func(_ *Dataset, r *row) string { return weekdayName(r.Time.UTC()) }},
		{"ts_daytime_named", func(_ *Dataset, r *row) string { return daytimeName(r.Time.UTC().Hour()) }},
		{"ts_is_weekend", func(_ *Dataset, r *row) string { return weekendName(r.Time.UTC()) }},
		{"app_info__version", func(_ *Dataset, r *row) string { return r.AppVersion }},
		{"geo__country", func(_ *Dataset, r *row) string { return r.User.Geo.Country }},
		{"device__operating_system", func(_ *Dataset, r *row) string { return r.User.Device.OperatingSystem }},
		{"session_duration_seconds", func(_ *Dataset, r *row) string { return types.FormatFloat(sessionDuration(r)) }},
		{"session_duration_minutes", func(_ *Dataset, r *row) string { return types.FormatFloat(sessionDuration(r) / 60) }},
		{"session_start_time", func(_ *Dataset, r *row) string {
			if r.session == nil {
				return ""
			}
			return formatTime(r.session.start)
		}},
		{"session_end_time", func(_ *Dataset, r *row) string {
			if r.session == nil {
				return ""
			}
			return formatTime(r.session.end)
		}},
	},
	paramColumns(types.ParamCharacterName, types.ParamCurrentTier, types.ParamQuestionIndex),
	[]column{
		{"cumulative_question_index", (*Dataset).cumulativeIndex},
		paramColumn(types.ParamAnsweredWrong),
		{"question_address", (*Dataset).questionAddress},
		paramColumn(types.ParamMenuName),
		paramColumn(types.ParamSpentTo),
		{"shop_consumable_item", func(d *Dataset, r *row) string {
			if r.ShopItem == "" {
				return ""
			}
			return d.vocab.Display(r.ShopItem)
		}},
	},
	paramColumns(
		types.ParamCurrencyName,
		types.ParamEarnedAmount,
		types.ParamSpentAmount,
		types.ParamGold,
		types.ParamMiniGame,
		types.ParamAdNetwork,
		types.ParamAdUnitID,
		types.ParamAdInstance,
		types.ParamAdID,
		types.ParamAdErrorCode,
	),
	[]column{
		{"event_server_delay_seconds", func(_ *Dataset, r *row) string { return serverDelay(r) }},
		{"device__mobile_marketing_name", func(_ *Dataset, r *row) string { return r.User.Device.MarketingName }},
		{"device__operating_system_version", func(_ *Dataset, r *row) string { return r.User.Device.OperatingSystemVersion }},
	},
	paramColumns(conversionParams...),
	paramColumns(types.ParamTutorialVideo),
)

func concat(groups ...[]column) []column {
	var out []column
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// tierOffsets holds the cumulative question offsets for tiers 2 to 4, for
// the special character and for everyone else.
var tierOffsets = map[int64][2]int64{
	2: {12, 16},
	3: {24, 28},
	4: {36, 40},
}

func (d *Dataset) cumulativeIndex(r *row) string {
	character, tier, index, ok := question(r)
	if !ok {
		if q, okq := number(r, types.ParamQuestionIndex); okq {
			return types.FormatFloat(q)
		}
		return ""
	}
	if off, found := tierOffsets[tier]; found {
		if character == d.vocab.SpecialCharacter() {
			index += off[0]
		} else {
			index += off[1]
		}
	}
	return strconv.FormatInt(index, 10)
}

func (d *Dataset) questionAddress(r *row) string {
	character, tier, index, ok := question(r)
	if !ok {
		return ""
	}
	return address(d.vocab.Display(character), tier, index)
}

func address(character string, tier, index int64) string {
	var b strings.Builder
	b.WriteString(character)
	b.WriteString(" - T: ")
	b.WriteString(strconv.FormatInt(tier, 10))
	b.WriteString(" - Q: ")
	b.WriteString(strconv.FormatInt(index, 10))
	return b.String()
}

// Processed returns one flattened row per event.
func (d *Dataset) Processed() *Table {
	return d.selectRows(ProcessedName, processedColumns, d.rows, func(*row) bool { return true })
}

// Flatten returns the processed_data table for seq.
func Flatten(seq iter.Seq[types.Event], v *vocab.Vocabulary) *Table {
	return NewDataset(seq, v).Processed()
}
