package derived

import (
	"strconv"
	"strings"

	"github.com/nocsaren/GA-mock-to-html/internal/vocab"
	"github.com/nocsaren/GA-mock-to-html/pkg/types"
)

// minSessionSeconds drops sessions too short to carry gameplay.
const minSessionSeconds = 15

// debtThreshold is the gold spend above which an overdrawn session counts
// as in debt.
const debtThreshold = 2000

type goldSummary struct {
	starting, gained, spent float64
}

func (g goldSummary) cells() []string {
	debt := g.spent > g.starting+g.gained && g.spent >= debtThreshold
	return []string{
		types.FormatFloat(g.starting),
		types.FormatFloat(g.gained),
		types.FormatFloat(g.spent),
		types.FormatFloat(g.gained - g.spent),
		flag(debt),
	}
}

func summarizeGold(rows []*row) goldSummary {
	var g goldSummary
	for _, r := range rows {
		gold := false
		if v, ok := r.Param(types.ParamCurrencyName); ok && v.Str == "Gold" {
			gold = true
		}
		switch r.Name {
		case types.EventStartingCurrencies:
			if n, ok := number(r, types.ParamGold); ok {
				g.starting += n
			}
		case "earn_virtual_currency":
			if n, ok := number(r, types.ParamEarnedAmount); ok && gold {
				g.gained += n
			}
		case types.EventSpendVirtualCurrency:
			if n, ok := number(r, types.ParamSpentAmount); ok && gold {
				g.spent += n
			}
		}
	}
	return g
}

// BySessions returns one row per session longer than fifteen seconds.
func (d *Dataset) BySessions() *Table {
	wheel := d.vocab.Keys(vocab.ClassWheel)
	consumables := d.vocab.Keys(vocab.ClassConsumable)
	energy := d.vocab.Keys(vocab.ClassEnergy)

	cols := []string{
		"event_params__ga_session_id",
		"user_pseudo_id",
		"session_duration_seconds",
		"passed_10_min",
		"session_start_time",
		"customer_character_count",
		"character_list",
		"average_tier",
		"average_wrong_answers",
	}
	for _, key := range wheel {
		cols = append(cols, d.label(key))
	}
	cols = append(cols, "Wheel_Spins", "Ads_Watched_Count",
		"gold_starting", "gold_gained", "gold_spent", "gold_delta", "is_depted_for_doll")
	for _, key := range consumables {
		cols = append(cols, d.label(key)+"_Bought")
	}
	for _, key := range energy {
		cols = append(cols, d.label(key)+"_Used")
	}
	cols = append(cols, "last_event_name", "last_event_time", "bought_new_customer")
	t := NewTable(BySessionsName, cols...)

	for _, u := range d.users {
		for _, s := range u.sessions {
			if s.seconds() <= minSessionSeconds {
				continue
			}
			t.Append(d.sessionCells(u, s, wheel, consumables, energy)...)
		}
	}
	return t
}

func (d *Dataset) label(key string) string {
	if e, ok := d.vocab.Lookup(key); ok && e.Label != "" {
		return e.Label
	}
	return key
}

func (d *Dataset) sessionCells(u *userRows, s *sessionSpan, wheel, consumables, energy []string) []string {
	duration := round(s.seconds(), 2)

	var start string
	var characters []string
	var tierSum, wrongSum float64
	var tierCount, wrongCount, ads int
	distinct := make(map[string]bool)
	items := make(map[string]int)
	bought := make(map[string]int)
	used := make(map[string]int)
	for _, r := range s.rows {
		switch r.Name {
		case types.EventSessionStart:
			if start == "" {
				start = formatTime(s.start)
			}
		case types.EventQuestionStarted:
			if c, ok := r.Param(types.ParamCharacterName); ok && !c.IsNull() {
				characters = append(characters, d.vocab.Display(c.Str))
				distinct[c.Str] = true
			}
			if n, ok := number(r, types.ParamCurrentTier); ok {
				tierSum += n
				tierCount++
			}
		case types.EventQuestionCompleted:
			if n, ok := number(r, types.ParamAnsweredWrong); ok {
				wrongSum += n
				wrongCount++
			}
		case types.EventAdRewarded:
			ads++
		case types.EventSpendVirtualCurrency:
			if r.ShopItem != "" {
				bought[r.ShopItem]++
			} else if r.Item != "" {
				used[r.Item]++
			}
		}
		if r.Item != "" {
			items[r.Item]++
		}
	}

	characterCount, characterList := "", ""
	if len(characters) > 0 {
		characterCount = itoa(len(distinct))
		characterList = pyList(characters)
	}

	cells := []string{
		strconv.FormatInt(s.id, 10),
		u.ctx.PseudoID,
		types.FormatFloat(duration),
		pyBool(duration >= 600),
		start,
		characterCount,
		characterList,
		mean(tierSum, tierCount),
		mean(wrongSum, wrongCount),
	}
	var spins int
	for i, key := range wheel {
		n := items[key]
		cells = append(cells, itoa(n))
		// The first wheel entry is the impression, the rest are skips.
		if i == 0 {
			spins += n
		} else {
			spins -= n
		}
	}
	cells = append(cells, itoa(spins), itoa(ads))
	cells = append(cells, summarizeGold(s.rows).cells()...)
	for _, key := range consumables {
		cells = append(cells, itoa(bought[key]))
	}
	for _, key := range energy {
		cells = append(cells, itoa(used[key]))
	}

	last := s.rows[len(s.rows)-1]
	for i := len(s.rows) - 1; i >= 0; i-- {
		if !skipLastEvents[s.rows[i].Name] {
			last = s.rows[i]
			break
		}
	}
	cells = append(cells, EventTitle(last.Name), formatTime(last.Time), itoa(len(distinct)/3))
	return cells
}

func mean(sum float64, n int) string {
	if n == 0 {
		return "0"
	}
	return types.FormatFloat(sum / float64(n))
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// pyList renders values the way the pipeline's list columns look: ['a', 'b'].
func pyList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", `\'`) + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
