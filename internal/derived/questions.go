package derived

import (
	"sort"
	"strconv"

	"github.com/nocsaren/GA-mock-to-html/internal/vocab"
	"github.com/nocsaren/GA-mock-to-html/pkg/types"
)

type questionKey struct {
	character   string
	tier, index int64
	session     int64
}

type questionCounts struct {
	started, correct, ads int
	wrong                 float64
	bought, used, opened  map[string]int
}

// ByQuestions aggregates every event that carries a full question context
// per (character, tier, question, session). Ratios are taken over
// question_started and rounded to three places.
func (d *Dataset) ByQuestions() *Table {
	consumables := d.vocab.Keys(vocab.ClassConsumable)
	energy := d.vocab.Keys(vocab.ClassEnergy)
	menus := d.vocab.Keys(vocab.ClassMenu)

	groups := make(map[questionKey]*questionCounts)
	var order []questionKey
	for _, r := range d.rows {
		character, tier, index, ok := question(r)
		if !ok {
			continue
		}
		k := questionKey{character: character, tier: tier, index: index, session: r.SessionID}
		q, seen := groups[k]
		if !seen {
			q = &questionCounts{bought: make(map[string]int), used: make(map[string]int), opened: make(map[string]int)}
			groups[k] = q
			order = append(order, k)
		}
		switch r.Name {
		case types.EventQuestionStarted:
			q.started++
		case types.EventQuestionCompleted:
			q.correct++
		case types.EventAdRewarded:
			q.ads++
		case types.EventMenuOpened:
			q.opened[r.Item]++
		case types.EventSpendVirtualCurrency:
			if r.ShopItem != "" {
				q.bought[r.ShopItem]++
			} else if r.Item != "" {
				q.used[r.Item]++
			}
		}
		if n, ok := number(r, types.ParamAnsweredWrong); ok {
			q.wrong += n
		}
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.character != b.character {
			return a.character < b.character
		}
		if a.tier != b.tier {
			return a.tier < b.tier
		}
		if a.index != b.index {
			return a.index < b.index
		}
		return a.session < b.session
	})

	cols := []string{
		"question_address",
		"event_params__character_name",
		"event_params__current_tier",
		"event_params__current_question_index",
		"event_params__ga_session_id",
		"question_started",
	}
	for _, key := range consumables {
		cols = append(cols, key+"_bought")
	}
	for _, key := range energy {
		cols = append(cols, key+"_used")
	}
	for _, key := range menus {
		cols = append(cols, key+"_opened")
	}
	cols = append(cols, "answered_correct", "answered_wrong", "ads_watched", "wrong_answer_ratio", "ads_watch_ratio")
	for _, key := range energy {
		cols = append(cols, key+"_use_ratio")
	}
	for _, key := range menus {
		cols = append(cols, key+"_use_ratio")
	}
	t := NewTable(ByQuestionsName, cols...)

	for _, k := range order {
		q := groups[k]
		started := float64(q.started)
		display := d.vocab.Display(k.character)
		cells := []string{
			address(display, k.tier, k.index),
			display,
			strconv.FormatInt(k.tier, 10),
			strconv.FormatInt(k.index, 10),
			strconv.FormatInt(k.session, 10),
			itoa(q.started),
		}
		for _, key := range consumables {
			cells = append(cells, itoa(q.bought[key]))
		}
		for _, key := range energy {
			cells = append(cells, itoa(q.used[key]))
		}
		for _, key := range menus {
			cells = append(cells, itoa(q.opened[key]))
		}
		cells = append(cells,
			itoa(q.correct),
			types.FormatFloat(q.wrong),
			itoa(q.ads),
			ratio(q.wrong, started),
			ratio(float64(q.ads), started),
		)
		for _, key := range energy {
			cells = append(cells, ratio(float64(q.used[key]), started))
		}
		for _, key := range menus {
			cells = append(cells, ratio(float64(q.opened[key]), started))
		}
		t.Append(cells...)
	}
	return t
}
