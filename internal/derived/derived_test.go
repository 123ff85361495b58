package derived

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nocsaren/GA-mock-to-html/internal/sampler"
	"github.com/nocsaren/GA-mock-to-html/internal/vocab"
	"github.com/nocsaren/GA-mock-to-html/pkg/types"
)

var testStart = time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC) // a Monday

func testUser(id string) *types.UserContext {
	return &types.UserContext{
		PseudoID:     id,
		Platform:     "ANDROID",
		StartVersion: "1.0.5",
		FirstOpen:    testStart,
		Device:       types.Device{OperatingSystem: "ANDROID", MarketingName: "Pixel 8", OperatingSystemVersion: "Android 15"},
		Geo:          types.Geo{Country: "Türkiye"},
		Characters:   []string{vocab.KeyCharacterT, vocab.KeyCharacterMi},
	}
}

func questionParams(session int64, character string, tier, index int64) []types.Param {
	return []types.Param{
		{Key: types.ParamSessionID, Value: types.Int(session)},
		{Key: types.ParamCharacterName, Value: types.VocabRef(character)},
		{Key: types.ParamCurrentTier, Value: types.Int(tier)},
		{Key: types.ParamQuestionIndex, Value: types.Int(index)},
	}
}

// scriptedEvents is a small hand-written history: one first_open and a
// 40 second session with two questions by one user.
func scriptedEvents() []types.Event {
	u := testUser("aaaa")
	sid := testStart.Add(time.Minute).Unix()
	at := func(sec int) time.Time { return testStart.Add(time.Minute + time.Duration(sec)*time.Second) }
	in := func(name string, sec int, item string, params ...types.Param) types.Event {
		return types.Event{
			User: u, SessionID: sid, SessionNumber: 1, Name: name, Time: at(sec), Item: item, AppVersion: "1.0.5",
			Params: append([]types.Param{{Key: types.ParamSessionID, Value: types.Int(sid)}}, params...),
		}
	}
	return []types.Event{
		{User: u, Name: types.EventFirstOpen, Time: testStart, AppVersion: "1.0.5", Params: []types.Param{
			{Key: "pp_accepted", Value: types.Bool(true)},
			{Key: types.ParamTutorialVideo, Value: types.String("tutorial_video")},
		}},
		in(types.EventSessionStart, 0, "", types.Param{Key: "entered", Value: types.Bool(false)}),
		in(types.EventStartingCurrencies, 1, "", types.Param{Key: types.ParamGold, Value: types.Double(300)}),
		in(types.EventQuestionStarted, 5, vocab.KeyCharacterT, questionParams(sid, vocab.KeyCharacterT, 2, 3)[1:]...),
		in(types.EventSpendVirtualCurrency, 7, vocab.KeyCoffee, append(questionParams(sid, vocab.KeyCharacterT, 2, 3)[1:],
			types.Param{Key: types.ParamCurrencyName, Value: types.String("Gold")},
			types.Param{Key: types.ParamSpentAmount, Value: types.Double(50)},
			types.Param{Key: types.ParamSpentTo, Value: types.VocabRef(vocab.KeyCoffee)})...),
		in(types.EventQuestionCompleted, 8, vocab.KeyCharacterT, append(questionParams(sid, vocab.KeyCharacterT, 2, 3)[1:],
			types.Param{Key: types.ParamAnsweredWrong, Value: types.Int(2)})...),
		in(types.EventQuestionStarted, 20, vocab.KeyCharacterMi, questionParams(sid, vocab.KeyCharacterMi, 2, 3)[1:]...),
		{User: u, SessionID: sid, Name: types.EventAdLoadFailed, Time: at(30), AppVersion: "1.0.5",
			ServerDelaySeconds: types.Double(1.5),
			Params: []types.Param{
				{Key: types.ParamSessionID, Value: types.Int(sid)},
				{Key: types.ParamAdErrorCode, Value: types.String("timeout")},
			}},
		in(types.EventAppRemove, 40, ""),
	}
}

func dataset(events []types.Event, v *vocab.Vocabulary) *Dataset {
	return NewDataset(slices.Values(events), v)
}

func cell(t *testing.T, tbl *Table, i int, col string) string {
	t.Helper()
	v, ok := tbl.Cell(i, col)
	require.True(t, ok, "%s has no column %s or row %d", tbl.Name, col, i)
	return v
}

func TestByUsers_ExactRatios(t *testing.T) {
	users, meta := dataset(scriptedEvents(), vocab.Default()).ByUsers()
	require.Len(t, users.Rows, 1)

	assert.Equal(t, "9", cell(t, users, 0, "total_events"))
	assert.Equal(t, "2", cell(t, users, 0, CountColumn(vocab.KeyCharacterT)))
	assert.Equal(t, "0.2222222222222222", cell(t, users, 0, RatioColumn(vocab.KeyCharacterT)))
	assert.Equal(t, "1", cell(t, users, 0, CountColumn(vocab.KeyCoffee)))
	assert.Equal(t, "0.1111111111111111", cell(t, users, 0, RatioColumn(vocab.KeyCoffee)))
	assert.Equal(t, "0", cell(t, users, 0, RatioColumn(vocab.KeyPotion)))

	assert.Equal(t, "1", cell(t, users, 0, "total_sessions"))
	assert.Equal(t, "2", cell(t, users, 0, "total_characters_opened"))
	assert.Equal(t, "1", cell(t, users, 0, "saw_mi"))
	assert.Equal(t, "1", cell(t, users, 0, "App Removed"))
	assert.Equal(t, "Ad Load Failed", cell(t, users, 0, "last_event_name"))
	assert.Equal(t, "2025-01-06 00:00:00+00:00", cell(t, users, 0, "first_event_date"))

	assert.Equal(t, "1", cell(t, meta, 0, "event_params__pp_accepted"))
	assert.Equal(t, "0", cell(t, meta, 0, "event_params__entered"))
	assert.Equal(t, "1", cell(t, meta, 0, "tutorial_completed"))
	assert.Equal(t, "1.0.5", cell(t, meta, 0, "start_version"))
}

func TestExactRatio(t *testing.T) {
	assert.Equal(t, "0", exactRatio(0, 0))
	assert.Equal(t, "0", exactRatio(3, 0))
	assert.Equal(t, "0.5", exactRatio(1, 2))
	assert.Equal(t, "1", exactRatio(7, 7))
}

func TestProcessed(t *testing.T) {
	tbl := dataset(scriptedEvents(), vocab.Default()).Processed()
	require.Len(t, tbl.Rows, 9)

	assert.Equal(t, "First Open", cell(t, tbl, 0, "event_name"))
	assert.Empty(t, cell(t, tbl, 0, "event_params__ga_session_id"))
	assert.Equal(t, "0", cell(t, tbl, 0, "session_duration_seconds"))
	assert.Equal(t, "Pazartesi", cell(t, tbl, 0, "ts_weekday"))
	assert.Equal(t, "Sabah", cell(t, tbl, 0, "ts_daytime_named"))
	assert.Equal(t, "Hafta İçi", cell(t, tbl, 0, "ts_is_weekend"))

	assert.Equal(t, "Session Started", cell(t, tbl, 1, "event_name"))
	assert.Equal(t, "40", cell(t, tbl, 1, "session_duration_seconds"))

	// character_t is the special character by default.
	assert.Equal(t, "15", cell(t, tbl, 3, "cumulative_question_index"))
	assert.Equal(t, "t - T: 2 - Q: 3", cell(t, tbl, 3, "question_address"))
	assert.Equal(t, "19", cell(t, tbl, 6, "cumulative_question_index"))
	assert.Equal(t, "Coffee", cell(t, tbl, 4, "event_params__spent_to"))
	assert.Equal(t, "Spent Virtual Currency", cell(t, tbl, 4, "event_name"))
}

func TestBySessions(t *testing.T) {
	tbl := dataset(scriptedEvents(), vocab.Default()).BySessions()
	require.Len(t, tbl.Rows, 1)

	assert.Equal(t, "40", cell(t, tbl, 0, "session_duration_seconds"))
	assert.Equal(t, "False", cell(t, tbl, 0, "passed_10_min"))
	assert.Equal(t, "['t', 'mi']", cell(t, tbl, 0, "character_list"))
	assert.Equal(t, "2", cell(t, tbl, 0, "customer_character_count"))
	assert.Equal(t, "2", cell(t, tbl, 0, "average_tier"))
	assert.Equal(t, "2", cell(t, tbl, 0, "average_wrong_answers"))
	assert.Equal(t, "300", cell(t, tbl, 0, "gold_starting"))
	assert.Equal(t, "50", cell(t, tbl, 0, "gold_spent"))
	assert.Equal(t, "-50", cell(t, tbl, 0, "gold_delta"))
	assert.Equal(t, "1", cell(t, tbl, 0, "Coffee_Used"))
	assert.Equal(t, "0", cell(t, tbl, 0, "Potions_Bought"))
	assert.Equal(t, "Ad Load Failed", cell(t, tbl, 0, "last_event_name"))
	assert.Equal(t, "0", cell(t, tbl, 0, "bought_new_customer"))
}

func TestBySessions_DropsShortSessions(t *testing.T) {
	events := scriptedEvents()[:4]
	tbl := dataset(events, vocab.Default()).BySessions()
	assert.Empty(t, tbl.Rows)
}

func TestByQuestions(t *testing.T) {
	tbl := dataset(scriptedEvents(), vocab.Default()).ByQuestions()
	require.Len(t, tbl.Rows, 2)

	assert.Equal(t, "mi - T: 2 - Q: 3", cell(t, tbl, 0, "question_address"))
	assert.Equal(t, "t - T: 2 - Q: 3", cell(t, tbl, 1, "question_address"))
	assert.Equal(t, "1", cell(t, tbl, 1, "question_started"))
	assert.Equal(t, "1", cell(t, tbl, 1, "coffee_used"))
	assert.Equal(t, "2", cell(t, tbl, 1, "answered_wrong"))
	assert.Equal(t, "2", cell(t, tbl, 1, "wrong_answer_ratio"))
	assert.Equal(t, "1", cell(t, tbl, 1, "coffee_use_ratio"))
	assert.Equal(t, "0", cell(t, tbl, 1, "scroll_menu_use_ratio"))
}

func TestRatio_RoundsToThreePlaces(t *testing.T) {
	assert.Equal(t, "0.333", ratio(1, 3))
	assert.Equal(t, "0.667", ratio(2, 3))
	assert.Equal(t, "0", ratio(5, 0))
}

func TestByDate(t *testing.T) {
	tbl := dataset(scriptedEvents(), vocab.Default()).ByDate()
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "1", cell(t, tbl, 0, "unique_users"))
	assert.Equal(t, "1", cell(t, tbl, 0, "new_users"))
	assert.Equal(t, "1", cell(t, tbl, 0, "android_users"))
	assert.Equal(t, "0", cell(t, tbl, 0, "ios_users"))
	assert.Equal(t, "1", cell(t, tbl, 0, "uninstall_count"))
	assert.Equal(t, "1", cell(t, tbl, 0, "unique_sessions"))
	assert.Equal(t, "2", cell(t, tbl, 0, "questions_started"))
}

func TestByAdsAndTechnicalEvents(t *testing.T) {
	d := dataset(scriptedEvents(), vocab.Default())

	ads := d.ByAds()
	require.Len(t, ads.Rows, 1)
	assert.Equal(t, "Unknown/Missing", cell(t, ads, 0, "event_params__ad_network"))
	assert.Equal(t, "timeout", cell(t, ads, 0, "event_params__ad_error_code"))
	assert.Equal(t, "1.5", cell(t, ads, 0, "event_server_delay_seconds"))
	assert.Len(t, ads.Columns, 20)

	tech := d.TechnicalEvents()
	require.Len(t, tech.Rows, 1)
	assert.Equal(t, "Question Started", cell(t, tech, 0, "prev_event_name"))
	assert.Equal(t, "Pixel 8", cell(t, tech, 0, "device__mobile_marketing_name"))
	assert.Len(t, tech.Columns, 14)
}

func TestTables_EmptyInput(t *testing.T) {
	tables := dataset(nil, vocab.Default()).Tables()
	require.Len(t, tables, 8)
	for _, tbl := range tables {
		assert.NotEmpty(t, tbl.Columns, tbl.Name)
		assert.Empty(t, tbl.Rows, tbl.Name)
	}
	assert.Contains(t, tables[2].Columns, RatioColumn(vocab.KeyAliCin))
}

func TestEventTitle(t *testing.T) {
	tests := map[string]string{
		types.EventSessionStart:         "Session Started",
		types.EventQuestionCompleted:    "Question Completed",
		types.EventMiniGameStarted:      "Mini-game Started",
		types.EventAppRemove:            "App Removed",
		types.EventSpendVirtualCurrency: "Spent Virtual Currency",
		types.EventFirstOpen:            "First Open",
	}
	for in, want := range tests {
		assert.Equal(t, want, EventTitle(in), in)
	}
}

func sampled(t *testing.T, v *vocab.Vocabulary) *Dataset {
	t.Helper()
	p := sampler.DefaultParams()
	p.Users = 15
	p.Days = 4
	s, err := sampler.New(p, v)
	require.NoError(t, err)
	return NewDataset(s.Events(), v)
}

func TestRenamingInvariance(t *testing.T) {
	renamed, warnings := vocab.Resolve(map[string]string{
		vocab.KeyCharacterT: "Tee",
		vocab.KeyCoffee:     "Espresso",
		vocab.KeyPotion:     "Elixir",
		vocab.KeyScrollMenu: "Tome",
	})
	require.Empty(t, warnings)

	a := sampled(t, vocab.Default()).Tables()
	b := sampled(t, renamed).Tables()
	require.Len(t, b, len(a))

	for i := range a {
		require.Equal(t, a[i].Columns, b[i].Columns, a[i].Name)
		require.Len(t, b[i].Rows, len(a[i].Rows), a[i].Name)
	}

	// by_users holds no display names at all.
	assert.Equal(t, a[2].Rows, b[2].Rows)

	questions := slices.Index(a[4].Columns, "question_started")
	for i := range a[4].Rows {
		assert.Equal(t, a[4].Rows[i][questions:], b[4].Rows[i][questions:])
	}
}

func TestRenamingSpecialCharacterKeepsOffsets(t *testing.T) {
	plain, warnings := vocab.Resolve(map[string]string{vocab.SpecialCharacterKey: "mi"})
	require.Empty(t, warnings)
	renamed, warnings := vocab.Resolve(map[string]string{
		vocab.SpecialCharacterKey: "mi",
		vocab.KeyCharacterMi:      "Mika",
	})
	require.Empty(t, warnings)

	a := sampled(t, plain).Processed()
	b := sampled(t, renamed).Processed()
	require.Len(t, b.Rows, len(a.Rows))
	require.NotEmpty(t, a.Rows)

	col := slices.Index(a.Columns, "cumulative_question_index")
	require.GreaterOrEqual(t, col, 0)
	for i := range a.Rows {
		assert.Equal(t, a.Rows[i][col], b.Rows[i][col], "row %d", i)
	}
}

func TestWriteCSV(t *testing.T) {
	tbl := NewTable("by_users", "a", "b")
	tbl.Append("1", "x,y")
	tbl.Append("", "z")
	path := filepath.Join(t.TempDir(), "csv", tbl.FileName())
	require.NoError(t, WriteCSV(path, tbl))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "x,y"}, {"", "z"}}, records)
	assert.Equal(t, "by_users_data.csv", tbl.FileName())
	assert.Equal(t, "processed_data.csv", NewTable(ProcessedName).FileName())
}
