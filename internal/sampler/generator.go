package sampler

import (
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nocsaren/GA-mock-to-html/internal/vocab"
	"github.com/nocsaren/GA-mock-to-html/pkg/types"
)

const (
	dayLength = 24 * time.Hour

	appID = "com.GlyphexGames.EmojiOracle"

	// Latest minute of the day a session may start; leaves room for the
	// longest session so events never spill into the next day.
	lastStartMinute = 1423
	firstOpenWindow = 1200

	minSessionSeconds = 30
	maxSessionSeconds = 900
)

var (
	adNetworks       = []string{"admob", "unity", "ironSource", ""}
	adUnits          = []string{"rewarded_1", "rewarded_2", ""}
	adInstances      = []string{"instance_a", "instance_b", ""}
	adErrorCodes     = []string{"0", "1", "2", "timeout"}
	spendLocations   = []string{"board", "board_item", "shop"}
	languages        = []string{"en-us", "tr-tr"}
	yesNo            = []string{"Yes", "No"}
	timeZoneOffsets  = []int64{-18000, 0, 10800}
	iosVersions      = []string{"16", "17", "18"}
	androidVersions  = []string{"Android 14", "Android 15", "Android 16"}
	androidHandsets  = [][3]string{{"Samsung", "Galaxy", "Galaxy S24"}, {"Google", "Pixel", "Pixel 8"}}
	iosHandsets      = [][3]string{{"Apple", "iPhone", "iPhone 15"}, {"Apple", "iPhone", "iPhone 16"}}
	citiesByCountry  = map[string][]string{"United States": {"San Antonio", "New York", ""}, "Türkiye": {"İstanbul", "Ankara", ""}}
	regionsByCountry = map[string][]string{"United States": {"Texas", "NY", ""}, "Türkiye": {"Marmara", "İç Anadolu", ""}}
)

// generator holds the state for synthesizing one user's events.
type generator struct {
	params *Params
	vocab  *vocab.Vocabulary
	src    *rand.ChaCha8
	r      *rand.Rand

	user       *types.UserContext
	events     []types.Event
	versionIdx int
	sessionNum int
	sessionIDs map[int64]bool
}

// session is the per-session state stamped onto in-session events.
type session struct {
	id      int64
	number  int
	day     int
	start   time.Time
	seconds int
	version string
}

func (g *generator) dayStart(day int) time.Time {
	return g.params.StartDate.Add(time.Duration(day) * dayLength)
}

func (g *generator) choose(options []string) string {
	return options[g.r.IntN(len(options))]
}

func (g *generator) chance(p float64) bool {
	return g.r.Float64() < p
}

func (g *generator) hex(n int) string {
	const alphabet = "0123456789abcdef"
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[g.r.IntN(len(alphabet))])
	}
	return b.String()
}

func (g *generator) newUser(index int) *types.UserContext {
	p := g.params
	// The pseudo id is drawn first so it only depends on (seed, index).
	id := uuid.Must(uuid.NewRandomFromReader(g.src))

	u := &types.UserContext{
		Index:    index,
		PseudoID: strings.ReplaceAll(id.String(), "-", ""),
		StreamID: strconv.FormatInt(10_000_000_000+g.r.Int64N(89_999_999_999), 10),
		Platform: g.choose(p.OperatingSystems),
	}
	country := g.choose(p.Countries)
	g.versionIdx = g.r.IntN(len(p.AppVersions))
	u.StartVersion = p.AppVersions[g.versionIdx]

	u.FirstOpenDay = g.r.IntN(p.Days)
	u.FirstOpen = g.dayStart(u.FirstOpenDay).
		Add(time.Duration(g.r.IntN(firstOpenWindow)) * time.Minute).
		Add(time.Duration(g.r.IntN(60)) * time.Second)

	handset := androidHandsets[g.r.IntN(len(androidHandsets))]
	osVersion := g.choose(androidVersions)
	installSource := "com.android.vending"
	if u.Platform == "IOS" {
		handset = iosHandsets[g.r.IntN(len(iosHandsets))]
		osVersion = g.choose(iosVersions)
		installSource = "apps.apple.com"
	}
	if g.chance(0.1) {
		installSource = ""
	}
	u.Device = types.Device{
		Category:               "mobile",
		OperatingSystem:        u.Platform,
		OperatingSystemVersion: osVersion,
		Language:               g.choose(languages),
		LimitedAdTracking:      g.choose(yesNo),
		TimeZoneOffsetSeconds:  timeZoneOffsets[g.r.IntN(len(timeZoneOffsets))],
		BrandName:              handset[0],
		ModelName:              handset[1],
		MarketingName:          handset[2],
	}

	u.Geo = types.Geo{Country: country, Continent: continentOf(country)}
	if cities, ok := citiesByCountry[country]; ok {
		u.Geo.City = g.choose(cities)
		u.Geo.Region = g.choose(regionsByCountry[country])
	}
	u.AppInfo = types.AppInfo{ID: appID, InstallSource: installSource}
	u.Privacy = types.Privacy{
		AdsStorage:         g.choose(yesNo),
		AnalyticsStorage:   g.choose(yesNo),
		UsesTransientToken: "No",
	}

	chars := g.vocab.Keys(vocab.ClassCharacter)
	if len(chars) > 0 {
		perm := g.r.Perm(len(chars))[:1+g.r.IntN(len(chars))]
		sort.Ints(perm)
		for _, i := range perm {
			u.Characters = append(u.Characters, chars[i])
		}
	}
	return u
}

func continentOf(country string) string {
	if country == "United States" {
		return "Americas"
	}
	return "Europe"
}

func (g *generator) run() {
	p := g.params
	u := g.user
	g.sessionIDs = make(map[int64]bool)

	g.firstOpen()

	for day := u.FirstOpenDay; day < p.Days; day++ {
		if day != u.FirstOpenDay && !g.chance(p.DailyActivity) {
			continue
		}
		earliest := 0
		if day == u.FirstOpenDay {
			earliest = int(u.FirstOpen.Sub(g.dayStart(day))/time.Minute) + 1
		}

		n := poisson(g.r, p.SessionsPerDay)
		if n < 1 {
			n = 1
		}
		starts := make([]int, n)
		for i := range starts {
			starts[i] = earliest + g.r.IntN(lastStartMinute-earliest)
		}
		sort.Ints(starts)

		var prevEnd time.Time
		for _, minute := range starts {
			start := g.dayStart(day).
				Add(time.Duration(minute) * time.Minute).
				Add(time.Duration(g.r.IntN(60)) * time.Second)
			if !prevEnd.IsZero() && !start.After(prevEnd) {
				start = prevEnd.Add(time.Minute)
			}
			if start.Sub(g.dayStart(day)) > lastStartMinute*time.Minute {
				break
			}
			s := g.newSession(day, start)
			if removed := g.playSession(s); removed {
				return
			}
			prevEnd = s.start.Add(time.Duration(s.seconds) * time.Second)
		}
	}
}

func (g *generator) firstOpen() {
	videoStart := g.chance(0.75)
	params := []types.Param{
		{Key: "pp_accepted", Value: types.Bool(g.chance(0.85))},
		{Key: "video_start", Value: types.Bool(videoStart)},
		{Key: "video_finished", Value: types.Bool(videoStart && g.chance(0.7))},
		{Key: types.ParamTutorialVideo, Value: types.Null()},
		{Key: types.ParamPreviousFirstOpen, Value: types.Int(0)},
	}
	if g.chance(0.55) {
		params[3].Value = types.String("tutorial_video")
	}
	g.add(nil, types.Event{
		Name:       types.EventFirstOpen,
		Time:       g.user.FirstOpen,
		Day:        g.user.FirstOpenDay,
		AppVersion: g.user.StartVersion,
		Params:     params,
	})
}

func (g *generator) newSession(day int, start time.Time) *session {
	g.sessionNum++
	id := start.Unix()
	for g.sessionIDs[id] {
		id++
	}
	g.sessionIDs[id] = true

	if g.versionIdx < len(g.params.AppVersions)-1 && g.chance(g.params.Probabilities.AppUpdate) {
		g.versionIdx++
	}
	return &session{
		id:      id,
		number:  g.sessionNum,
		day:     day,
		start:   start,
		seconds: minSessionSeconds + g.r.IntN(maxSessionSeconds-minSessionSeconds),
		version: g.params.AppVersions[g.versionIdx],
	}
}

// playSession emits one session's events and reports whether the app was removed.
func (g *generator) playSession(s *session) bool {
	p := g.params
	pr := p.Probabilities
	at := func(d time.Duration) time.Time { return s.start.Add(d) }

	engaged := "0"
	if g.chance(0.5) {
		engaged = "1"
	}
	g.add(s, types.Event{Name: types.EventSessionStart, Time: s.start, Params: []types.Param{
		{Key: "firebase_event_origin", Value: types.String("auto")},
		{Key: "session_engaged", Value: types.String(engaged)},
		{Key: "entered", Value: types.Bool(g.chance(0.6))},
		{Key: "shown", Value: types.Bool(g.chance(0.5))},
		{Key: "opened", Value: types.Bool(g.chance(0.4))},
		{Key: "return", Value: types.Bool(g.chance(0.25))},
		{Key: "closed", Value: types.Bool(g.chance(0.35))},
		{Key: "drag", Value: types.Bool(g.chance(0.45))},
	}})

	g.add(s, types.Event{Name: types.EventStartingCurrencies, Time: at(time.Second), Params: []types.Param{
		{Key: types.ParamGold, Value: types.Double(float64(g.r.IntN(1200)))},
	}})

	questions := 1 + g.r.IntN(7)
	for q := 0; q < questions; q++ {
		g.question(s, at(time.Duration(5+g.r.IntN(max(s.seconds-5, 5)))*time.Second))
	}

	if g.chance(pr.Wheel) {
		g.add(s, types.Event{Name: types.EventMiniGameStarted, Time: at(2 * time.Second), Item: vocab.KeyWheelImpression,
			Params: []types.Param{{Key: types.ParamMiniGame, Value: types.VocabRef(vocab.KeyWheelImpression)}}})
		if g.chance(pr.WheelSkip) {
			g.add(s, types.Event{Name: types.EventMiniGameCompleted, Time: at(3 * time.Second), Item: vocab.KeyWheelSkip,
				Params: []types.Param{{Key: types.ParamMiniGame, Value: types.VocabRef(vocab.KeyWheelSkip)}}})
		}
	}

	if g.chance(pr.AdLoadFailed) {
		g.add(s, types.Event{
			Name: types.EventAdLoadFailed,
			Time: at(6 * time.Second),
			Params: []types.Param{
				{Key: types.ParamAdErrorCode, Value: types.String(g.choose(adErrorCodes))},
				{Key: types.ParamAdNetwork, Value: g.optional(adNetworks[:2])},
				{Key: types.ParamAdInstance, Value: g.optional(adInstances)},
				{Key: types.ParamAdID, Value: types.String(g.hex(12))},
			},
			ServerDelaySeconds: types.Double(g.r.Float64() * 2),
		})
	}

	if g.chance(pr.AppException) {
		g.add(s, types.Event{
			Name: types.EventAppException,
			Time: at(7 * time.Second),
			Params: []types.Param{
				{Key: "fatal", Value: types.Bool(g.chance(0.5))},
				{Key: "firebase_error", Value: types.String("NullPointer")},
			},
			ServerDelaySeconds: types.Double(g.r.Float64() * 5),
		})
	}

	end := at(time.Duration(s.seconds) * time.Second)
	if g.chance(pr.GameEnded) {
		g.add(s, types.Event{Name: types.EventGameEnded, Time: end.Add(-3 * time.Second)})
	}
	if g.chance(pr.AppRemoved) {
		g.add(s, types.Event{Name: types.EventAppRemove, Time: end})
		return true
	}
	return false
}

// question emits the question loop events anchored at t.
func (g *generator) question(s *session, t time.Time) {
	pr := g.params.Probabilities

	character := weightedPick(g.r, g.user.Characters, g.params.Weights)
	tier := g.params.Tiers[g.r.IntN(len(g.params.Tiers))]
	index := 1 + g.r.IntN(g.params.QuestionsPerTier)

	charValue := types.Null()
	if character != "" {
		charValue = types.VocabRef(character)
	}
	ctx := func(extra ...types.Param) []types.Param {
		return append(extra,
			types.Param{Key: types.ParamCharacterName, Value: charValue},
			types.Param{Key: types.ParamCurrentTier, Value: types.Int(int64(tier))},
			types.Param{Key: types.ParamQuestionIndex, Value: types.Int(int64(index))},
		)
	}

	g.add(s, types.Event{Name: types.EventQuestionStarted, Time: t, Item: character, Params: ctx()})
	g.add(s, types.Event{Name: types.EventQuestionCompleted, Time: t.Add(3 * time.Second), Item: character,
		Params: append(ctx(), types.Param{Key: types.ParamAnsweredWrong, Value: types.Int(int64(g.r.IntN(3)))})})

	if g.chance(pr.AdRewarded) {
		g.add(s, types.Event{Name: types.EventAdRewarded, Time: t.Add(2 * time.Second), Item: character, Params: ctx(
			types.Param{Key: types.ParamAdNetwork, Value: g.optional(adNetworks)},
			types.Param{Key: types.ParamAdUnitID, Value: g.optional(adUnits)},
			types.Param{Key: types.ParamAdInstance, Value: g.optional(adInstances)},
			types.Param{Key: types.ParamAdID, Value: types.String(g.hex(12))},
		)})
	}

	if g.chance(pr.MenuOpened) {
		g.add(s, types.Event{Name: types.EventMenuOpened, Time: t.Add(time.Second), Item: vocab.KeyScrollMenu, Params: ctx(
			types.Param{Key: types.ParamMenuName, Value: types.VocabRef(vocab.KeyScrollMenu)},
		)})
	}

	if g.chance(pr.EnergySpend) {
		if item := weightedPick(g.r, g.vocab.Keys(vocab.ClassEnergy), g.params.Weights); item != "" {
			g.add(s, types.Event{Name: types.EventSpendVirtualCurrency, Time: t.Add(4 * time.Second), Item: item, Params: ctx(
				types.Param{Key: types.ParamCurrencyName, Value: types.String("Gold")},
				types.Param{Key: types.ParamSpentAmount, Value: types.Double(float64(10 + g.r.IntN(110)))},
				types.Param{Key: types.ParamWhereSpent, Value: types.String(g.choose(spendLocations))},
				types.Param{Key: types.ParamSpentTo, Value: types.VocabRef(item)},
			)})
		}
	}

	if g.chance(pr.ConsumableSpend) {
		if item := weightedPick(g.r, g.vocab.Keys(vocab.ClassConsumable), g.params.Weights); item != "" {
			g.add(s, types.Event{Name: types.EventSpendVirtualCurrency, Time: t.Add(5 * time.Second), Item: item, ShopItem: item, Params: ctx(
				types.Param{Key: types.ParamCurrencyName, Value: types.String("Gold")},
				types.Param{Key: types.ParamSpentAmount, Value: types.Double(float64(100 + g.r.IntN(400)))},
				types.Param{Key: types.ParamWhereSpent, Value: types.String("shop")},
				types.Param{Key: types.ParamSpentTo, Value: types.String(types.ConsumableSpend)},
			)})
		}
	}
}

// optional draws from options where "" stands for a missing value.
func (g *generator) optional(options []string) types.Value {
	v := g.choose(options)
	if v == "" {
		return types.Null()
	}
	return types.String(v)
}

// add stamps the shared per-event fields and records e. A nil session marks
// an event outside any session.
func (g *generator) add(s *session, e types.Event) {
	e.User = g.user
	e.PreviousTime = e.Time.Add(-time.Duration(g.r.IntN(60)) * time.Second)
	e.ServerOffset = g.r.Int64N(5000)
	e.BatchEventIndex = 1 + g.r.IntN(4)

	if s != nil {
		e.SessionID = s.id
		e.SessionNumber = s.number
		e.Day = s.day
		e.AppVersion = s.version
		e.Params = append([]types.Param{
			{Key: types.ParamSessionID, Value: types.Int(s.id)},
			{Key: types.ParamSessionNumber, Value: types.Int(int64(s.number))},
		}, e.Params...)
	}
	g.events = append(g.events, e)
}
