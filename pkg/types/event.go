// Package types defines the event model shared by the sampler and the emitters.
package types

import "time"

// Event names as they appear in the raw export.
const (
	EventFirstOpen            = "first_open"
	EventSessionStart         = "session_start"
	EventStartingCurrencies   = "starting_currencies"
	EventQuestionStarted      = "question_started"
	EventQuestionCompleted    = "question_completed"
	EventAdRewarded           = "ad_rewarded"
	EventMenuOpened           = "menu_opened"
	EventSpendVirtualCurrency = "spend_virtual_currency"
	EventMiniGameStarted      = "mini_game_started"
	EventMiniGameCompleted    = "mini_game_completed"
	EventAdLoadFailed         = "ad_load_failed"
	EventAppException         = "app_exception"
	EventGameEnded            = "game_ended"
	EventAppRemove            = "app_remove"
)

// Param keys shared between the sampler and the derived tables.
const (
	ParamSessionID         = "ga_session_id"
	ParamSessionNumber     = "ga_session_number"
	ParamCharacterName     = "character_name"
	ParamCurrentTier       = "current_tier"
	ParamQuestionIndex     = "current_question_index"
	ParamAnsweredWrong     = "answered_wrong"
	ParamMenuName          = "menu_name"
	ParamCurrencyName      = "currency_name"
	ParamSpentAmount       = "spent_amount"
	ParamEarnedAmount      = "earned_amount"
	ParamWhereSpent        = "where_its_spent"
	ParamSpentTo           = "spent_to"
	ParamGold              = "gold"
	ParamMiniGame          = "mini_game_ri"
	ParamAdNetwork         = "ad_network"
	ParamAdUnitID          = "ad_unit_id"
	ParamAdInstance        = "ad_instance"
	ParamAdID              = "ad_id"
	ParamAdPlacement       = "ad_placement"
	ParamAdRewardType      = "ad_reward_type"
	ParamAdErrorCode       = "ad_error_code"
	ParamTutorialVideo     = "tutorial_video"
	ParamPreviousFirstOpen = "previous_first_open_count"
)

// ConsumableSpend is the spent_to value of a shop purchase; the purchased
// item itself travels in Event.ShopItem.
const ConsumableSpend = "Consumable Item"

// Device describes the user's handset.
type Device struct {
	Category               string
	OperatingSystem        string
	OperatingSystemVersion string
	Language               string
	LimitedAdTracking      string
	TimeZoneOffsetSeconds  int64
	BrandName              string
	ModelName              string
	MarketingName          string
}

// Geo is the user's location. Empty strings are exported as null.
type Geo struct {
	Country   string
	Continent string
	City      string
	Region    string
}

// AppInfo holds install details that do not change per session.
type AppInfo struct {
	ID            string
	InstallSource string
}

// Privacy holds consent flags.
type Privacy struct {
	AdsStorage         string
	AnalyticsStorage   string
	UsesTransientToken string
}

// UserContext is the immutable per-user state shared by all of a user's events.
type UserContext struct {
	Index        int
	PseudoID     string
	StreamID     string
	Platform     string
	StartVersion string
	FirstOpen    time.Time
	FirstOpenDay int

	Device  Device
	Geo     Geo
	AppInfo AppInfo
	Privacy Privacy

	// Characters holds the vocabulary keys of the characters unlocked for this user.
	Characters []string
}

// Event is a single synthetic interaction. Events are never mutated after
// the sampler yields them.
type Event struct {
	Seq  int64
	User *UserContext

	// SessionID is zero for events outside a session (first_open).
	SessionID     int64
	SessionNumber int

	Name string
	Time time.Time
	Day  int

	// Item is the primary vocabulary key the event refers to, or "".
	Item string
	// ShopItem is the vocabulary key of a purchased consumable, or "".
	ShopItem string

	AppVersion         string
	PreviousTime       time.Time
	ServerOffset       int64
	ServerDelaySeconds Value
	BatchEventIndex    int

	Params []Param
}

// Param returns the value stored under key.
func (e *Event) Param(key string) (Value, bool) {
	for _, p := range e.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return Value{}, false
}

// InSession reports whether the event belongs to a session.
func (e *Event) InSession() bool {
	return e.SessionID != 0
}

// TimestampMicros returns the event time in microseconds since the epoch.
func (e *Event) TimestampMicros() int64 {
	return e.Time.UnixMicro()
}
