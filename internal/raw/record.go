// Package raw renders events in the nested shape of a GA4 BigQuery export.
package raw

import (
	"github.com/nocsaren/GA-mock-to-html/internal/vocab"
	"github.com/nocsaren/GA-mock-to-html/pkg/types"
)

// ParamValue mirrors the GA4 value struct. Exactly one field is non-nil,
// or none for a null value.
type ParamValue struct {
	StringValue *string  `json:"string_value"`
	IntValue    *int64   `json:"int_value"`
	FloatValue  *float64 `json:"float_value"`
	DoubleValue *float64 `json:"double_value"`
}

// ParamEntry is one element of event_params or user_properties.
type ParamEntry struct {
	Key   string     `json:"key"`
	Value ParamValue `json:"value"`
}

// Device is the record's device block.
type Device struct {
	Category               string  `json:"category"`
	OperatingSystem        string  `json:"operating_system"`
	OperatingSystemVersion string  `json:"operating_system_version"`
	Language               string  `json:"language"`
	IsLimitedAdTracking    string  `json:"is_limited_ad_tracking"`
	TimeZoneOffsetSeconds  int64   `json:"time_zone_offset_seconds"`
	MobileBrandName        string  `json:"mobile_brand_name"`
	MobileModelName        string  `json:"mobile_model_name"`
	MobileMarketingName    string  `json:"mobile_marketing_name"`
	AdvertisingID          *string `json:"advertising_id"`
}

// Geo is the record's geo block; unknown parts are null.
type Geo struct {
	Country   *string `json:"country"`
	Continent *string `json:"continent"`
	City      *string `json:"city"`
	Region    *string `json:"region"`
}

// AppInfo identifies the app build that logged the event.
type AppInfo struct {
	Version       string  `json:"version"`
	InstallSource *string `json:"install_source"`
	ID            string  `json:"id"`
}

// TrafficSource is the user's acquisition source.
type TrafficSource struct {
	Name   *string `json:"name"`
	Medium *string `json:"medium"`
	Source *string `json:"source"`
}

// PrivacyInfo holds the consent flags.
type PrivacyInfo struct {
	AdsStorage         string `json:"ads_storage"`
	AnalyticsStorage   string `json:"analytics_storage"`
	UsesTransientToken string `json:"uses_transient_token"`
}

// emptyObject marshals as {}.
type emptyObject struct{}

// Record is one exported event. Field order is the export's column order.
type Record struct {
	EventDate                  string        `json:"event_date"`
	EventTimestamp             int64         `json:"event_timestamp"`
	EventName                  string        `json:"event_name"`
	EventPreviousTimestamp     int64         `json:"event_previous_timestamp"`
	EventValueInUSD            *float64      `json:"event_value_in_usd"`
	EventBundleSequenceID      int64         `json:"event_bundle_sequence_id"`
	EventServerTimestampOffset int64         `json:"event_server_timestamp_offset"`
	UserID                     *string       `json:"user_id"`
	UserPseudoID               string        `json:"user_pseudo_id"`
	UserFirstTouchTimestamp    int64         `json:"user_first_touch_timestamp"`
	StreamID                   string        `json:"stream_id"`
	Platform                   string        `json:"platform"`
	IsActiveUser               bool          `json:"is_active_user"`
	BatchEventIndex            int           `json:"batch_event_index"`
	BatchPageID                *int64        `json:"batch_page_id"`
	BatchOrderingID            *int64        `json:"batch_ordering_id"`
	Device                     Device        `json:"device"`
	Geo                        Geo           `json:"geo"`
	AppInfo                    AppInfo       `json:"app_info"`
	TrafficSource              TrafficSource `json:"traffic_source"`
	PrivacyInfo                PrivacyInfo   `json:"privacy_info"`
	UserLTV                    emptyObject   `json:"user_ltv"`
	EventParams                []ParamEntry  `json:"event_params"`
	UserProperties             []ParamEntry  `json:"user_properties"`
	Items                      []emptyObject `json:"items"`
	ItemParams                 []emptyObject `json:"item_params"`
	EventDimensions            emptyObject   `json:"event_dimensions"`
	Ecommerce                  emptyObject   `json:"ecommerce"`
	CollectedTrafficSource     emptyObject   `json:"collected_traffic_source"`
	ShopConsumableItem         *string       `json:"shop_consumable_item,omitempty"`
}

// RecordBuilder converts events into records, resolving vocabulary
// references to display strings.
type RecordBuilder struct {
	vocab *vocab.Vocabulary
}

// NewRecordBuilder creates a builder for v.
func NewRecordBuilder(v *vocab.Vocabulary) *RecordBuilder {
	return &RecordBuilder{vocab: v}
}

// Build renders e.
func (b *RecordBuilder) Build(e types.Event) Record {
	u := e.User
	rec := Record{
		EventDate:                  e.Time.UTC().Format("20060102"),
		EventTimestamp:             e.TimestampMicros(),
		EventName:                  e.Name,
		EventPreviousTimestamp:     e.PreviousTime.UnixMicro(),
		EventBundleSequenceID:      e.Seq + 1,
		EventServerTimestampOffset: e.ServerOffset,
		UserPseudoID:               u.PseudoID,
		UserFirstTouchTimestamp:    u.FirstOpen.UnixMicro(),
		StreamID:                   u.StreamID,
		Platform:                   u.Platform,
		IsActiveUser:               true,
		BatchEventIndex:            e.BatchEventIndex,
		Device: Device{
			Category:               u.Device.Category,
			OperatingSystem:        u.Device.OperatingSystem,
			OperatingSystemVersion: u.Device.OperatingSystemVersion,
			Language:               u.Device.Language,
			IsLimitedAdTracking:    u.Device.LimitedAdTracking,
			TimeZoneOffsetSeconds:  u.Device.TimeZoneOffsetSeconds,
			MobileBrandName:        u.Device.BrandName,
			MobileModelName:        u.Device.ModelName,
			MobileMarketingName:    u.Device.MarketingName,
		},
		Geo: Geo{
			Country:   nullable(u.Geo.Country),
			Continent: nullable(u.Geo.Continent),
			City:      nullable(u.Geo.City),
			Region:    nullable(u.Geo.Region),
		},
		AppInfo: AppInfo{
			Version:       e.AppVersion,
			InstallSource: nullable(u.AppInfo.InstallSource),
			ID:            u.AppInfo.ID,
		},
		PrivacyInfo: PrivacyInfo{
			AdsStorage:         u.Privacy.AdsStorage,
			AnalyticsStorage:   u.Privacy.AnalyticsStorage,
			UsesTransientToken: u.Privacy.UsesTransientToken,
		},
		EventParams: make([]ParamEntry, 0, len(e.Params)),
		UserProperties: []ParamEntry{
			{Key: "first_open_time", Value: b.value(types.Int(u.FirstOpen.UnixMilli()))},
			{Key: types.ParamSessionNumber, Value: b.value(types.Int(int64(max(e.SessionNumber, 1))))},
		},
		Items:      []emptyObject{},
		ItemParams: []emptyObject{},
	}
	for _, p := range e.Params {
		rec.EventParams = append(rec.EventParams, ParamEntry{Key: p.Key, Value: b.value(p.Value)})
	}
	if e.ShopItem != "" {
		shop := b.vocab.Display(e.ShopItem)
		rec.ShopConsumableItem = &shop
	}
	return rec
}

func (b *RecordBuilder) value(v types.Value) ParamValue {
	switch v.Kind {
	case types.KindInt:
		i := v.Int
		return ParamValue{IntValue: &i}
	case types.KindDouble:
		f := v.Float
		return ParamValue{DoubleValue: &f}
	case types.KindNull:
		return ParamValue{}
	default:
		// Strings, booleans ("true"/"false") and vocabulary references.
		s := v.Format(b.vocab.Display)
		return ParamValue{StringValue: &s}
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
