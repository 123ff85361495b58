package raw

// FlattenName joins a nested field onto its parent with a double underscore.
func FlattenName(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "__" + child
}

// Field is one flattened column value. Value is nil, string, int64,
// float64 or bool.
type Field struct {
	Name  string
	Value any
}

// Flatten surfaces every scalar of rec as a double-underscore column in
// record order. Repeated key/value lists become <list>__<key> columns;
// empty structs and lists contribute nothing.
func Flatten(rec Record) []Field {
	fs := make([]Field, 0, 48)
	add := func(name string, v any) { fs = append(fs, Field{Name: name, Value: v}) }

	add("event_date", rec.EventDate)
	add("event_timestamp", rec.EventTimestamp)
	add("event_name", rec.EventName)
	add("event_previous_timestamp", rec.EventPreviousTimestamp)
	add("event_value_in_usd", deref(rec.EventValueInUSD))
	add("event_bundle_sequence_id", rec.EventBundleSequenceID)
	add("event_server_timestamp_offset", rec.EventServerTimestampOffset)
	add("user_id", deref(rec.UserID))
	add("user_pseudo_id", rec.UserPseudoID)
	add("user_first_touch_timestamp", rec.UserFirstTouchTimestamp)
	add("stream_id", rec.StreamID)
	add("platform", rec.Platform)
	add("is_active_user", rec.IsActiveUser)
	add("batch_event_index", int64(rec.BatchEventIndex))

	d := rec.Device
	add(FlattenName("device", "category"), d.Category)
	add(FlattenName("device", "operating_system"), d.OperatingSystem)
	add(FlattenName("device", "operating_system_version"), d.OperatingSystemVersion)
	add(FlattenName("device", "language"), d.Language)
	add(FlattenName("device", "is_limited_ad_tracking"), d.IsLimitedAdTracking)
	add(FlattenName("device", "time_zone_offset_seconds"), d.TimeZoneOffsetSeconds)
	add(FlattenName("device", "mobile_brand_name"), d.MobileBrandName)
	add(FlattenName("device", "mobile_model_name"), d.MobileModelName)
	add(FlattenName("device", "mobile_marketing_name"), d.MobileMarketingName)

	add(FlattenName("geo", "country"), deref(rec.Geo.Country))
	add(FlattenName("geo", "continent"), deref(rec.Geo.Continent))
	add(FlattenName("geo", "city"), deref(rec.Geo.City))
	add(FlattenName("geo", "region"), deref(rec.Geo.Region))

	add(FlattenName("app_info", "version"), rec.AppInfo.Version)
	add(FlattenName("app_info", "install_source"), deref(rec.AppInfo.InstallSource))
	add(FlattenName("app_info", "id"), rec.AppInfo.ID)

	add(FlattenName("privacy_info", "ads_storage"), rec.PrivacyInfo.AdsStorage)
	add(FlattenName("privacy_info", "analytics_storage"), rec.PrivacyInfo.AnalyticsStorage)
	add(FlattenName("privacy_info", "uses_transient_token"), rec.PrivacyInfo.UsesTransientToken)

	for _, p := range rec.EventParams {
		add(FlattenName("event_params", p.Key), p.Value.scalar())
	}
	for _, p := range rec.UserProperties {
		add(FlattenName("user_properties", p.Key), p.Value.scalar())
	}
	if rec.ShopConsumableItem != nil {
		add("shop_consumable_item", *rec.ShopConsumableItem)
	}
	return fs
}

func (v ParamValue) scalar() any {
	switch {
	case v.StringValue != nil:
		return *v.StringValue
	case v.IntValue != nil:
		return *v.IntValue
	case v.DoubleValue != nil:
		return *v.DoubleValue
	case v.FloatValue != nil:
		return *v.FloatValue
	default:
		return nil
	}
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// sqlType returns the SQLite storage class for a flattened value, or ""
// for null, which carries no type information.
func sqlType(v any) string {
	switch v.(type) {
	case string:
		return "TEXT"
	case int64, bool:
		return "INTEGER"
	case float64:
		return "REAL"
	default:
		return ""
	}
}
