package raw

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/nocsaren/GA-mock-to-html/internal/sampler"
	"github.com/nocsaren/GA-mock-to-html/internal/vocab"
	"github.com/nocsaren/GA-mock-to-html/pkg/types"
)

func testSampler(t *testing.T, users, days int) *sampler.Sampler {
	t.Helper()
	p := sampler.DefaultParams()
	p.Seed = 99
	p.Users = users
	p.Days = days
	s, err := sampler.New(p, vocab.Default())
	if err != nil {
		t.Fatalf("sampler.New failed: %v", err)
	}
	return s
}

func testEvent() types.Event {
	first := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	u := &types.UserContext{
		PseudoID:  "0123456789abcdef0123456789abcdef",
		StreamID:  "1234",
		Platform:  "ANDROID",
		FirstOpen: first,
		Device:    types.Device{Category: "mobile", OperatingSystem: "Android"},
		Geo:       types.Geo{Country: "Türkiye"},
	}
	return types.Event{
		Seq:           4,
		User:          u,
		SessionID:     first.Unix(),
		SessionNumber: 2,
		Name:          types.EventSpendVirtualCurrency,
		Time:          first.Add(90 * time.Second),
		AppVersion:    "1.0.6",
		ShopItem:      vocab.KeyPotion,
		Params: []types.Param{
			{Key: types.ParamSessionID, Value: types.Int(first.Unix())},
			{Key: types.ParamSpentTo, Value: types.String(types.ConsumableSpend)},
			{Key: types.ParamGold, Value: types.Double(12.5)},
			{Key: types.ParamCharacterName, Value: types.VocabRef(vocab.KeyCharacterMi)},
			{Key: types.ParamTutorialVideo, Value: types.Null()},
			{Key: "video_start", Value: types.Bool(true)},
		},
	}
}

func TestRecordBuilder_Build(t *testing.T) {
	v, _ := vocab.Resolve(map[string]string{vocab.KeyPotion: "Elixir"})
	rec := NewRecordBuilder(v).Build(testEvent())

	if rec.EventDate != "20250102" {
		t.Errorf("expected event_date 20250102, got %s", rec.EventDate)
	}
	if rec.EventBundleSequenceID != 5 {
		t.Errorf("expected bundle sequence 5, got %d", rec.EventBundleSequenceID)
	}
	if rec.ShopConsumableItem == nil || *rec.ShopConsumableItem != "Elixir" {
		t.Errorf("expected shop item to use the display name, got %v", rec.ShopConsumableItem)
	}
	if rec.Geo.City != nil {
		t.Errorf("expected null city, got %q", *rec.Geo.City)
	}

	byKey := map[string]ParamValue{}
	for _, p := range rec.EventParams {
		byKey[p.Key] = p.Value
	}
	if v := byKey[types.ParamGold]; v.DoubleValue == nil || *v.DoubleValue != 12.5 {
		t.Errorf("expected gold in double_value")
	}
	if v := byKey[types.ParamCharacterName]; v.StringValue == nil || *v.StringValue != "mi" {
		t.Errorf("expected character name resolved to display string")
	}
	if v := byKey["video_start"]; v.StringValue == nil || *v.StringValue != "true" {
		t.Errorf("expected boolean rendered as string")
	}
	if v := byKey[types.ParamTutorialVideo]; v != (ParamValue{}) {
		t.Errorf("expected null param, got %+v", v)
	}

	if len(rec.UserProperties) != 2 || rec.UserProperties[1].Value.IntValue == nil || *rec.UserProperties[1].Value.IntValue != 2 {
		t.Errorf("unexpected user properties: %+v", rec.UserProperties)
	}
}

func TestRecord_JSONShape(t *testing.T) {
	rec := NewRecordBuilder(vocab.Default()).Build(testEvent())
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"event_date", "user_id", "device", "geo", "items", "user_ltv", "shop_consumable_item"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %s", key)
		}
	}
	if string(m["user_id"]) != "null" {
		t.Errorf("expected null user_id, got %s", m["user_id"])
	}
	if string(m["items"]) != "[]" {
		t.Errorf("expected empty items, got %s", m["items"])
	}
	if string(m["user_ltv"]) != "{}" {
		t.Errorf("expected empty user_ltv, got %s", m["user_ltv"])
	}
	// Field order follows the export's columns.
	if !bytes.HasPrefix(data, []byte(`{"event_date":`)) {
		t.Errorf("expected event_date first, got %s", data[:20])
	}

	var gold map[string]any
	for _, p := range rec.EventParams {
		if p.Key == types.ParamGold {
			b, _ := json.Marshal(p.Value)
			_ = json.Unmarshal(b, &gold)
		}
	}
	if len(gold) != 4 || gold["string_value"] != nil || gold["double_value"] != 12.5 {
		t.Errorf("expected all four value fields, got %v", gold)
	}
}

func TestWriteJSONL(t *testing.T) {
	dir := t.TempDir()
	s := testSampler(t, 4, 3)
	b := NewRecordBuilder(vocab.Default())

	pathA := filepath.Join(dir, "a", JSONLName)
	pathB := filepath.Join(dir, "b", JSONLName)
	rows, err := WriteJSONL(pathA, s.Events(), b)
	if err != nil {
		t.Fatalf("WriteJSONL failed: %v", err)
	}
	if _, err := WriteJSONL(pathB, s.Events(), b); err != nil {
		t.Fatalf("WriteJSONL failed: %v", err)
	}

	a, _ := os.ReadFile(pathA)
	bb, _ := os.ReadFile(pathB)
	if !bytes.Equal(a, bb) {
		t.Fatal("expected identical output for identical inputs")
	}

	f, err := os.Open(pathA)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	var lines int64
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("line %d is not a record: %v", lines, err)
		}
		lines++
	}
	if lines != rows || rows == 0 {
		t.Errorf("expected %d lines, got %d", rows, lines)
	}
}

func TestWriteJSONL_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), JSONLName)
	rows, err := WriteJSONL(path, testSampler(t, 0, 3).Events(), NewRecordBuilder(vocab.Default()))
	if err != nil {
		t.Fatalf("WriteJSONL failed: %v", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
	if rows != 0 || fi.Size() != 0 {
		t.Errorf("expected empty file, got %d rows and %d bytes", rows, fi.Size())
	}
}

func TestFlattenName(t *testing.T) {
	tests := []struct {
		parent, child, want string
	}{
		{"", "event_name", "event_name"},
		{"device", "category", "device__category"},
		{"event_params", "ga_session_id", "event_params__ga_session_id"},
	}
	for _, tt := range tests {
		if got := FlattenName(tt.parent, tt.child); got != tt.want {
			t.Errorf("FlattenName(%q, %q) = %q, want %q", tt.parent, tt.child, got, tt.want)
		}
	}
}

func TestFlatten(t *testing.T) {
	rec := NewRecordBuilder(vocab.Default()).Build(testEvent())
	fields := Flatten(rec)

	values := map[string]any{}
	var names []string
	for _, f := range fields {
		values[f.Name] = f.Value
		names = append(names, f.Name)
	}

	if names[0] != "event_date" {
		t.Errorf("expected event_date first, got %s", names[0])
	}
	if got := values["event_params__gold"]; got != 12.5 {
		t.Errorf("expected gold 12.5, got %v", got)
	}
	if got := values["geo__country"]; got != "Türkiye" {
		t.Errorf("expected country, got %v", got)
	}
	if got, ok := values["geo__city"]; !ok || got != nil {
		t.Errorf("expected null city column, got %v", got)
	}
	if got := values["user_properties__ga_session_number"]; got != int64(2) {
		t.Errorf("expected session number 2, got %v", got)
	}
	if got := values["shop_consumable_item"]; got != "Potions" {
		t.Errorf("expected shop item, got %v", got)
	}
	if slices.Contains(names, "items") || slices.Contains(names, "user_ltv") {
		t.Error("empty structures must not produce columns")
	}
}

func TestSQLType(t *testing.T) {
	tests := []struct {
		v    any
		want string
	}{
		{"x", "TEXT"},
		{int64(1), "INTEGER"},
		{true, "INTEGER"},
		{1.5, "REAL"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := sqlType(tt.v); got != tt.want {
			t.Errorf("sqlType(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
