// Package vocab holds the canonical vocabulary of characters and items and
// resolves configured display names onto it.
package vocab

import (
	"fmt"
	"sort"
	"strings"
)

// Class groups vocabulary entries that are drawn from together.
type Class string

const (
	ClassCharacter  Class = "character"
	ClassEnergy     Class = "energy"
	ClassConsumable Class = "consumable"
	ClassMenu       Class = "menu"
	ClassWheel      Class = "wheel"
)

// Well-known keys.
const (
	KeyCharacterT      = "character_t"
	KeyCharacterMi     = "character_mi"
	KeyCharacterLa     = "character_la"
	KeyCharacterSo     = "character_so"
	KeyAliCin          = "alicin"
	KeyCoffee          = "coffee"
	KeyCauldron        = "cauldron"
	KeyScrollMenu      = "scroll_menu"
	KeyPotion          = "potion"
	KeyIncense         = "incense"
	KeyAmulet          = "amulet"
	KeyWheelImpression = "wheel_impression"
	KeyWheelSkip       = "wheel_skip"

	// SpecialCharacterKey is the override key selecting the character whose
	// questions use the shorter tier offsets.
	SpecialCharacterKey = "special_character"
)

// Entry is a single vocabulary item.
type Entry struct {
	Key     string
	Class   Class
	Default string
	Display string

	// Label is the fixed stem used for engineered column names that predate
	// key-based naming (Potions_Bought, AliCin_Used).
	Label string
}

var defaults = []Entry{
	{Key: KeyCharacterT, Class: ClassCharacter, Default: "t", Label: "t"},
	{Key: KeyCharacterMi, Class: ClassCharacter, Default: "mi", Label: "mi"},
	{Key: KeyCharacterLa, Class: ClassCharacter, Default: "la", Label: "la"},
	{Key: KeyCharacterSo, Class: ClassCharacter, Default: "so", Label: "so"},
	{Key: KeyAliCin, Class: ClassEnergy, Default: "AliCin", Label: "AliCin"},
	{Key: KeyCoffee, Class: ClassEnergy, Default: "Coffee", Label: "Coffee"},
	{Key: KeyCauldron, Class: ClassEnergy, Default: "Cauldron", Label: "Cauldron"},
	{Key: KeyScrollMenu, Class: ClassMenu, Default: "Scroll Menu", Label: "Scroll"},
	{Key: KeyPotion, Class: ClassConsumable, Default: "Potion", Label: "Potions"},
	{Key: KeyIncense, Class: ClassConsumable, Default: "Incense", Label: "Incenses"},
	{Key: KeyAmulet, Class: ClassConsumable, Default: "Amulet", Label: "Amulets"},
	{Key: KeyWheelImpression, Class: ClassWheel, Default: "Daily Spin", Label: "Wheel_Impression"},
	{Key: KeyWheelSkip, Class: ClassWheel, Default: "spin_skipped", Label: "Wheel_Skips"},
}

// legacyAliases maps the flat field names of older config files onto keys.
var legacyAliases = map[string]string{
	"alicin_name":                   KeyAliCin,
	"coffee_name":                   KeyCoffee,
	"cauldron_name":                 KeyCauldron,
	"scroll_menu_name":              KeyScrollMenu,
	"potion_name":                   KeyPotion,
	"incense_name":                  KeyIncense,
	"amulet_name":                   KeyAmulet,
	"wheel_impression_ri":           KeyWheelImpression,
	"wheel_skip_ri":                 KeyWheelSkip,
	"special_character_for_offsets": SpecialCharacterKey,
}

// CanonicalKey maps a legacy field name onto its key. Other names are
// returned unchanged.
func CanonicalKey(name string) string {
	if key, ok := legacyAliases[name]; ok {
		return key
	}
	return name
}

// Vocabulary is the effective key to display mapping for a run.
// It is immutable once resolved.
type Vocabulary struct {
	entries []Entry
	byKey   map[string]int
	special string
}

// Default returns the built-in vocabulary.
func Default() *Vocabulary {
	v, _ := Resolve(nil)
	return v
}

// Resolve applies display-name overrides keyed by vocabulary key (or a legacy
// field name) to the default vocabulary. Problems with the overrides are
// returned as warnings; resolution itself never fails.
func Resolve(overrides map[string]string) (*Vocabulary, []Warning) {
	v := &Vocabulary{
		entries: make([]Entry, len(defaults)),
		byKey:   make(map[string]int, len(defaults)),
		special: KeyCharacterT,
	}
	for i, e := range defaults {
		e.Display = e.Default
		v.entries[i] = e
		v.byKey[e.Key] = i
	}

	var warnings []Warning
	var specialRaw string
	hasSpecial := false

	// Sorted iteration keeps warning order stable.
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := overrides[name]
		key := CanonicalKey(name)

		if key == SpecialCharacterKey {
			specialRaw, hasSpecial = value, true
			continue
		}

		idx, ok := v.byKey[key]
		if !ok {
			warnings = append(warnings, Warning{
				Kind:    WarningUnknownKey,
				Key:     name,
				Message: fmt.Sprintf("unknown vocabulary key %q ignored", name),
			})
			continue
		}
		if strings.TrimSpace(value) == "" {
			warnings = append(warnings, Warning{
				Kind:    WarningEmptyValue,
				Key:     key,
				Message: fmt.Sprintf("empty display name for %q, keeping %q", key, v.entries[idx].Default),
			})
			continue
		}
		v.entries[idx].Display = value
	}

	if hasSpecial {
		if key, ok := v.characterKey(specialRaw); ok {
			v.special = key
		} else {
			warnings = append(warnings, Warning{
				Kind:    WarningUnknownKey,
				Key:     SpecialCharacterKey,
				Message: fmt.Sprintf("special character %q is not a known character, keeping %q", specialRaw, v.special),
			})
		}
	}

	warnings = append(warnings, v.collisions()...)
	return v, warnings
}

// characterKey accepts either a character key or a character's default
// display name. Renamed displays are not matched, so renaming a character
// never moves the special character.
func (v *Vocabulary) characterKey(s string) (string, bool) {
	if idx, ok := v.byKey[s]; ok && v.entries[idx].Class == ClassCharacter {
		return s, true
	}
	for _, e := range v.entries {
		if e.Class == ClassCharacter && e.Default == s {
			return e.Key, true
		}
	}
	return "", false
}

// collisions reports keys sharing a display string. Both keys stay in the
// vocabulary; only embedded strings become ambiguous.
func (v *Vocabulary) collisions() []Warning {
	seen := make(map[string]string, len(v.entries))
	var out []Warning
	for _, e := range v.entries {
		if first, ok := seen[e.Display]; ok {
			out = append(out, Warning{
				Kind:    WarningCollision,
				Key:     e.Key,
				Message: fmt.Sprintf("display name %q shared by %q and %q", e.Display, first, e.Key),
			})
			continue
		}
		seen[e.Display] = e.Key
	}
	return out
}

// Display returns the display string for key, or the key itself when unknown.
func (v *Vocabulary) Display(key string) string {
	if idx, ok := v.byKey[key]; ok {
		return v.entries[idx].Display
	}
	return key
}

// Lookup returns the entry for key.
func (v *Vocabulary) Lookup(key string) (Entry, bool) {
	idx, ok := v.byKey[key]
	if !ok {
		return Entry{}, false
	}
	return v.entries[idx], true
}

// Entries returns all entries in canonical order.
func (v *Vocabulary) Entries() []Entry {
	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Keys returns the keys of class in canonical order.
func (v *Vocabulary) Keys(class Class) []string {
	var keys []string
	for _, e := range v.entries {
		if e.Class == class {
			keys = append(keys, e.Key)
		}
	}
	return keys
}

// SpecialCharacter returns the key of the special character.
func (v *Vocabulary) SpecialCharacter() string {
	return v.special
}

// Overrides returns the display names that differ from the defaults, keyed
// by vocabulary key, plus the special character when it is not the default.
func (v *Vocabulary) Overrides() map[string]string {
	out := make(map[string]string)
	for _, e := range v.entries {
		if e.Display != e.Default {
			out[e.Key] = e.Display
		}
	}
	if v.special != KeyCharacterT {
		out[SpecialCharacterKey] = v.special
	}
	return out
}
