package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	mgerrors "github.com/nocsaren/GA-mock-to-html/internal/errors"
	"github.com/nocsaren/GA-mock-to-html/internal/vocab"
)

// Keys of the older flat config layout: renames under "vocab" and a single
// session mean.
const (
	legacyVocabKey      = "vocab"
	legacySessionsKey   = "avg_sessions_per_user"
	legacyCharactersKey = "characters"
	legacySpecialKey    = "special_character_for_offsets"
)

// legacyCharacterKeys maps positions of "vocab.characters" onto keys.
var legacyCharacterKeys = []string{
	vocab.KeyCharacterT,
	vocab.KeyCharacterMi,
	vocab.KeyCharacterLa,
	vocab.KeyCharacterSo,
}

// knownKeys returns the accepted top-level keys of a config file.
func knownKeys() map[string]bool {
	known := map[string]bool{legacyVocabKey: true, legacySessionsKey: true}
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			known[name] = true
		}
	}
	return known
}

func (c *Config) warnf(format string, args ...any) {
	c.warnings = append(c.warnings,
		mgerrors.NewConfigError(mgerrors.CodeInvalidValue, fmt.Sprintf(format, args...), nil))
}

// applyLegacy maps the older layout onto the current fields and warns about
// keys nothing reads. Settings in the current layout win.
func (c *Config) applyLegacy(top map[string]any) {
	known := knownKeys()
	for _, name := range sortedKeys(top) {
		if !known[name] {
			c.warnf("unknown config key %q ignored", name)
		}
	}

	if raw, ok := top[legacySessionsKey]; ok {
		f, isNum := toFloat(raw)
		switch {
		case !isNum:
			c.warnf("%s must be a number, got %v", legacySessionsKey, raw)
		case top["sessions_per_day"] != nil:
			c.warnf("%s ignored: sessions_per_day is set", legacySessionsKey)
		default:
			c.SessionsPerDay = f
		}
	}

	if raw, ok := top[legacyVocabKey]; ok {
		m, isMap := raw.(map[string]any)
		if !isMap {
			c.warnf("%s must be an object", legacyVocabKey)
			return
		}
		current, _ := top["vocabulary"].(map[string]any)
		c.applyLegacyVocab(m, current)
	}
}

func (c *Config) applyLegacyVocab(m, current map[string]any) {
	if c.Vocabulary.Names == nil {
		c.Vocabulary.Names = make(map[string]string)
	}
	set := make(map[string]bool, len(c.Vocabulary.Names))
	for name := range c.Vocabulary.Names {
		set[vocab.CanonicalKey(name)] = true
	}
	setName := func(name, value string) {
		if key := vocab.CanonicalKey(name); !set[key] {
			set[key] = true
			c.Vocabulary.Names[name] = value
		}
	}

	// Older files name the special character by its position's display.
	byName := make(map[string]string)
	var special string

	for _, name := range sortedKeys(m) {
		switch name {
		case legacyCharactersKey:
			list, ok := m[name].([]any)
			if !ok {
				c.warnf("vocab.%s must be a list", name)
				continue
			}
			for i, item := range list {
				s, ok := item.(string)
				if !ok || i >= len(legacyCharacterKeys) {
					c.warnf("vocab.%s[%d] ignored", name, i)
					continue
				}
				byName[s] = legacyCharacterKeys[i]
				setName(legacyCharacterKeys[i], s)
			}
		case legacySpecialKey:
			s, ok := m[name].(string)
			if !ok {
				c.warnf("vocab.%s must be a string", name)
				continue
			}
			special = s
		default:
			s, ok := m[name].(string)
			if !ok {
				c.warnf("vocab.%s must be a string", name)
				continue
			}
			// Unknown names are reported when the vocabulary resolves.
			setName(name, s)
		}
	}

	if special == "" || current["special_character"] != nil {
		return
	}
	if key, ok := byName[special]; ok {
		special = key
	}
	c.Vocabulary.SpecialCharacter = special
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
