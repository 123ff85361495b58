// Package sampler synthesizes deterministic per-user analytics events.
//
// Every user draws from an independent ChaCha8 stream seeded from
// (seed, user index), so a user's events never depend on how many users
// precede it and the sequence can be replayed lazily from the seed alone.
package sampler

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/spaolacci/murmur3"

	"github.com/nocsaren/GA-mock-to-html/internal/vocab"
	"github.com/nocsaren/GA-mock-to-html/pkg/types"
)

// Sampler produces the event sequence for one set of parameters.
type Sampler struct {
	params Params
	vocab  *vocab.Vocabulary
}

// New validates params against the vocabulary and returns a sampler.
func New(params Params, v *vocab.Vocabulary) (*Sampler, error) {
	if v == nil {
		return nil, fmt.Errorf("sampler: vocabulary is required")
	}
	if params.StartDate.IsZero() {
		params.StartDate = DefaultStartDate
	}
	params.StartDate = params.StartDate.UTC().Truncate(dayLength)
	if err := params.Validate(); err != nil {
		return nil, err
	}
	for key := range params.Weights {
		if _, ok := v.Lookup(key); !ok {
			return nil, fmt.Errorf("sampler: weight for unknown vocabulary key %q", key)
		}
	}
	return &Sampler{params: params, vocab: v}, nil
}

// Params returns the effective parameters.
func (s *Sampler) Params() Params {
	return s.params
}

// Events returns the lazy event sequence. Each call replays from the seed,
// so the sequence can be ranged over any number of times.
func (s *Sampler) Events() iter.Seq[types.Event] {
	return func(yield func(types.Event) bool) {
		if s.params.Users == 0 || s.params.Days == 0 {
			return
		}
		var seq int64
		for u := 0; u < s.params.Users; u++ {
			events := s.userEvents(u)
			for i := range events {
				events[i].Seq = seq
				seq++
				if !yield(events[i]) {
					return
				}
			}
		}
	}
}

// Collect materializes the whole sequence.
func (s *Sampler) Collect() []types.Event {
	var out []types.Event
	for e := range s.Events() {
		out = append(out, e)
	}
	return out
}

// userSource derives the ChaCha8 key for a user from the run seed.
func userSource(seed int64, user int) *rand.ChaCha8 {
	var in [16]byte
	binary.LittleEndian.PutUint64(in[:8], uint64(seed))
	binary.LittleEndian.PutUint64(in[8:], uint64(user))

	h1, h2 := murmur3.Sum128(in[:])
	h3, h4 := murmur3.Sum128WithSeed(in[:], 0x5bd1e995)

	var key [32]byte
	binary.LittleEndian.PutUint64(key[0:], h1)
	binary.LittleEndian.PutUint64(key[8:], h2)
	binary.LittleEndian.PutUint64(key[16:], h3)
	binary.LittleEndian.PutUint64(key[24:], h4)
	return rand.NewChaCha8(key)
}

// userEvents builds one user's events ordered by time. Ties keep creation
// order, which is itself deterministic.
func (s *Sampler) userEvents(index int) []types.Event {
	src := userSource(s.params.Seed, index)
	g := &generator{
		params: &s.params,
		vocab:  s.vocab,
		src:    src,
		r:      rand.New(src),
	}
	g.user = g.newUser(index)
	g.run()

	sort.SliceStable(g.events, func(i, j int) bool {
		return g.events[i].Time.Before(g.events[j].Time)
	})
	return g.events
}

// poisson draws from a Poisson distribution using Knuth's method.
func poisson(r *rand.Rand, mean float64) int {
	if mean <= 0 {
		return 0
	}
	limit := math.Exp(-mean)
	k := 0
	p := 1.0
	for {
		p *= r.Float64()
		if p <= limit {
			return k
		}
		k++
	}
}

// weightedPick draws one key using the configured weights. It returns ""
// when the candidates' total weight is zero.
func weightedPick(r *rand.Rand, keys []string, weights map[string]float64) string {
	var total float64
	for _, k := range keys {
		total += weightOf(k, weights)
	}
	if total <= 0 {
		return ""
	}
	x := r.Float64() * total
	for _, k := range keys {
		w := weightOf(k, weights)
		if x < w {
			return k
		}
		x -= w
	}
	// Rounding can leave x just above the last bucket.
	for i := len(keys) - 1; i >= 0; i-- {
		if weightOf(keys[i], weights) > 0 {
			return keys[i]
		}
	}
	return ""
}

func weightOf(key string, weights map[string]float64) float64 {
	if w, ok := weights[key]; ok {
		return w
	}
	return 1
}
