package types

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_ULIDOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("later timestamps produce greater ids", prop.ForAll(
		func(t1Ms, t2Ms int64, seed uint64) bool {
			if t1Ms >= t2Ms {
				t1Ms, t2Ms = t2Ms, t1Ms+1
			}
			g := NewULIDGenerator(seededReader(seed))
			u1, err := g.GenerateWithTime(time.UnixMilli(t1Ms))
			if err != nil {
				return false
			}
			u2, err := g.GenerateWithTime(time.UnixMilli(t2Ms))
			if err != nil {
				return false
			}
			return u1.Compare(u2) < 0
		},
		gen.Int64Range(1000000000000, 2000000000000),
		gen.Int64Range(1000000000000, 2000000000000),
		gen.UInt64(),
	))

	properties.Property("string encoding round-trips and preserves order", prop.ForAll(
		func(tsMs int64, seed uint64) bool {
			g := NewULIDGenerator(seededReader(seed))
			a, err := g.GenerateWithTime(time.UnixMilli(tsMs))
			if err != nil {
				return false
			}
			b, err := g.GenerateWithTime(time.UnixMilli(tsMs))
			if err != nil {
				return false
			}
			pa, err := ParseULID(a.String())
			if err != nil || pa != a {
				return false
			}
			return a.String() < b.String()
		},
		gen.Int64Range(0, 281474976710655),
		gen.UInt64(),
	))

	properties.Property("timestamp extraction matches generation time", prop.ForAll(
		func(tsMs int64) bool {
			u, err := NewULIDGenerator(nil).GenerateWithTime(time.UnixMilli(tsMs))
			if err != nil {
				return false
			}
			return u.Timestamp() == uint64(tsMs)
		},
		gen.Int64Range(0, 281474976710655),
	))

	properties.TestingRun(t)
}
