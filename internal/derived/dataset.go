package derived

import (
	"iter"
	"sort"
	"strconv"
	"time"

	"github.com/nocsaren/GA-mock-to-html/internal/vocab"
	"github.com/nocsaren/GA-mock-to-html/pkg/types"
)

// Table names, in the order the tables are written.
const (
	ProcessedName       = "processed_data"
	BySessionsName      = "by_sessions"
	ByUsersName         = "by_users"
	UsersMetaName       = "users_meta"
	ByQuestionsName     = "by_questions"
	ByAdsName           = "by_ads"
	ByDateName          = "by_date"
	TechnicalEventsName = "technical_events"
)

// Dataset holds a run's events grouped by user and session.
type Dataset struct {
	vocab *vocab.Vocabulary
	rows  []*row
	users []*userRows
}

type row struct {
	types.Event
	session *sessionSpan
}

type sessionSpan struct {
	id         int64
	start, end time.Time
	rows       []*row
}

func (s *sessionSpan) seconds() float64 {
	return s.end.Sub(s.start).Seconds()
}

type userRows struct {
	ctx      *types.UserContext
	rows     []*row
	sessions []*sessionSpan
}

// NewDataset materializes seq. Users are ordered by pseudo id and each
// user's events by time.
func NewDataset(seq iter.Seq[types.Event], v *vocab.Vocabulary) *Dataset {
	d := &Dataset{vocab: v}
	byUser := make(map[string]*userRows)
	for e := range seq {
		u, ok := byUser[e.User.PseudoID]
		if !ok {
			u = &userRows{ctx: e.User}
			byUser[e.User.PseudoID] = u
			d.users = append(d.users, u)
		}
		u.rows = append(u.rows, &row{Event: e})
	}

	sort.SliceStable(d.users, func(i, j int) bool {
		return d.users[i].ctx.PseudoID < d.users[j].ctx.PseudoID
	})
	for _, u := range d.users {
		sort.SliceStable(u.rows, func(i, j int) bool {
			return u.rows[i].Time.Before(u.rows[j].Time)
		})
		spans := make(map[int64]*sessionSpan)
		for _, r := range u.rows {
			d.rows = append(d.rows, r)
			if !r.InSession() {
				continue
			}
			s, ok := spans[r.SessionID]
			if !ok {
				s = &sessionSpan{id: r.SessionID, start: r.Time, end: r.Time}
				spans[r.SessionID] = s
				u.sessions = append(u.sessions, s)
			}
			if r.Time.Before(s.start) {
				s.start = r.Time
			}
			if r.Time.After(s.end) {
				s.end = r.Time
			}
			s.rows = append(s.rows, r)
			r.session = s
		}
	}
	return d
}

// Len returns the number of events in the dataset.
func (d *Dataset) Len() int { return len(d.rows) }

// Tables computes every derived table in write order.
func (d *Dataset) Tables() []*Table {
	users, meta := d.ByUsers()
	return []*Table{
		d.Processed(),
		d.BySessions(),
		users,
		meta,
		d.ByQuestions(),
		d.ByAds(),
		d.ByDate(),
		d.TechnicalEvents(),
	}
}

// param formats the value stored under key, or "" when absent or null.
func (d *Dataset) param(r *row, key string) string {
	v, ok := r.Param(key)
	if !ok {
		return ""
	}
	return v.Format(d.vocab.Display)
}

func number(r *row, key string) (float64, bool) {
	v, ok := r.Param(key)
	if !ok {
		return 0, false
	}
	return v.Number()
}

func isTrue(r *row, key string) bool {
	v, ok := r.Param(key)
	return ok && v.Kind == types.KindBool && v.Bool
}

// question reports the question context of r, if it has a complete one.
func question(r *row) (character string, tier, index int64, ok bool) {
	c, okc := r.Param(types.ParamCharacterName)
	t, okt := r.Param(types.ParamCurrentTier)
	q, okq := r.Param(types.ParamQuestionIndex)
	if !okc || !okt || !okq || c.IsNull() || t.IsNull() || q.IsNull() || !r.InSession() {
		return "", 0, 0, false
	}
	return c.Str, t.Int, q.Int, true
}

func sessionID(r *row) string {
	if !r.InSession() {
		return ""
	}
	return strconv.FormatInt(r.SessionID, 10)
}

func serverDelay(r *row) string {
	if r.ServerDelaySeconds.IsNull() {
		return ""
	}
	return types.FormatFloat(r.ServerDelaySeconds.Float)
}
