package events

import (
	"math/rand"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDay = time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

func newTestGenerator(seed int64, p Probabilities) *SessionGenerator {
	return NewSessionGenerator(DayConfig{
		Day:           testDay,
		MobilePercent: 66,
		BotShare:      0.01,
		Probabilities: p,
	}, rand.New(rand.NewSource(seed)))
}

// groups splits a session into page-view groups keyed by page view id.
func groups(evs []Event) map[string][]Event {
	out := make(map[string][]Event)
	for _, ev := range evs {
		out[ev.PageView.ID] = append(out[ev.PageView.ID], ev)
	}
	return out
}

func countNamed(evs []Event, name string) int {
	n := 0
	for _, ev := range evs {
		if ev.Name == name {
			n++
		}
	}
	return n
}

func TestSession_WebVitalsProbability(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	properties := gopter.NewProperties(params)

	properties.Property("exactly one web_vitals per page view when forced on", prop.ForAll(
		func(seed int64) bool {
			for _, g := range groups(newTestGenerator(seed, Probabilities{WebVitals: 1}).Session()) {
				if countNamed(g, NamePageView) != 1 || countNamed(g, NameWebVitals) != 1 {
					return false
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.Property("no web_vitals when forced off", prop.ForAll(
		func(seed int64) bool {
			return countNamed(newTestGenerator(seed, Probabilities{}).Session(), NameWebVitals) == 0
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestSession_SharedIdentifiers(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("pings share session and user ids with their page view", prop.ForAll(
		func(seed int64) bool {
			for _, g := range groups(newTestGenerator(seed, DefaultProbabilities).Session()) {
				pv := g[0]
				if pv.Type != TypePageView {
					return false
				}
				for _, ev := range g[1:] {
					if ev.Session.ID != pv.Session.ID || ev.Session.UserID != pv.Session.UserID ||
						ev.Session.DomainUserID != pv.Session.DomainUserID {
						return false
					}
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestSession_GroupOrdering(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("page_view <= web_vitals <= first page_ping", prop.ForAll(
		func(seed int64) bool {
			for _, g := range groups(newTestGenerator(seed, DefaultProbabilities).Session()) {
				pv := g[0].Collector
				var vitals time.Time
				var firstPing time.Time
				for _, ev := range g {
					switch ev.Name {
					case NameWebVitals:
						vitals = ev.Collector
					case NamePagePing:
						if firstPing.IsZero() || ev.Collector.Before(firstPing) {
							firstPing = ev.Collector
						}
					}
					if ev.Collector.Before(pv) {
						return false
					}
				}
				if !vitals.IsZero() && !firstPing.IsZero() && firstPing.Before(vitals) {
					return false
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestSession_Bounds(t *testing.T) {
	dayEnd := testDay.Add(24 * time.Hour)
	for seed := int64(0); seed < 200; seed++ {
		evs := newTestGenerator(seed, DefaultProbabilities).Session()
		require.NotEmpty(t, evs)

		sess := evs[0].Session
		assert.GreaterOrEqual(t, sess.Duration, time.Minute)
		assert.LessOrEqual(t, sess.Duration, 30*time.Minute)

		pvs := countNamed(evs, NamePageView)
		assert.GreaterOrEqual(t, pvs, 1)
		assert.LessOrEqual(t, pvs, 10)
		assert.True(t, evs[0].Collector.Equal(sess.Start), "first page view opens the session")

		for _, g := range groups(evs) {
			assert.LessOrEqual(t, countNamed(g, NamePagePing), 12)
		}
		for _, ev := range evs {
			assert.False(t, ev.Collector.Before(testDay))
			assert.True(t, ev.Collector.Before(dayEnd))
			if ev.Name == NamePagePing {
				assert.False(t, ev.Collector.After(sess.End()), "ping after session end")
			}
			assert.False(t, ev.DvceSent.Before(ev.DvceCreated))
			assert.False(t, ev.Collector.Before(ev.DvceSent))
			assert.False(t, ev.Derived.Before(ev.Collector))
			assert.False(t, ev.ETL.Before(ev.Derived))
		}
	}
}

func TestGenerate_Policies(t *testing.T) {
	var rows int64
	n, err := newTestGenerator(7, DefaultProbabilities).Generate(100, ExactRows, func(Event) error {
		rows++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)
	assert.Equal(t, int64(100), rows)

	n, err = newTestGenerator(7, DefaultProbabilities).Generate(100, CompleteSessions, func(Event) error { return nil })
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(100))

	// Replaying the same source session by session lands on the same count,
	// so the stream ended on a session boundary.
	replay := newTestGenerator(7, DefaultProbabilities)
	var whole int64
	for whole < 100 {
		whole += int64(len(replay.Session()))
	}
	assert.Equal(t, whole, n)
}

func TestGenerate_ZeroTarget(t *testing.T) {
	n, err := newTestGenerator(1, DefaultProbabilities).Generate(0, CompleteSessions, func(Event) error {
		t.Fatal("emit called for an empty target")
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGenerate_Deterministic(t *testing.T) {
	collect := func() [][]string {
		var out [][]string
		_, err := newTestGenerator(42, DefaultProbabilities).Generate(500, CompleteSessions, func(ev Event) error {
			out = append(out, ev.Record())
			return nil
		})
		require.NoError(t, err)
		return out
	}
	assert.Equal(t, collect(), collect())
}
