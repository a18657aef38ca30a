package events

import (
	"math/rand"
	"slices"
	"time"
)

// Policy decides how generation stops once the row target is reached.
type Policy int

const (
	// CompleteSessions finishes the in-progress session, so the result is at
	// least the target.
	CompleteSessions Policy = iota
	// ExactRows stops after exactly target events.
	ExactRows
)

func (p Policy) String() string {
	if p == ExactRows {
		return "exact_rows"
	}
	return "complete_sessions"
}

// Probabilities of the optional events emitted per page view.
type Probabilities struct {
	WebVitals  float64 `yaml:"web_vitals"`
	CmpVisible float64 `yaml:"cmp_visible"`
	Consent    float64 `yaml:"consent"`
}

// DefaultProbabilities always emits web vitals and matches the observed
// CMP banner and consent rates.
var DefaultProbabilities = Probabilities{WebVitals: 1.0, CmpVisible: 0.35, Consent: 0.30}

const (
	minSessionDuration = time.Minute
	maxSessionDuration = 30 * time.Minute
	maxPageViews       = 10
	maxPings           = 12
	pingInterval       = 10 * time.Second
	// dayTail keeps the trailing unstruct events of a session inside the day.
	dayTail = 5 * time.Second
)

// DayConfig parameterizes one day of sessions.
type DayConfig struct {
	Day           time.Time
	MobilePercent int
	BotShare      float64
	Probabilities Probabilities
}

// SessionGenerator emits whole sessions anchored on one calendar day.
type SessionGenerator struct {
	cfg   DayConfig
	rng   *rand.Rand
	synth *Synthesizer
	day   time.Time
}

// NewSessionGenerator returns a generator drawing every random choice from rng.
func NewSessionGenerator(cfg DayConfig, rng *rand.Rand) *SessionGenerator {
	d := cfg.Day.UTC()
	return &SessionGenerator{
		cfg:   cfg,
		rng:   rng,
		synth: NewSynthesizer(rng, cfg.BotShare),
		day:   time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
	}
}

// Session generates one complete session. Events are grouped by page view
// and ordered by collector timestamp within each group.
func (g *SessionGenerator) Session() []Event {
	s := g.synth
	duration := minSessionDuration + time.Duration(g.rng.Int63n(int64(maxSessionDuration-minSessionDuration)/int64(time.Millisecond)+1))*time.Millisecond
	latest := 24*time.Hour - duration - dayTail
	start := g.day.Add(time.Duration(g.rng.Int63n(int64(latest/time.Millisecond))) * time.Millisecond)
	sess := s.NewSession(start, duration, g.cfg.MobilePercent)

	offsets := g.pageOffsets(duration, 1+g.rng.Intn(maxPageViews))

	var (
		out  []Event
		prev *PageView
	)
	for _, off := range offsets {
		pv := s.NewPageView(sess, start.Add(off), prev)
		prev = pv
		group := []Event{s.PageViewEvent(sess, pv)}

		p := g.cfg.Probabilities
		floor := pv.Start
		if s.chance(p.WebVitals) {
			ev := s.WebVitalsEvent(sess, pv, pv.Start.Add(s.millis(100, 2000)))
			floor = ev.Collector
			group = append(group, ev)
		}
		if s.chance(p.CmpVisible) {
			group = append(group, s.CmpVisibleEvent(sess, pv, pv.Start.Add(s.millis(50, 300))))
		}
		if s.chance(p.Consent) {
			group = append(group, s.ConsentEvent(sess, pv, pv.Start.Add(s.millis(100, 500))))
		}

		pings := g.rng.Intn(maxPings + 1)
		for k := 1; k <= pings; k++ {
			at := pv.Start.Add(time.Duration(k)*pingInterval + s.millis(0, 999))
			if at.After(sess.End()) {
				break
			}
			if at.Before(floor) {
				at = floor
			}
			group = append(group, s.PagePingEvent(sess, pv, at, k))
		}

		slices.SortStableFunc(group[1:], func(a, b Event) int { return a.Collector.Compare(b.Collector) })
		out = append(out, group...)
	}
	return out
}

// pageOffsets returns n sorted offsets within duration, the first at zero.
func (g *SessionGenerator) pageOffsets(duration time.Duration, n int) []time.Duration {
	offsets := make([]time.Duration, n)
	span := int64(duration / time.Millisecond)
	for i := 1; i < n; i++ {
		offsets[i] = time.Duration(g.rng.Int63n(span)) * time.Millisecond
	}
	slices.Sort(offsets)
	return offsets
}

// Generate emits sessions through emit until target rows are written and
// returns the number emitted. With CompleteSessions the last session is
// always finished; with ExactRows the stream is cut after the target-th event.
func (g *SessionGenerator) Generate(target int64, policy Policy, emit func(Event) error) (int64, error) {
	var rows int64
	for rows < target {
		for _, ev := range g.Session() {
			if policy == ExactRows && rows == target {
				return rows, nil
			}
			if err := emit(ev); err != nil {
				return rows, err
			}
			rows++
		}
	}
	return rows, nil
}
