package events

import (
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Synthesizer builds sessions, page views and single events from an explicit
// random source. It holds no other state, so the same source sequence always
// yields the same rows.
type Synthesizer struct {
	rng      *rand.Rand
	botShare float64
}

// NewSynthesizer returns a Synthesizer drawing from rng. botShare is the
// probability that a new session is crawler traffic.
func NewSynthesizer(rng *rand.Rand, botShare float64) *Synthesizer {
	return &Synthesizer{rng: rng, botShare: botShare}
}

func (s *Synthesizer) uuid() string {
	return uuid.Must(uuid.NewRandomFromReader(s.rng)).String()
}

// between returns a uniform integer in [lo, hi].
func (s *Synthesizer) between(lo, hi int) int {
	return lo + s.rng.Intn(hi-lo+1)
}

func (s *Synthesizer) millis(lo, hi int) time.Duration {
	return time.Duration(s.between(lo, hi)) * time.Millisecond
}

func (s *Synthesizer) chance(p float64) bool {
	return p > 0 && s.rng.Float64() < p
}

func (s *Synthesizer) jitter(v float64) float64 {
	return math.Round((v+(s.rng.Float64()*2-1)*coordJitter)*1e6) / 1e6
}

// NewSession draws the identity, geo, device and landing referrer of a
// session starting at start. mobilePct is the share of mobile sessions, 0-100.
func (s *Synthesizer) NewSession(start time.Time, duration time.Duration, mobilePct int) *Session {
	sess := &Session{
		ID:            s.uuid(),
		Index:         s.between(1, 5),
		UserID:        s.uuid(),
		DomainUserID:  s.uuid(),
		NetworkUserID: s.uuid(),
		Start:         start,
		Duration:      duration,
	}
	sess.IPAddress = fmt.Sprintf("%d.%d.%d.%d", s.between(11, 223), s.between(0, 255), s.between(0, 255), s.between(1, 254))

	geo := pick(s.rng, geoProfiles)
	geo.Latitude = s.jitter(geo.Latitude)
	geo.Longitude = s.jitter(geo.Longitude)
	sess.Geo = geo

	switch {
	case s.chance(s.botShare):
		sess.Bot = true
		sess.Device = botProfile
	case s.rng.Intn(100) < mobilePct:
		sess.Device = pick(s.rng, mobileProfiles)
	default:
		sess.Device = pick(s.rng, desktopProfiles)
	}
	sess.Referrer = pick(s.rng, referrers)
	sess.Language = pick(s.rng, browserLanguages)

	if w := sess.Device.ScreenWidth; w > 0 {
		sess.ViewWidth = w - s.between(0, w/10)
		sess.ViewHeight = sess.Device.ScreenHeight - s.between(60, 160)
	} else {
		sess.ViewWidth, sess.ViewHeight = 1024, 768
	}
	return sess
}

// NewPageView draws the page for a view starting at start. The first view
// of a session keeps the landing referrer; later views are referred by prev.
func (s *Synthesizer) NewPageView(sess *Session, start time.Time, prev *PageView) *PageView {
	pv := &PageView{
		ID:     s.uuid(),
		Start:  start,
		Page:   pick(s.rng, pages),
		Height: sess.ViewHeight * s.between(2, 8),
	}
	page := url.URL{Scheme: "https", Host: siteHost, Path: pv.Page.Path}
	if prev == nil {
		ref := sess.Referrer
		pv.Referrer, pv.Medium, pv.Source, pv.Term = ref.URL, ref.Medium, ref.Source, ref.Term
		if ref.MktSource != "" {
			pv.Mkt = ref
			page.RawQuery = campaignQuery(ref)
		}
	} else {
		pv.Referrer, pv.Medium = prev.URL, "internal"
	}
	pv.URL = page.String()
	return pv
}

func campaignQuery(ref Referrer) string {
	q := url.Values{}
	q.Set("utm_source", ref.MktSource)
	q.Set("utm_medium", ref.MktMedium)
	q.Set("utm_campaign", ref.MktCampaign)
	if ref.MktContent != "" {
		q.Set("utm_content", ref.MktContent)
	}
	if ref.MktTerm != "" {
		q.Set("utm_term", ref.MktTerm)
	}
	return q.Encode()
}

// event stamps a new event collected at collector. Device timestamps precede
// the collector and ETL follows it.
func (s *Synthesizer) event(sess *Session, pv *PageView, typ EventType, name string, collector time.Time) Event {
	created := collector.Add(-s.millis(20, 1500))
	sent := created.Add(time.Duration(s.rng.Int63n(int64(collector.Sub(created)) + 1)))
	return Event{
		Type:        typ,
		Name:        name,
		Version:     "1-0-0",
		ID:          s.uuid(),
		Session:     sess,
		PageView:    pv,
		DvceCreated: created.Truncate(time.Millisecond),
		DvceSent:    sent.Truncate(time.Millisecond),
		Collector:   collector,
		Derived:     collector,
		ETL:         collector.Add(s.millis(500, 3000)),
		Fingerprint: fmt.Sprintf("%010d", s.rng.Int63n(1e10)),
	}
}

// PageViewEvent returns the page_view event opening pv.
func (s *Synthesizer) PageViewEvent(sess *Session, pv *PageView) Event {
	return s.event(sess, pv, TypePageView, NamePageView, pv.Start)
}

// WebVitalsEvent returns a web_vitals unstruct event collected at at.
func (s *Synthesizer) WebVitalsEvent(sess *Session, pv *PageView, at time.Time) Event {
	e := s.event(sess, pv, TypeUnstruct, NameWebVitals, at)
	e.Vitals = &WebVitals{
		CLS:            math.Round(s.rng.Float64()*0.25*1000) / 1000,
		FCP:            s.between(500, 3000),
		FID:            s.between(1, 300),
		INP:            s.between(1, 300),
		LCP:            s.between(1000, 4000),
		NavigationType: "navigate",
		TTFB:           s.between(50, 500),
	}
	return e
}

// CmpVisibleEvent returns a cmp_visible unstruct event collected at at.
func (s *Synthesizer) CmpVisibleEvent(sess *Session, pv *PageView, at time.Time) Event {
	e := s.event(sess, pv, TypeUnstruct, NameCmpVisible, at)
	e.Cmp = &CmpVisible{ElapsedTime: fmt.Sprintf("%.1f", 0.5+s.rng.Float64()*2.5)}
	return e
}

// ConsentEvent returns a consent_preferences unstruct event collected at at.
func (s *Synthesizer) ConsentEvent(sess *Session, pv *PageView, at time.Time) Event {
	e := s.event(sess, pv, TypeUnstruct, NameConsentPreferences, at)
	e.Consent = &ConsentPreferences{
		BasisForProcessing: "consent",
		ConsentScopes:      consentScopes[s.rng.Intn(len(consentScopes))],
		ConsentURL:         pv.URL,
		ConsentVersion:     "1.0",
		DomainsApplied:     []string{"https://" + siteHost + "/"},
		EventType:          consentEventTypes[s.rng.Intn(len(consentEventTypes))],
		GDPRApplies:        s.rng.Intn(2) == 1,
	}
	return e
}

// PagePingEvent returns the n-th heartbeat (from 1) of pv collected at at.
// Vertical scroll grows with n up to the document height.
func (s *Synthesizer) PagePingEvent(sess *Session, pv *PageView, at time.Time, n int) Event {
	e := s.event(sess, pv, TypePagePing, NamePagePing, at)
	maxY := pv.Height - sess.ViewHeight
	if maxY < 0 {
		maxY = 0
	}
	step := maxY / 12
	yMin := (n - 1) * step
	yMax := yMin + step + s.between(0, step/2+1)
	if yMax > maxY {
		yMax = maxY
	}
	if yMin > yMax {
		yMin = yMax
	}
	e.Scroll = &Scroll{XMin: 0, XMax: 0, YMin: yMin, YMax: yMax}
	return e
}
