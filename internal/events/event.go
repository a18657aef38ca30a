package events

import (
	"net/url"
	"strconv"
	"time"
)

// EventType is the value of the atomic "event" column.
type EventType string

const (
	TypePageView EventType = "page_view"
	TypePagePing EventType = "page_ping"
	TypeUnstruct EventType = "unstruct"
)

// Event names written to event_name. Unstruct events are told apart by name.
const (
	NamePageView           = "page_view"
	NamePagePing           = "page_ping"
	NameWebVitals          = "web_vitals"
	NameCmpVisible         = "cmp_visible"
	NameConsentPreferences = "consent_preferences"
)

// TimestampLayout is the CSV timestamp format (UTC, millisecond precision).
const TimestampLayout = "2006-01-02 15:04:05.000"

const (
	platformWeb  = "web"
	nameTracker  = "sp"
	trackerVer   = "js-3.17.0"
	collectorVer = "ssc-2.9.0-kinesis"
	etlVer       = "snowplow-enrich-kinesis-3.8.0"
	eventVendor  = "com.snowplowanalytics.snowplow"
	eventFormat  = "jsonschema"
	docCharset   = "UTF-8"
	colorDepth   = "24"
)

// Session is the context shared by every event of one visit.
type Session struct {
	ID            string
	Index         int
	UserID        string
	DomainUserID  string
	NetworkUserID string
	IPAddress     string
	Start         time.Time
	Duration      time.Duration
	Geo           Geo
	Device        Device
	Referrer      Referrer
	Language      string
	ViewWidth     int
	ViewHeight    int
	Bot           bool
}

// End is the last instant an event of the session may be collected at.
func (s *Session) End() time.Time { return s.Start.Add(s.Duration) }

// PageView is one page load within a session. Every event of its group
// carries ID in the web_page context.
type PageView struct {
	ID       string
	Start    time.Time
	Page     Page
	URL      string
	Referrer string
	Medium   string
	Source   string
	Term     string
	Mkt      Referrer
	Height   int
}

// Scroll holds page_ping offsets.
type Scroll struct {
	XMin, XMax, YMin, YMax int
}

// Event is one atomic.events row before serialization.
type Event struct {
	Type     EventType
	Name     string
	Version  string
	ID       string
	Session  *Session
	PageView *PageView

	DvceCreated time.Time
	DvceSent    time.Time
	Collector   time.Time
	Derived     time.Time
	ETL         time.Time

	Fingerprint string
	Scroll      *Scroll
	Vitals      *WebVitals
	Cmp         *CmpVisible
	Consent     *ConsentPreferences
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

func formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', 6, 64) }

type record []string

func (r record) set(col, val string) { r[ColumnIndex(col)] = val }

func (r record) setInt(col string, v int) { r.set(col, strconv.Itoa(v)) }

// setURL fills the <prefix>_url* split columns from raw.
func (r record) setURL(prefix, raw string) {
	if raw == "" {
		return
	}
	u, err := url.Parse(raw)
	if err != nil {
		return
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	r.set(prefix+"_urlscheme", u.Scheme)
	r.set(prefix+"_urlhost", u.Hostname())
	r.set(prefix+"_urlport", port)
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	r.set(prefix+"_urlpath", path)
	r.set(prefix+"_urlquery", u.RawQuery)
	r.set(prefix+"_urlfragment", u.Fragment)
}

// Record renders e as a CSV row in Columns order. Empty cells are NULL.
func (e Event) Record() []string {
	r := make(record, len(Columns))
	s, pv := e.Session, e.PageView

	r.set("app_id", "default")
	r.set("platform", platformWeb)
	r.set("etl_tstamp", formatTime(e.ETL))
	r.set("collector_tstamp", formatTime(e.Collector))
	r.set("dvce_created_tstamp", formatTime(e.DvceCreated))
	r.set("dvce_sent_tstamp", formatTime(e.DvceSent))
	r.set("derived_tstamp", formatTime(e.Derived))
	r.set("event", string(e.Type))
	r.set("event_id", e.ID)
	r.set("name_tracker", nameTracker)
	r.set("v_tracker", trackerVer)
	r.set("v_collector", collectorVer)
	r.set("v_etl", etlVer)

	r.set("user_id", s.UserID)
	r.set("user_ipaddress", s.IPAddress)
	r.set("user_fingerprint", e.Fingerprint)
	r.set("domain_userid", s.DomainUserID)
	r.setInt("domain_sessionidx", s.Index)
	r.set("network_userid", s.NetworkUserID)
	r.set("domain_sessionid", s.ID)

	g := s.Geo
	r.set("geo_country", g.Country)
	r.set("geo_region", g.Region)
	r.set("geo_city", g.City)
	r.set("geo_zipcode", g.Zipcode)
	r.set("geo_latitude", formatFloat(g.Latitude))
	r.set("geo_longitude", formatFloat(g.Longitude))
	r.set("geo_region_name", g.RegionName)
	r.set("geo_timezone", g.Timezone)
	r.set("ip_isp", g.ISP)

	r.set("page_url", pv.URL)
	r.set("page_title", pv.Page.Title)
	r.set("page_referrer", pv.Referrer)
	r.setURL("page", pv.URL)
	r.setURL("refr", pv.Referrer)
	r.set("refr_medium", pv.Medium)
	r.set("refr_source", pv.Source)
	r.set("refr_term", pv.Term)
	r.set("mkt_medium", pv.Mkt.MktMedium)
	r.set("mkt_source", pv.Mkt.MktSource)
	r.set("mkt_term", pv.Mkt.MktTerm)
	r.set("mkt_content", pv.Mkt.MktContent)
	r.set("mkt_campaign", pv.Mkt.MktCampaign)

	if e.Scroll != nil {
		r.setInt("pp_xoffset_min", e.Scroll.XMin)
		r.setInt("pp_xoffset_max", e.Scroll.XMax)
		r.setInt("pp_yoffset_min", e.Scroll.YMin)
		r.setInt("pp_yoffset_max", e.Scroll.YMax)
	}

	d := s.Device
	r.set("useragent", d.UserAgent)
	r.set("br_name", d.BrowserName)
	r.set("br_family", d.BrowserFamily)
	r.set("br_version", d.BrowserVersion)
	r.set("br_type", d.DeviceType)
	r.set("br_renderengine", d.RenderEngine)
	r.set("br_lang", s.Language)
	r.set("br_features_pdf", formatBool(!d.Mobile))
	r.set("br_features_flash", formatBool(false))
	r.set("br_features_java", formatBool(false))
	r.set("br_features_director", formatBool(false))
	r.set("br_features_quicktime", formatBool(false))
	r.set("br_features_realplayer", formatBool(false))
	r.set("br_features_windowsmedia", formatBool(false))
	r.set("br_features_gears", formatBool(false))
	r.set("br_features_silverlight", formatBool(false))
	r.set("br_cookies", formatBool(!s.Bot))
	r.set("br_colordepth", colorDepth)
	r.setInt("br_viewwidth", s.ViewWidth)
	r.setInt("br_viewheight", s.ViewHeight)
	r.set("os_name", d.OSName)
	r.set("os_family", d.OSFamily)
	r.set("os_manufacturer", d.OSManufacturer)
	r.set("os_timezone", g.Timezone)
	r.set("dvce_type", d.DeviceType)
	r.set("dvce_ismobile", formatBool(d.Mobile))
	if d.ScreenWidth > 0 {
		r.setInt("dvce_screenwidth", d.ScreenWidth)
		r.setInt("dvce_screenheight", d.ScreenHeight)
	}
	r.set("doc_charset", docCharset)
	r.setInt("doc_width", s.ViewWidth)
	r.setInt("doc_height", pv.Height)

	r.set("event_vendor", eventVendor)
	r.set("event_name", e.Name)
	r.set("event_format", eventFormat)
	r.set("event_version", e.Version)

	r.set("contexts_com_snowplowanalytics_snowplow_web_page_1", jsonCell(&WebPageContext{ID: pv.ID}))
	r.set("contexts_com_iab_snowplow_spiders_and_robots_1", jsonCell(spidersContext(s.Bot)))
	r.set("contexts_com_snowplowanalytics_snowplow_ua_parser_context_1", jsonCell(uaParserContext(d)))
	r.set("contexts_nl_basjes_yauaa_context_1", jsonCell(yauaaContext(d, s.Bot)))
	r.set("unstruct_event_com_snowplowanalytics_snowplow_web_vitals_1", jsonCell(e.Vitals))
	r.set("unstruct_event_com_snowplowanalytics_snowplow_cmp_visible_1", jsonCell(e.Cmp))
	r.set("unstruct_event_com_snowplowanalytics_snowplow_consent_preferences_1", jsonCell(e.Consent))
	return r
}

func spidersContext(bot bool) *SpidersAndRobotsContext {
	if bot {
		return &SpidersAndRobotsContext{Category: "SPIDER_OR_ROBOT", PrimaryImpact: "UNKNOWN", Reason: "FAILED_UA_INCLUDE", SpiderOrRobot: true}
	}
	return &SpidersAndRobotsContext{Category: "BROWSER", PrimaryImpact: "NONE", Reason: "PASSED_ALL", SpiderOrRobot: false}
}

func uaParserContext(d Device) *UAParserContext {
	return &UAParserContext{
		DeviceFamily:     d.DeviceFamily,
		OSFamily:         d.OSFamily,
		OSMajor:          d.OSMajor,
		UseragentFamily:  d.BrowserFamily,
		UseragentMajor:   d.BrowserMajor,
		UseragentVersion: d.BrowserFamily + " " + d.BrowserVersion,
	}
}

func yauaaContext(d Device, bot bool) *YauaaContext {
	agentClass := "Browser"
	if bot {
		agentClass = "Robot"
	}
	return &YauaaContext{
		AgentClass:           agentClass,
		AgentName:            d.BrowserFamily,
		AgentVersion:         d.BrowserVersion,
		DeviceBrand:          d.DeviceBrand,
		DeviceClass:          d.DeviceClass,
		LayoutEngineName:     d.RenderEngine,
		OperatingSystemClass: osClass(d),
		OperatingSystemName:  d.OSFamily,
	}
}

func osClass(d Device) string {
	switch {
	case d.DeviceClass == "Robot":
		return "Cloud"
	case d.Mobile:
		return "Mobile"
	default:
		return "Desktop"
	}
}
