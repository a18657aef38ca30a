package events

import "encoding/json"

// Context and unstruct payloads. Field order is fixed by the struct
// definitions so serialization is deterministic.

type WebPageContext struct {
	ID string `json:"id"`
}

type UAParserContext struct {
	DeviceFamily     string `json:"deviceFamily"`
	OSFamily         string `json:"osFamily"`
	OSMajor          string `json:"osMajor,omitempty"`
	UseragentFamily  string `json:"useragentFamily"`
	UseragentMajor   string `json:"useragentMajor,omitempty"`
	UseragentVersion string `json:"useragentVersion,omitempty"`
}

type SpidersAndRobotsContext struct {
	Category      string `json:"category"`
	PrimaryImpact string `json:"primaryImpact"`
	Reason        string `json:"reason"`
	SpiderOrRobot bool   `json:"spiderOrRobot"`
}

type YauaaContext struct {
	AgentClass           string `json:"agentClass"`
	AgentName            string `json:"agentName"`
	AgentVersion         string `json:"agentVersion"`
	DeviceBrand          string `json:"deviceBrand"`
	DeviceClass          string `json:"deviceClass"`
	LayoutEngineName     string `json:"layoutEngineName"`
	OperatingSystemClass string `json:"operatingSystemClass"`
	OperatingSystemName  string `json:"operatingSystemName"`
}

// WebVitals is the com.snowplowanalytics.snowplow/web_vitals payload.
type WebVitals struct {
	CLS            float64 `json:"cls"`
	FCP            int     `json:"fcp"`
	FID            int     `json:"fid"`
	INP            int     `json:"inp"`
	LCP            int     `json:"lcp"`
	NavigationType string  `json:"navigation_type"`
	TTFB           int     `json:"ttfb"`
}

type CmpVisible struct {
	ElapsedTime string `json:"elapsed_time"`
}

type ConsentPreferences struct {
	BasisForProcessing string   `json:"basis_for_processing"`
	ConsentScopes      []string `json:"consent_scopes"`
	ConsentURL         string   `json:"consent_url"`
	ConsentVersion     string   `json:"consent_version"`
	DomainsApplied     []string `json:"domains_applied"`
	EventType          string   `json:"event_type"`
	GDPRApplies        bool     `json:"gdpr_applies"`
}

// jsonCell encodes v as a one-element JSON array, the shape Snowplow uses
// for context and unstruct columns in the flattened events table.
func jsonCell[T any](v *T) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal([]*T{v})
	if err != nil {
		// Every payload is a plain struct of strings, numbers and bools.
		panic("events: marshal context: " + err.Error())
	}
	return string(b)
}
