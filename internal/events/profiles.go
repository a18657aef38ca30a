package events

import "math/rand"

type weighted[T any] struct {
	weight int
	value  T
}

// pick draws one value from items with probability proportional to weight.
func pick[T any](rng *rand.Rand, items []weighted[T]) T {
	total := 0
	for _, it := range items {
		total += it.weight
	}
	n := rng.Intn(total)
	for _, it := range items {
		if n < it.weight {
			return it.value
		}
		n -= it.weight
	}
	return items[len(items)-1].value
}

// Geo is a location profile. Latitude and longitude belong to the city so
// that country, city and coordinates always agree.
type Geo struct {
	Country    string
	Region     string
	RegionName string
	City       string
	Zipcode    string
	Timezone   string
	Latitude   float64
	Longitude  float64
	ISP        string
}

var geoProfiles = []weighted[Geo]{
	{30, Geo{"US", "NY", "New York", "New York", "10001", "America/New_York", 40.7128, -74.0060, "Verizon"}},
	{12, Geo{"US", "CA", "California", "San Francisco", "94103", "America/Los_Angeles", 37.7749, -122.4194, "Comcast"}},
	{8, Geo{"CA", "ON", "Ontario", "Toronto", "M5H", "America/Toronto", 43.6532, -79.3832, "Rogers"}},
	{10, Geo{"GB", "ENG", "England", "London", "EC1A", "Europe/London", 51.5074, -0.1278, "BT"}},
	{7, Geo{"DE", "BE", "Berlin", "Berlin", "10115", "Europe/Berlin", 52.5200, 13.4050, "Deutsche Telekom"}},
	{6, Geo{"FR", "IDF", "Ile-de-France", "Paris", "75001", "Europe/Paris", 48.8566, 2.3522, "Orange"}},
	{6, Geo{"JP", "13", "Tokyo", "Tokyo", "100-0001", "Asia/Tokyo", 35.6762, 139.6503, "NTT"}},
	{5, Geo{"AU", "NSW", "New South Wales", "Sydney", "2000", "Australia/Sydney", -33.8688, 151.2093, "Telstra"}},
	{6, Geo{"BR", "SP", "Sao Paulo", "São Paulo", "01000-000", "America/Sao_Paulo", -23.5505, -46.6333, "Vivo"}},
	{6, Geo{"IN", "MH", "Maharashtra", "Mumbai", "400001", "Asia/Kolkata", 19.0760, 72.8777, "Jio"}},
	{4, Geo{"MX", "CMX", "Ciudad de Mexico", "Mexico City", "06000", "America/Mexico_City", 19.4326, -99.1332, "Telmex"}},
}

// coordJitter keeps jittered coordinates within a few kilometres of the city.
const coordJitter = 0.05

// Device is a browser/OS/hardware profile with its user agent.
type Device struct {
	Mobile         bool
	UserAgent      string
	BrowserName    string
	BrowserFamily  string
	BrowserVersion string
	BrowserMajor   string
	RenderEngine   string
	OSName         string
	OSFamily       string
	OSMajor        string
	OSManufacturer string
	DeviceFamily   string
	DeviceBrand    string
	DeviceClass    string
	DeviceType     string
	ScreenWidth    int
	ScreenHeight   int
}

var desktopProfiles = []weighted[Device]{
	{45, Device{
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		BrowserName: "Chrome 120", BrowserFamily: "Chrome", BrowserVersion: "120.0.0.0", BrowserMajor: "120", RenderEngine: "WEBKIT",
		OSName: "Windows 10", OSFamily: "Windows", OSMajor: "10", OSManufacturer: "Microsoft Corporation",
		DeviceFamily: "Other", DeviceBrand: "Unknown", DeviceClass: "Desktop", DeviceType: "Computer",
		ScreenWidth: 1920, ScreenHeight: 1080,
	}},
	{25, Device{
		UserAgent:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		BrowserName: "Safari 17", BrowserFamily: "Safari", BrowserVersion: "17.1", BrowserMajor: "17", RenderEngine: "WEBKIT",
		OSName: "Mac OS X", OSFamily: "Mac OS X", OSMajor: "10", OSManufacturer: "Apple Inc.",
		DeviceFamily: "Mac", DeviceBrand: "Apple", DeviceClass: "Desktop", DeviceType: "Computer",
		ScreenWidth: 1440, ScreenHeight: 900,
	}},
	{15, Device{
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		BrowserName: "Firefox 121", BrowserFamily: "Firefox", BrowserVersion: "121.0", BrowserMajor: "121", RenderEngine: "GECKO",
		OSName: "Windows 10", OSFamily: "Windows", OSMajor: "10", OSManufacturer: "Microsoft Corporation",
		DeviceFamily: "Other", DeviceBrand: "Unknown", DeviceClass: "Desktop", DeviceType: "Computer",
		ScreenWidth: 1366, ScreenHeight: 768,
	}},
	{15, Device{
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91",
		BrowserName: "Edge 120", BrowserFamily: "Edge", BrowserVersion: "120.0.2210.91", BrowserMajor: "120", RenderEngine: "WEBKIT",
		OSName: "Windows 10", OSFamily: "Windows", OSMajor: "10", OSManufacturer: "Microsoft Corporation",
		DeviceFamily: "Other", DeviceBrand: "Unknown", DeviceClass: "Desktop", DeviceType: "Computer",
		ScreenWidth: 1536, ScreenHeight: 864,
	}},
}

var mobileProfiles = []weighted[Device]{
	{40, Device{
		Mobile:      true,
		UserAgent:   "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
		BrowserName: "Mobile Safari 17", BrowserFamily: "Mobile Safari", BrowserVersion: "17.1", BrowserMajor: "17", RenderEngine: "WEBKIT",
		OSName: "iOS", OSFamily: "iOS", OSMajor: "17", OSManufacturer: "Apple Inc.",
		DeviceFamily: "iPhone", DeviceBrand: "Apple", DeviceClass: "Phone", DeviceType: "Mobile",
		ScreenWidth: 390, ScreenHeight: 844,
	}},
	{30, Device{
		Mobile:      true,
		UserAgent:   "Mozilla/5.0 (Linux; Android 14; SM-S911B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.144 Mobile Safari/537.36",
		BrowserName: "Chrome Mobile 120", BrowserFamily: "Chrome Mobile", BrowserVersion: "120.0.6099.144", BrowserMajor: "120", RenderEngine: "WEBKIT",
		OSName: "Android", OSFamily: "Android", OSMajor: "14", OSManufacturer: "Google Inc.",
		DeviceFamily: "Samsung SM-S911B", DeviceBrand: "Samsung", DeviceClass: "Phone", DeviceType: "Mobile",
		ScreenWidth: 360, ScreenHeight: 780,
	}},
	{15, Device{
		Mobile:      true,
		UserAgent:   "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.144 Mobile Safari/537.36",
		BrowserName: "Chrome Mobile 120", BrowserFamily: "Chrome Mobile", BrowserVersion: "120.0.6099.144", BrowserMajor: "120", RenderEngine: "WEBKIT",
		OSName: "Android", OSFamily: "Android", OSMajor: "14", OSManufacturer: "Google Inc.",
		DeviceFamily: "Pixel 8", DeviceBrand: "Google", DeviceClass: "Phone", DeviceType: "Mobile",
		ScreenWidth: 412, ScreenHeight: 915,
	}},
	{15, Device{
		Mobile:      true,
		UserAgent:   "Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/120.0.6099.119 Mobile/15E148 Safari/604.1",
		BrowserName: "Chrome Mobile iOS 120", BrowserFamily: "Chrome Mobile iOS", BrowserVersion: "120.0.6099.119", BrowserMajor: "120", RenderEngine: "WEBKIT",
		OSName: "iOS", OSFamily: "iOS", OSMajor: "17", OSManufacturer: "Apple Inc.",
		DeviceFamily: "iPad", DeviceBrand: "Apple", DeviceClass: "Tablet", DeviceType: "Tablet",
		ScreenWidth: 820, ScreenHeight: 1180,
	}},
}

var botProfile = Device{
	UserAgent:   "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
	BrowserName: "Googlebot", BrowserFamily: "Googlebot", BrowserVersion: "2.1", BrowserMajor: "2", RenderEngine: "OTHER",
	OSName: "Other", OSFamily: "Other", OSManufacturer: "Other",
	DeviceFamily: "Spider", DeviceBrand: "Google", DeviceClass: "Robot", DeviceType: "Unknown",
}

// Page is a site page with its title.
type Page struct {
	Path  string
	Title string
}

const siteHost = "example.com"

var pages = []weighted[Page]{
	{30, Page{"/", "Home"}},
	{18, Page{"/products", "Products"}},
	{10, Page{"/products/analytics", "Analytics Platform"}},
	{8, Page{"/products/pipeline", "Data Pipeline"}},
	{12, Page{"/blog", "Blog"}},
	{6, Page{"/blog/web-vitals-explained", "Web Vitals Explained"}},
	{5, Page{"/pricing", "Pricing"}},
	{5, Page{"/about", "About Us"}},
	{4, Page{"/contact", "Contact"}},
	{2, Page{"/careers", "Careers"}},
}

// Referrer is the landing referrer of a session. Marketing fields are only
// set for campaign traffic.
type Referrer struct {
	URL         string
	Medium      string
	Source      string
	Term        string
	MktMedium   string
	MktSource   string
	MktCampaign string
	MktContent  string
	MktTerm     string
}

var referrers = []weighted[Referrer]{
	{35, Referrer{URL: "https://www.google.com/search?q=web+analytics", Medium: "search", Source: "Google", Term: "web analytics"}},
	{8, Referrer{URL: "https://www.bing.com/search?q=event+pipeline", Medium: "search", Source: "Bing", Term: "event pipeline"}},
	{25, Referrer{}},
	{8, Referrer{URL: "https://t.co/x7Yk2Lq", Medium: "social", Source: "Twitter"}},
	{6, Referrer{URL: "https://www.linkedin.com/feed/", Medium: "social", Source: "LinkedIn"}},
	{5, Referrer{URL: "https://www.facebook.com/", Medium: "social", Source: "Facebook"}},
	{8, Referrer{
		URL: "https://mail.google.com/", Medium: "email", Source: "Gmail",
		MktMedium: "email", MktSource: "newsletter", MktCampaign: "monthly_digest", MktContent: "header_link",
	}},
	{5, Referrer{
		URL: "https://www.google.com/", Medium: "search", Source: "Google", Term: "snowplow",
		MktMedium: "cpc", MktSource: "google", MktCampaign: "brand", MktTerm: "snowplow",
	}},
}

var consentScopes = [][]string{
	{"necessary"},
	{"necessary", "preferences"},
	{"necessary", "preferences", "statistics"},
	{"necessary", "preferences", "statistics", "marketing"},
}

var consentEventTypes = []string{"allow_all", "allow_selected", "deny_all"}

var browserLanguages = []weighted[string]{
	{50, "en-US"},
	{12, "en-GB"},
	{8, "de-DE"},
	{7, "fr-FR"},
	{6, "ja-JP"},
	{7, "pt-BR"},
	{5, "es-MX"},
	{5, "hi-IN"},
}
