package events

// ColumnType is the logical type of an atomic.events column. Warehouse
// dialects map it to a concrete SQL type.
type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeInt       ColumnType = "int"
	TypeFloat     ColumnType = "float"
	TypeBool      ColumnType = "bool"
	TypeTimestamp ColumnType = "timestamp"
	TypeJSON      ColumnType = "json"
)

// Column describes one CSV/table column.
type Column struct {
	Name string
	Type ColumnType
}

// Columns is the Snowplow atomic.events layout, in file order.
var Columns = []Column{
	{"app_id", TypeText},
	{"platform", TypeText},
	{"etl_tstamp", TypeTimestamp},
	{"collector_tstamp", TypeTimestamp},
	{"dvce_created_tstamp", TypeTimestamp},
	{"event", TypeText},
	{"event_id", TypeText},
	{"txn_id", TypeInt},
	{"name_tracker", TypeText},
	{"v_tracker", TypeText},
	{"v_collector", TypeText},
	{"v_etl", TypeText},
	{"user_id", TypeText},
	{"user_ipaddress", TypeText},
	{"user_fingerprint", TypeText},
	{"domain_userid", TypeText},
	{"domain_sessionidx", TypeInt},
	{"network_userid", TypeText},
	{"geo_country", TypeText},
	{"geo_region", TypeText},
	{"geo_city", TypeText},
	{"geo_zipcode", TypeText},
	{"geo_latitude", TypeFloat},
	{"geo_longitude", TypeFloat},
	{"geo_region_name", TypeText},
	{"ip_isp", TypeText},
	{"ip_organization", TypeText},
	{"ip_domain", TypeText},
	{"ip_netspeed", TypeText},
	{"page_url", TypeText},
	{"page_title", TypeText},
	{"page_referrer", TypeText},
	{"page_urlscheme", TypeText},
	{"page_urlhost", TypeText},
	{"page_urlport", TypeInt},
	{"page_urlpath", TypeText},
	{"page_urlquery", TypeText},
	{"page_urlfragment", TypeText},
	{"refr_urlscheme", TypeText},
	{"refr_urlhost", TypeText},
	{"refr_urlport", TypeInt},
	{"refr_urlpath", TypeText},
	{"refr_urlquery", TypeText},
	{"refr_urlfragment", TypeText},
	{"refr_medium", TypeText},
	{"refr_source", TypeText},
	{"refr_term", TypeText},
	{"mkt_medium", TypeText},
	{"mkt_source", TypeText},
	{"mkt_term", TypeText},
	{"mkt_content", TypeText},
	{"mkt_campaign", TypeText},
	{"se_category", TypeText},
	{"se_action", TypeText},
	{"se_label", TypeText},
	{"se_property", TypeText},
	{"se_value", TypeFloat},
	{"tr_orderid", TypeText},
	{"tr_affiliation", TypeText},
	{"tr_total", TypeFloat},
	{"tr_tax", TypeFloat},
	{"tr_shipping", TypeFloat},
	{"tr_city", TypeText},
	{"tr_state", TypeText},
	{"tr_country", TypeText},
	{"ti_orderid", TypeText},
	{"ti_sku", TypeText},
	{"ti_name", TypeText},
	{"ti_category", TypeText},
	{"ti_price", TypeFloat},
	{"ti_quantity", TypeInt},
	{"pp_xoffset_min", TypeInt},
	{"pp_xoffset_max", TypeInt},
	{"pp_yoffset_min", TypeInt},
	{"pp_yoffset_max", TypeInt},
	{"useragent", TypeText},
	{"br_name", TypeText},
	{"br_family", TypeText},
	{"br_version", TypeText},
	{"br_type", TypeText},
	{"br_renderengine", TypeText},
	{"br_lang", TypeText},
	{"br_features_pdf", TypeBool},
	{"br_features_flash", TypeBool},
	{"br_features_java", TypeBool},
	{"br_features_director", TypeBool},
	{"br_features_quicktime", TypeBool},
	{"br_features_realplayer", TypeBool},
	{"br_features_windowsmedia", TypeBool},
	{"br_features_gears", TypeBool},
	{"br_features_silverlight", TypeBool},
	{"br_cookies", TypeBool},
	{"br_colordepth", TypeText},
	{"br_viewwidth", TypeInt},
	{"br_viewheight", TypeInt},
	{"os_name", TypeText},
	{"os_family", TypeText},
	{"os_manufacturer", TypeText},
	{"os_timezone", TypeText},
	{"dvce_type", TypeText},
	{"dvce_ismobile", TypeBool},
	{"dvce_screenwidth", TypeInt},
	{"dvce_screenheight", TypeInt},
	{"doc_charset", TypeText},
	{"doc_width", TypeInt},
	{"doc_height", TypeInt},
	{"tr_currency", TypeText},
	{"tr_total_base", TypeFloat},
	{"tr_tax_base", TypeFloat},
	{"tr_shipping_base", TypeFloat},
	{"ti_currency", TypeText},
	{"ti_price_base", TypeFloat},
	{"base_currency", TypeText},
	{"geo_timezone", TypeText},
	{"mkt_clickid", TypeText},
	{"mkt_network", TypeText},
	{"etl_tags", TypeText},
	{"dvce_sent_tstamp", TypeTimestamp},
	{"refr_domain_userid", TypeText},
	{"refr_dvce_tstamp", TypeTimestamp},
	{"domain_sessionid", TypeText},
	{"derived_tstamp", TypeTimestamp},
	{"event_vendor", TypeText},
	{"event_name", TypeText},
	{"event_format", TypeText},
	{"event_version", TypeText},
	{"event_fingerprint", TypeText},
	{"true_tstamp", TypeTimestamp},
	{"load_tstamp", TypeTimestamp},
	{"contexts_com_snowplowanalytics_snowplow_web_page_1", TypeJSON},
	{"unstruct_event_com_snowplowanalytics_snowplow_consent_preferences_1", TypeJSON},
	{"unstruct_event_com_snowplowanalytics_snowplow_cmp_visible_1", TypeJSON},
	{"contexts_com_iab_snowplow_spiders_and_robots_1", TypeJSON},
	{"contexts_com_snowplowanalytics_snowplow_ua_parser_context_1", TypeJSON},
	{"contexts_nl_basjes_yauaa_context_1", TypeJSON},
	{"unstruct_event_com_snowplowanalytics_snowplow_web_vitals_1", TypeJSON},
}

var columnIndex = func() map[string]int {
	m := make(map[string]int, len(Columns))
	for i, c := range Columns {
		m[c.Name] = i
	}
	return m
}()

// Header returns the CSV header row.
func Header() []string {
	h := make([]string, len(Columns))
	for i, c := range Columns {
		h[i] = c.Name
	}
	return h
}

// ColumnIndex returns the position of name in the file layout, or -1.
func ColumnIndex(name string) int {
	if i, ok := columnIndex[name]; ok {
		return i
	}
	return -1
}
