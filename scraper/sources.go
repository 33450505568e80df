package scraper

// Kind tells the scraper how to pull endpoints out of a source
type Kind string

const (
	// KindText runs the endpoint pattern over the raw response body
	KindText Kind = "text"
	// KindJSON decodes the common proxy list API shapes
	KindJSON Kind = "json"
	// KindHTML crawls the page and reads ip:port pairs from table rows
	KindHTML Kind = "html"
)

// Source represents one proxy list source
type Source struct {
	URL  string
	Kind Kind
}

// DefaultSources returns the built-in source list. The mix covers plain
// text dumps, JSON APIs and HTML table sites.
func DefaultSources() []Source {
	return []Source{
		// Plain text lists
		{"https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/http.txt", KindText},
		{"https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/socks4.txt", KindText},
		{"https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/socks5.txt", KindText},
		{"https://github.com/zloi-user/hideip.me/raw/refs/heads/master/http.txt", KindText},
		{"https://github.com/zloi-user/hideip.me/raw/refs/heads/master/https.txt", KindText},
		{"https://github.com/zloi-user/hideip.me/raw/refs/heads/master/connect.txt", KindText},
		{"https://github.com/zloi-user/hideip.me/raw/refs/heads/master/socks4.txt", KindText},
		{"https://github.com/zloi-user/hideip.me/raw/refs/heads/master/socks5.txt", KindText},
		{"https://raw.githubusercontent.com/ErcinDedeoglu/proxies/main/proxies/http.txt", KindText},
		{"https://raw.githubusercontent.com/ErcinDedeoglu/proxies/main/proxies/https.txt", KindText},
		{"https://raw.githubusercontent.com/ErcinDedeoglu/proxies/main/proxies/socks4.txt", KindText},
		{"https://raw.githubusercontent.com/ErcinDedeoglu/proxies/main/proxies/socks5.txt", KindText},
		{"https://raw.githubusercontent.com/vakhov/fresh-proxy-list/master/http.txt", KindText},
		{"https://raw.githubusercontent.com/vakhov/fresh-proxy-list/master/https.txt", KindText},
		{"https://raw.githubusercontent.com/vakhov/fresh-proxy-list/master/socks4.txt", KindText},
		{"https://raw.githubusercontent.com/vakhov/fresh-proxy-list/master/socks5.txt", KindText},
		{"https://raw.githubusercontent.com/monosans/proxy-list/main/proxies/http.txt", KindText},
		{"https://raw.githubusercontent.com/monosans/proxy-list/main/proxies/socks4.txt", KindText},
		{"https://raw.githubusercontent.com/monosans/proxy-list/main/proxies/socks5.txt", KindText},
		{"https://raw.githubusercontent.com/roosterkid/openproxylist/main/HTTPS_RAW.txt", KindText},
		{"https://raw.githubusercontent.com/roosterkid/openproxylist/main/SOCKS4_RAW.txt", KindText},
		{"https://raw.githubusercontent.com/roosterkid/openproxylist/main/SOCKS5_RAW.txt", KindText},
		{"https://raw.githubusercontent.com/hookzof/socks5_list/master/proxy.txt", KindText},
		{"https://raw.githubusercontent.com/clarketm/proxy-list/master/proxy-list-raw.txt", KindText},
		{"https://raw.githubusercontent.com/sunny9577/proxy-scraper/master/proxies.txt", KindText},
		{"https://raw.githubusercontent.com/zevtyardt/proxy-list/main/http.txt", KindText},
		{"https://raw.githubusercontent.com/almroot/proxylist/master/list.txt", KindText},
		{"https://raw.githubusercontent.com/jetkai/proxy-list/main/online-proxies/txt/proxies-http.txt", KindText},
		{"https://raw.githubusercontent.com/ShiftyTR/Proxy-List/master/http.txt", KindText},
		{"https://api.proxyscrape.com/v2/?request=get&protocol=http&timeout=10000&country=all&ssl=all&anonymity=all", KindText},
		{"https://api.proxyscrape.com/v2/?request=get&protocol=socks4&timeout=10000&country=all&ssl=all&anonymity=all", KindText},
		{"https://api.proxyscrape.com/v2/?request=get&protocol=socks5&timeout=10000&country=all&ssl=all&anonymity=all", KindText},

		// JSON APIs
		{"https://proxylist.geonode.com/api/proxy-list?limit=500&page=1&sort_by=lastChecked&sort_type=desc", KindJSON},

		// HTML table sites
		{"https://free-proxy-list.net/", KindHTML},
		{"https://www.sslproxies.org/", KindHTML},
	}
}

// ParseKind maps a config string onto a source kind, defaulting to text
func ParseKind(s string) Kind {
	switch Kind(s) {
	case KindJSON:
		return KindJSON
	case KindHTML:
		return KindHTML
	default:
		return KindText
	}
}
