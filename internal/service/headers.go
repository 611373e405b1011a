package service

import (
	"net/http"
	"strings"
)

// hopByHopHeaders must not be relayed across a proxy boundary in either
// direction (RFC 9110 §7.6.1).
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection", // non-standard but still sent by some clients
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// stripRequestHeaders are removed from the inbound request before forwarding:
// hop-by-hop headers, the inbound Host, platform-injected client identity
// headers, and the cross-origin fingerprint headers that are about to be
// replaced with same-origin values.
var stripRequestHeaders = append([]string{
	"Host",
	"Forwarded",
	"X-Forwarded-For",
	"X-Forwarded-Proto",
	"X-Forwarded-Host",
	"X-Forwarded-Port",
	"X-Real-Ip",
	"True-Client-Ip",
	"CF-Connecting-IP",
	"CF-Ray",
	"CF-Visitor",
	"CF-IPCountry",
	"CF-Worker",
	"Origin",
	"Referer",
	"Cookie",
	"Sec-Fetch-Site",
	"Sec-Fetch-Mode",
	"Sec-Fetch-Dest",
	"Sec-Fetch-User",
}, hopByHopHeaders...)

// spoofRequestHeaders produces the outbound request header set: the inbound
// headers minus the strip list, with a same-origin Origin/Referer/Sec-Fetch-*
// identity the upstream's origin check accepts. Authorization and the
// portal's LocalName header pass through untouched.
func (s *RelayService) spoofRequestHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for key, vals := range src {
		dst[http.CanonicalHeaderKey(key)] = vals
	}

	// Headers named in the Connection field are hop-by-hop too.
	for _, v := range src.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				dst.Del(name)
			}
		}
	}
	for _, key := range stripRequestHeaders {
		dst.Del(key)
	}

	origin := s.UpstreamOrigin()
	dst.Set("Origin", origin)
	dst.Set("Referer", origin+s.cfg.Upstream.RefererPath)
	dst.Set("Sec-Fetch-Site", "same-origin")
	dst.Set("Sec-Fetch-Mode", "cors")
	dst.Set("Sec-Fetch-Dest", "empty")

	if cookie := s.cfg.Upstream.BootstrapCookie; cookie != "" {
		dst.Set("Cookie", cookie)
	}

	return dst
}

// sanitizeResponseHeaders removes hop-by-hop headers and any Access-Control-*
// headers the upstream may emit: the relay is the sole authority on CORS
// headers for its callers.
func sanitizeResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for key, vals := range src {
		canonical := http.CanonicalHeaderKey(key)
		if strings.HasPrefix(canonical, "Access-Control-") {
			continue
		}
		dst[canonical] = vals
	}
	for _, v := range src.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				dst.Del(name)
			}
		}
	}
	for _, key := range hopByHopHeaders {
		dst.Del(key)
	}
	return dst
}
