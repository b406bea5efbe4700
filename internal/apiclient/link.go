package apiclient

import (
	"net/http"
	"regexp"
)

var linkNextRE = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="?next"?`)

// NextLink extracts the rel="next" URL from an RFC 8288 Link header.
func NextLink(h http.Header) string {
	for _, v := range h.Values("Link") {
		if m := linkNextRE.FindStringSubmatch(v); m != nil {
			return m[1]
		}
	}
	return ""
}
