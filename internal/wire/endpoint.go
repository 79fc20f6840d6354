package wire

import (
	"fmt"
	"net/url"
	"strings"
)

// PushSegment is the path segment of the push endpoint, a sibling of the page
// that hosts the client.
const PushSegment = "pusher"

// PushURL derives the push endpoint from a page location: same host, last
// path segment replaced by PushSegment, http mapped to ws and https to wss.
//
//	http://screens.local/lobby/index.html -> ws://screens.local/lobby/pusher
func PushURL(page string) (string, error) {
	u, err := url.Parse(page)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported page scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("page url %q has no host", page)
	}
	p := u.Path
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[:i+1]
	} else {
		p = "/"
	}
	u.Path = p + PushSegment
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
