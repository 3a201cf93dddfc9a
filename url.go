package centrifuge

import (
	"fmt"
	"net"
	"strings"
)

// urlComponents is the parsed form of a ws(s):// connection URL.
type urlComponents struct {
	Host   string
	Port   string
	Path   string
	Secure bool
}

// parseWSURL parses a ws://host[:port][/path] or wss://host[:port][/path]
// URL. Default port is 80 for ws, 443 for wss; default path is "/".
func parseWSURL(raw string) (urlComponents, error) {
	var secure bool
	var rest string
	switch {
	case strings.HasPrefix(raw, "wss://"):
		secure = true
		rest = raw[len("wss://"):]
	case strings.HasPrefix(raw, "ws://"):
		secure = false
		rest = raw[len("ws://"):]
	default:
		return urlComponents{}, &ConfigError{Reason: "url scheme must be ws or wss", Err: ErrInvalidURL}
	}

	path := "/"
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		path = rest[idx:]
		rest = rest[:idx]
	}
	if rest == "" {
		return urlComponents{}, &ConfigError{Reason: "url host must be non-empty", Err: ErrInvalidURL}
	}

	host := rest
	port := "80"
	if secure {
		port = "443"
	}
	if h, p, err := net.SplitHostPort(rest); err == nil {
		host, port = h, p
	}

	return urlComponents{Host: host, Port: port, Path: path, Secure: secure}, nil
}

// dialURL renders urlComponents back into a ws(s):// URL suitable for
// gorilla/websocket's Dialer.
func (u urlComponents) dialURL() string {
	scheme := "ws"
	if u.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, net.JoinHostPort(u.Host, u.Port), strings.TrimPrefix(u.Path, "/"))
}
