package centrifuge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseWSURL(t *testing.T) {
	cases := []struct {
		url  string
		want urlComponents
	}{
		{"ws://h", urlComponents{Host: "h", Port: "80", Path: "/", Secure: false}},
		{"ws://h/p", urlComponents{Host: "h", Port: "80", Path: "/p", Secure: false}},
		{"ws://h:1234", urlComponents{Host: "h", Port: "1234", Path: "/", Secure: false}},
		{"ws://h:1234/p", urlComponents{Host: "h", Port: "1234", Path: "/p", Secure: false}},
		{"wss://h/p", urlComponents{Host: "h", Port: "443", Path: "/p", Secure: true}},
	}
	for _, tc := range cases {
		got, err := parseWSURL(tc.url)
		require.NoError(t, err, tc.url)
		require.Equal(t, tc.want, got, tc.url)
	}
}

func TestParseWSURLInvalid(t *testing.T) {
	_, err := parseWSURL("http://h")
	require.Error(t, err)
	_, err = parseWSURL("ws://")
	require.Error(t, err)
}
