package logging

import (
	"log/slog"
	"net/url"
)

// RedactedStringURL is a string containing a URL for safe logging
type RedactedStringURL string

// LogValue implements slog.LogValuer to avoid revealing credentials embedded in the URL
func (s RedactedStringURL) LogValue() slog.Value {
	u, err := url.Parse(string(s))
	if err != nil {
		return slog.StringValue(string(s))
	}
	return slog.StringValue(u.Redacted())
}

// RedactStringURL returns a safely loggable URL string
func RedactStringURL(s string) slog.LogValuer {
	return RedactedStringURL(s)
}

// Secret hides a credential while still showing whether it was set
type Secret string

// LogValue implements slog.LogValuer
func (s Secret) LogValue() slog.Value {
	if s == "" {
		return slog.StringValue("<unset>")
	}
	return slog.StringValue("<redacted>")
}
