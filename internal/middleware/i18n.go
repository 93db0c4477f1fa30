package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

var LocaleKey = localeContextKey{}

// supportedLocales are the languages itineraries can be written in. The
// first entry is the matcher's fallback.
var supportedLocales = []language.Tag{
	language.MustParse("zh-TW"),
	language.English,
	language.Japanese,
	language.Korean,
	language.MustParse("zh-CN"),
}

var localeMatcher = language.NewMatcher(supportedLocales)

// I18N resolves the request locale from X-Locale, then Accept-Language, then
// defaultLocale.
func I18N(defaultLocale string) func(http.Handler) http.Handler {
	fallback := NegotiateLocale(defaultLocale, "")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := detectLocale(r, fallback)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			w.Header().Set("Content-Language", locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback string) string {
	if v := strings.TrimSpace(r.Header.Get("X-Locale")); v != "" {
		return NegotiateLocale(v, fallback)
	}
	if v := strings.TrimSpace(r.Header.Get("Accept-Language")); v != "" {
		return NegotiateLocale(v, fallback)
	}
	if fallback != "" {
		return fallback
	}
	return supportedLocales[0].String()
}

// NegotiateLocale matches an Accept-Language style preference list against
// the supported locales. It returns fallback when nothing matches with at
// least low confidence.
func NegotiateLocale(preference, fallback string) string {
	tags, _, err := language.ParseAcceptLanguage(preference)
	if err != nil || len(tags) == 0 {
		return fallbackLocale(fallback)
	}
	_, index, confidence := localeMatcher.Match(tags...)
	if confidence == language.No {
		return fallbackLocale(fallback)
	}
	return supportedLocales[index].String()
}

func fallbackLocale(fallback string) string {
	if fallback != "" {
		return fallback
	}
	return supportedLocales[0].String()
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return ""
}
