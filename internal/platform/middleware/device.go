package middleware

import (
	"fmt"
	"net/http"

	"github.com/mssola/useragent"

	"doccontrol/pkg/requestcontext"
)

// Device normalizes the raw User-Agent header into a short description that
// audit events can carry without storing the full header string.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("User-Agent")
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		ua := useragent.New(raw)
		name, version := ua.Browser()
		desc := raw
		if name != "" {
			desc = fmt.Sprintf("%s %s (%s)", name, version, ua.OS())
		}
		next.ServeHTTP(w, r.WithContext(requestcontext.WithUserAgent(r.Context(), desc)))
	})
}
