/*
Package logx provides a structured logging wrapper based on zerolog.

This file holds the relay's HTTP request logger. Each request gets a child logger in its
context; completion is logged with the matched route pattern, status and latency. Remote
addresses are truncated before they reach the log.
*/
package logx

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// quietPaths are logged at debug level on success.
var quietPaths = map[string]struct{}{
	"/health": {},
}

// anonymizeIP keeps the network part of an address: the first three octets of IPv4,
// the first 64 bits of IPv6.
func anonymizeIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}

	ip := net.ParseIP(addr)
	switch {
	case ip == nil:
		return "unknown_ip"
	case ip.IsLoopback():
		return "127.0.0.1"
	case ip.To4() != nil:
		return ip.To4().Mask(net.CIDRMask(24, 32)).String()
	default:
		return ip.Mask(net.CIDRMask(64, 128)).String()
	}
}

// routePattern returns the chi pattern that served r, or the raw path if none matched.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// completionEvent picks the level for a finished request.
func completionEvent(logger zerolog.Logger, r *http.Request, status int) *zerolog.Event {
	switch {
	case status >= 500:
		return logger.Error()
	case status >= 400:
		return logger.Warn()
	case status == http.StatusSwitchingProtocols:
		return logger.Info().Bool("upgrade", true)
	}

	if _, quiet := quietPaths[r.URL.Path]; quiet {
		return logger.Debug()
	}
	return logger.Info()
}

// RequestLogger returns chi middleware that attaches a request-scoped logger to the
// context and logs each request once it completes. Websocket upgrades are logged when
// the handshake finishes, not when the connection closes.
func RequestLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := Logger().With().
				Str("component", "http").
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote_ip", anonymizeIP(r.RemoteAddr)).
				Str("method", r.Method).
				Logger()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context())))

			status := ww.Status()
			if status == 0 {
				// Hijacked connections never call WriteHeader on the wrapper.
				status = http.StatusOK
				if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
					status = http.StatusSwitchingProtocols
				}
			}

			completionEvent(logger, r, status).
				Str("route", routePattern(r)).
				Str("uri", r.RequestURI).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(start)).
				Msg("Request completed")
		})
	}
}
