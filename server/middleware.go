package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// requestIDMiddleware stamps every request with a fresh request ID, echoed
// back in X-Request-Id and threaded into the access log line so a single
// request can be traced across log entries.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

// loggingMiddleware logs each request the way walletserver's
// middleware.Logger does, tagged through the shared logging package
// instead of a bare logrus.Infof call.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithField("request_id", requestIDFrom(r.Context())).
			WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("duration", time.Since(start)).
			Info("request")
	})
}

// corsMiddleware sets the permissive CORS headers original_source's
// cors_ok_headers()/cors_preflight_allow() applied to every API response,
// since diskuto clients are expected to run from arbitrary origins.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Expose-Headers", "*")
		w.Header().Set("Access-Control-Max-Age", "86400")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET, PUT, HEAD")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// immutableEtagValue and immutableCacheControl are the literal header
// values spec.md §6 requires on every content-addressable response. The
// ETag never varies: the URL itself (user+signature, or
// user+signature+filename) already fixes the resource's identity, so the
// only thing the ETag needs to say is "this response, once served, never
// changes" — exactly original_source's HeaderValue::from_static("\"immutable\"").
const (
	immutableEtagValue    = `"immutable"`
	immutableCacheControl = "public, max-age=31536000, immutable"
)

// immutableETag wraps a handler serving content-addressable data, mirroring
// original_source's immutable_etag wrap_fn: any If-None-Match at all means
// the client already holds our one possible ETag value, so the request is
// answered 304 without ever reaching the handler or touching the database.
// On a cache miss the handler runs normally; the ETag and Cache-Control
// headers are added only once the handler commits to a successful (2xx)
// response, so a 404 (e.g. an item not yet visible through known_users)
// is never cached as if it were permanent.
func immutableETag(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != "" {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		next(&immutableEtagWriter{ResponseWriter: w}, r)
	}
}

// immutableEtagWriter injects the immutable ETag/Cache-Control headers the
// moment the wrapped handler commits to a 2xx status, and leaves them off
// entirely for any error response.
type immutableEtagWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *immutableEtagWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		if status >= 200 && status < 300 {
			w.Header().Set("ETag", immutableEtagValue)
			w.Header().Set("Cache-Control", immutableCacheControl)
		}
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *immutableEtagWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
