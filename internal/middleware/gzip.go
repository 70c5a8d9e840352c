package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

var gzipWriters = sync.Pool{
	New: func() any { return gzip.NewWriter(io.Discard) },
}

// gzipResponseWriter откладывает заголовок ответа до первой записи тела и
// сжимает только ответы с непустым телом и статусом, допускающим тело.
type gzipResponseWriter struct {
	http.ResponseWriter
	zw *gzip.Writer

	status   int
	sent     bool
	compress bool
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	if w.sent || w.status != 0 {
		return
	}
	w.status = statusCode
}

func (w *gzipResponseWriter) Write(p []byte) (int, error) {
	if !w.sent {
		if len(p) == 0 {
			return 0, nil
		}
		w.send(true)
	}
	if w.compress {
		return w.zw.Write(p)
	}
	return w.ResponseWriter.Write(p)
}

func (w *gzipResponseWriter) send(hasBody bool) {
	w.sent = true
	if w.status == 0 {
		w.status = http.StatusOK
	}

	if hasBody && bodyAllowed(w.status) {
		w.compress = true
		w.zw.Reset(w.ResponseWriter)
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")
	}
	w.ResponseWriter.WriteHeader(w.status)
}

// finish отправляет отложенный заголовок и дописывает хвост gzip-потока.
func (w *gzipResponseWriter) finish() {
	if !w.sent {
		if w.status == 0 {
			return
		}
		w.send(false)
	}
	if w.compress {
		_ = w.zw.Close()
	}
}

func bodyAllowed(status int) bool {
	return status >= http.StatusOK && status != http.StatusNoContent && status != http.StatusNotModified
}

// GzipMiddleware распаковывает тело запроса с Content-Encoding: gzip и сжимает
// ответ, если клиент принимает gzip. Ответы без тела, 204 и 304 не сжимаются.
func GzipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			zr, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			defer zr.Close()
			r.Body = zr
			r.Header.Del("Content-Encoding")
			r.ContentLength = -1
		}

		w.Header().Add("Vary", "Accept-Encoding")

		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		zw := gzipWriters.Get().(*gzip.Writer)
		gw := &gzipResponseWriter{ResponseWriter: w, zw: zw}
		defer func() {
			gw.finish()
			zw.Reset(io.Discard)
			gzipWriters.Put(zw)
		}()

		next.ServeHTTP(gw, r)
	})
}
