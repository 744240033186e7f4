package web

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aylaurquizo/KTPHackathon/internal/platform/httpx"
	"github.com/aylaurquizo/KTPHackathon/internal/platform/requestctx"
)

type ctxKey string

const (
	ctxKeyVisitor ctxKey = "visitor"
	ctxKeyCSRF    ctxKey = "csrf"
	ctxKeyHTMX    ctxKey = "htmx"
)

// visitors loads or issues the signed visitor cookie and attaches the visitor's state to the context.
func (s *Server) visitors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state, ok := s.cookies.read(r)
		if !ok {
			state = newVisitorState(s.now())
			s.cookies.write(w, state)
		}
		visitor := s.registry.Get(state.ID)

		ctx := requestctx.WithVisitorID(r.Context(), state.ID)
		ctx = context.WithValue(ctx, ctxKeyVisitor, visitor)
		ctx = context.WithValue(ctx, ctxKeyCSRF, state.CSRFToken)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func visitorFrom(ctx context.Context) *Visitor {
	v, _ := ctx.Value(ctxKeyVisitor).(*Visitor)
	return v
}

func csrfToken(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyCSRF).(string)
	return v
}

// htmx marks requests coming from htmx so handlers can answer with fragments.
func htmx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is := r.Header.Get("HX-Request") == "true"
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyHTMX, is)))
	})
}

func isHTMX(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyHTMX).(bool)
	return v
}

// csrf verifies that unsafe requests carry the visitor's token, either in the X-CSRF-Token header
// (htmx) or in the csrf_token form field (plain form posts).
func csrf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		token := csrfToken(r.Context())
		got := r.Header.Get("X-CSRF-Token")
		if got == "" {
			got = r.PostFormValue("csrf_token")
		}
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_csrf_token", "invalid CSRF token", http.StatusForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// assetsWithCache wraps a file server and applies Cache-Control and ETag handling. Mount it behind
// http.StripPrefix.
func assetsWithCache(dir string) http.Handler {
	etags := map[string]string{}
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		et, err := fileETag(path)
		if err != nil {
			return nil
		}
		if rel, err := filepath.Rel(dir, path); err == nil {
			etags["/"+filepath.ToSlash(rel)] = et
		}
		return nil
	})
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Accept-Encoding")
		w.Header().Set("Cache-Control", "public, max-age=604800, stale-while-revalidate=86400")
		path := r.URL.Path
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		if et := etags[path]; et != "" {
			w.Header().Set("ETag", et)
			if inm := r.Header.Get("If-None-Match"); inm != "" && inm == et {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
		fs.ServeHTTP(w, r)
	})
}

func fileETag(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return `W/"` + hex.EncodeToString(h.Sum(nil)) + `"`, nil
}
