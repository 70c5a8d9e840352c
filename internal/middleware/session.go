// Package middleware содержит HTTP middleware панели управления подписками.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const viewIDKey contextKey = "viewID"

const sessionCookieName = "view_session"

// SessionMiddleware связывает браузер оператора с сессией просмотра через подписанный cookie.
type SessionMiddleware struct {
	secretKey []byte
	ttl       time.Duration
}

// NewSessionMiddleware создаёт SessionMiddleware. При пустом секрете ключ генерируется
// случайно, и cookie перестают быть действительными после перезапуска.
func NewSessionMiddleware(secret string, ttl time.Duration) *SessionMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &SessionMiddleware{
		secretKey: key,
		ttl:       ttl,
	}
}

// Middleware проверяет cookie сессии и добавляет идентификатор сессии в контекст запроса.
func (m *SessionMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		viewID, ok := m.parseCookie(cookie.Value)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), viewIDKey, viewID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetSessionCookie устанавливает cookie для сессии просмотра viewID.
func (m *SessionMiddleware) SetSessionCookie(w http.ResponseWriter, viewID string) {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    m.sign(viewID),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if m.ttl > 0 {
		cookie.Expires = time.Now().Add(m.ttl)
	}

	http.SetCookie(w, cookie)
}

// ClearSessionCookie удаляет cookie сессии.
func (m *SessionMiddleware) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *SessionMiddleware) sign(viewID string) string {
	mac := hmac.New(sha256.New, m.secretKey)
	mac.Write([]byte(viewID))
	return viewID + "." + hex.EncodeToString(mac.Sum(nil))
}

func (m *SessionMiddleware) parseCookie(value string) (string, bool) {
	viewID, signature, ok := strings.Cut(value, ".")
	if !ok {
		return "", false
	}
	if err := uuid.Validate(viewID); err != nil {
		return "", false
	}

	_, expected, _ := strings.Cut(m.sign(viewID), ".")
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return "", false
	}

	return viewID, true
}

// GetViewIDFromContext извлекает идентификатор сессии просмотра из контекста запроса.
func GetViewIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(viewIDKey).(string)
	return id, ok
}
