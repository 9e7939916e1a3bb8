package httpapi

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// AuthConfig carries the operator-facing credentials. AdminSecretHash is a
// bcrypt hash of the admin secret; JWTKey signs admin session tokens;
// CronSecret guards the external daily-roi hook.
type AuthConfig struct {
	AdminSecretHash string
	JWTKey          []byte
	CronSecret      string
	TokenTTL        time.Duration
}

var (
	errUnauthorized    = errors.New("unauthorized")
	errTooManyRequests = errors.New("too many requests")
)

func (h *Handler) adminLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Secret string `json:"secret"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if h.auth.AdminSecretHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(h.auth.AdminSecretHash), []byte(payload.Secret)) != nil {
		h.log.Warn("admin login rejected")
		writeError(w, http.StatusForbidden, errUnauthorized)
		return
	}

	ttl := h.auth.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	claims := jwt.StandardClaims{
		Subject:   "admin",
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.auth.JWTKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":     token,
		"expiresAt": claims.ExpiresAt,
	})
}

// requireAdmin validates the Bearer token on admin endpoints.
func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}

		claims := &jwt.StandardClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return h.auth.JWTKey, nil
		})
		if err != nil || !token.Valid || claims.Subject != "admin" {
			writeError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}

		next(w, r)
	}
}

// requireCronSecret guards the external scheduler hook.
func (h *Handler) requireCronSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret := r.URL.Query().Get("secret")
		if secret == "" {
			secret = r.Header.Get("X-Cron-Secret")
		}
		if h.auth.CronSecret == "" ||
			subtle.ConstantTimeCompare([]byte(secret), []byte(h.auth.CronSecret)) != 1 {
			writeError(w, http.StatusForbidden, errUnauthorized)
			return
		}
		next(w, r)
	}
}
