package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

type contextKey string

const subjectKey contextKey = "subject"

const (
	cookieName = "session_token"
	tokenTTL   = 30 * 24 * time.Hour
)

// Authenv issues and checks API tokens. AccessKeyHash is the bcrypt hash
// of the shared access key exchanged at /api/token.
type Authenv struct {
	JWTKey        []byte
	AccessKeyHash []byte
	Logger        *slog.Logger
	Now           func() time.Time
}

type TokenRequest struct {
	AccessKey string `json:"access_key"`
	Client    string `json:"client"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type IPRateLimiter struct {
	ips map[string]*rate.Limiter
	mu  sync.RWMutex
	r   rate.Limit
	b   int
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*rate.Limiter),
		r:   r,
		b:   b,
	}
}

func (i *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, exists := i.ips[ip]
	if !exists {
		limiter = rate.NewLimiter(i.r, i.b)
		i.ips[ip] = limiter
	}
	return limiter
}

// Rate limiting middleware
func (i *IPRateLimiter) LimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		limiter := i.getLimiter(ip)
		if !limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "Too Many Requests. Try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HashAccessKey returns the bcrypt hash to configure as ACCESS_KEY_HASH.
func HashAccessKey(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	return string(bytes), err
}

func (env *Authenv) log() *slog.Logger {
	if env.Logger == nil {
		return slog.Default()
	}
	return env.Logger
}

func (env *Authenv) now() time.Time {
	if env.Now != nil {
		return env.Now()
	}
	return time.Now()
}

// TokenHandler exchanges the access key for a signed token. The token is
// returned in the body and set as the session cookie.
func (env *Authenv) TokenHandler(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.AccessKey == "" {
		writeError(w, http.StatusBadRequest, "Access key required")
		return
	}
	if len(env.AccessKeyHash) == 0 {
		writeError(w, http.StatusServiceUnavailable, "Token issuing is disabled")
		return
	}
	if err := bcrypt.CompareHashAndPassword(env.AccessKeyHash, []byte(req.AccessKey)); err != nil {
		env.log().Warn("rejected access key", slog.String("remote", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "Invalid access key")
		return
	}

	client := strings.TrimSpace(req.Client)
	if client == "" {
		client = "api"
	}
	token, exp, err := env.Issue(client)
	if err != nil {
		env.log().Error("signing token failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Token error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Expires:  exp,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TokenResponse{Token: token, ExpiresAt: exp})
}

// Issue signs an HS256 token for subject.
func (env *Authenv) Issue(subject string) (string, time.Time, error) {
	now := env.now()
	exp := now.Add(tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString(env.JWTKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp.Truncate(time.Second), nil
}

func (env *Authenv) parse(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return env.JWTKey, nil
	}, jwt.WithTimeFunc(env.now))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// AuthMiddleware accepts a bearer token or the session cookie.
func (env *Authenv) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw string
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			raw = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		} else if cookie, err := r.Cookie(cookieName); err == nil {
			raw = cookie.Value
		}
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		subject, err := env.parse(raw)
		if err != nil {
			env.log().Debug("token rejected", slog.Any("error", err))
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Subject returns the authenticated client name stored by AuthMiddleware.
func Subject(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
