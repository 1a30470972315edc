package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jamilsaadou/naneye-sub000/internal/apperr"
	"github.com/jamilsaadou/naneye-sub000/internal/models"
	"github.com/jamilsaadou/naneye-sub000/internal/ratelimit"
	"github.com/jamilsaadou/naneye-sub000/internal/repository/collectorlog"
	"github.com/jamilsaadou/naneye-sub000/internal/secrets"
)

const collectorKey ctxKey = "collector"

// CollectorClaims is the payload external collectors sign with their HMAC
// secret. The issuer is the collector's code; TxnID ties the token to the
// reported transaction for the call log.
type CollectorClaims struct {
	TxnID string `json:"txn_id"`
	jwt.RegisteredClaims
}

// CollectorIdentity travels in the request context after the gateway has
// verified the bearer token.
type CollectorIdentity struct {
	Collector *models.Collector
	Claims    *CollectorClaims
}

type CollectorRepo interface {
	CollectorByCode(ctx context.Context, code string) (*models.Collector, error)
}

type CallLogger interface {
	Append(ctx context.Context, e collectorlog.Entry) error
}

// CollectorMiddleware is the external collector gateway: it verifies the
// bearer JWT against the collector's stored secret and applies the
// per-collector rate limit. Every rejected call still gets a FAILED call-log
// row so that abuse is visible even when the caller's identity is only
// partially known.
func CollectorMiddleware(repo CollectorRepo, secretKey []byte, limiter ratelimit.Limiter, calls CallLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, err := authenticate(r, repo, secretKey)
			if err != nil {
				logRejected(r, calls, ident, err)
				writeAuthError(w, err)
				return
			}

			ok, limErr := limiter.Allow(r.Context(), ident.Collector.Code)
			if limErr != nil {
				log.Printf("[GATE][ERR] rate limiter: %v", limErr)
			}
			if limErr == nil && !ok {
				err := apperr.New(apperr.KindRateLimited, apperr.ReasonNone, "rate limit exceeded")
				logRejected(r, calls, ident, err)
				writeAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCollector(r.Context(), ident)))
		})
	}
}

// WithCollector attaches a verified identity to the context.
func WithCollector(ctx context.Context, ident *CollectorIdentity) context.Context {
	return context.WithValue(ctx, collectorKey, ident)
}

// CollectorFromContext returns the identity the gateway attached.
func CollectorFromContext(ctx context.Context) (*CollectorIdentity, error) {
	ident, ok := ctx.Value(collectorKey).(*CollectorIdentity)
	if !ok || ident == nil {
		return nil, errors.New("collector identity not found in context")
	}
	return ident, nil
}

func authenticate(r *http.Request, repo CollectorRepo, secretKey []byte) (*CollectorIdentity, error) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, apperr.Auth(apperr.ReasonInvalidToken, "missing bearer token")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

	// First pass without verification, just to learn which collector is
	// calling; the signature is checked against that collector's secret.
	var claims CollectorClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil, apperr.Auth(apperr.ReasonInvalidToken, "malformed token")
	}
	issuer := claims.Issuer
	if issuer == "" {
		return nil, apperr.Auth(apperr.ReasonInvalidToken, "token has no issuer")
	}

	collector, err := repo.CollectorByCode(r.Context(), issuer)
	if err != nil {
		return nil, err
	}
	if collector == nil || !collector.Active {
		return nil, apperr.Auth(apperr.ReasonCollectorNotFound, "unknown collector "+issuer)
	}
	ident := &CollectorIdentity{Collector: collector, Claims: &claims}

	secret, err := secrets.Decrypt(secretKey, collector.EncryptedSecret)
	if err != nil {
		return ident, apperr.Auth(apperr.ReasonInvalidToken, "collector secret unavailable")
	}

	verified := CollectorClaims{}
	_, err = jwt.ParseWithClaims(raw, &verified, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return ident, apperr.Auth(apperr.ReasonInvalidToken, "token verification failed")
	}

	ident.Claims = &verified
	return ident, nil
}

func logRejected(r *http.Request, calls CallLogger, ident *CollectorIdentity, cause error) {
	if calls == nil {
		return
	}

	e := collectorlog.Entry{
		Status:  collectorlog.StatusFailed,
		Message: cause.Error(),
	}
	if ident != nil {
		if ident.Collector != nil {
			e.CollectorID = ident.Collector.ID
		}
		if ident.Claims != nil {
			e.JwtTxnID = ident.Claims.TxnID
			e.JwtIssuer = ident.Claims.Issuer
		}
	}
	if r.Body != nil {
		if body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)); err == nil && len(body) > 0 {
			e.RequestPayload = string(body)
		}
	}

	if err := calls.Append(r.Context(), e); err != nil {
		log.Printf("[GATE][LOG][ERR] %v", err)
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	code := http.StatusUnauthorized
	if apperr.KindOf(err) == apperr.KindRateLimited {
		code = http.StatusTooManyRequests
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "message": err.Error()})
}
