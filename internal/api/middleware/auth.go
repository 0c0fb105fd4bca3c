package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"autoexit/pkg/crypto"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Заголовки секрета внешнего планировщика
const (
	SchedulerSecretHeader = "X-Scheduler-Secret"
	InternalSecretHeader  = "X-Internal-Secret"
)

// ErrMissingToken - запрос без Authorization: Bearer
var ErrMissingToken = errors.New("missing bearer token")

// SubjectFromContext возвращает subject JWT токена (пусто без авторизации)
func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey).(string)
	return sub
}

// SchedulerAuth проверяет секрет внешнего планировщика тиков
//
// Секрет в конфигурации может быть открытым значением или bcrypt хешем
// (см. crypto.VerifySecret). Пустой секрет отключает проверку.
type SchedulerAuth struct {
	secret string
	logger *zap.Logger
}

// NewSchedulerAuth создаёт проверку секрета планировщика
func NewSchedulerAuth(secret string, logger *zap.Logger) *SchedulerAuth {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulerAuth{secret: secret, logger: logger}
}

// Enabled возвращает true, если секрет настроен
func (a *SchedulerAuth) Enabled() bool {
	return a != nil && a.secret != ""
}

// Check проверяет секрет в заголовках запроса.
// Без настроенного секрета пропускает любой запрос.
func (a *SchedulerAuth) Check(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}
	return a.Presented(r)
}

// Presented возвращает true, если запрос несёт верный секрет
func (a *SchedulerAuth) Presented(r *http.Request) bool {
	if !a.Enabled() {
		return false
	}
	provided := r.Header.Get(SchedulerSecretHeader)
	if provided == "" {
		provided = r.Header.Get(InternalSecretHeader)
	}
	return crypto.VerifySecret(provided, a.secret) == nil
}

// Middleware отвечает 401 при неверном секрете
func (a *SchedulerAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Check(r) {
			a.logger.Warn("Scheduler secret mismatch",
				zap.String("path", r.URL.Path),
				zap.String("client_ip", clientIP(r)),
			)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// JWTAuth - middleware для проверки Bearer токена (HS256)
//
// Пустой secret отключает авторизацию (локальное развертывание).
// Запрос с верным секретом планировщика пропускается без токена.
// subject токена кладётся в context (SubjectFromContext).
func JWTAuth(secret string, scheduler *SchedulerAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		key := []byte(secret)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || scheduler.Presented(r) {
				next.ServeHTTP(w, r)
				return
			}

			subject, err := parseBearer(r, key)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey, subject)))
		})
	}
}

// parseBearer проверяет подпись и срок действия токена
func parseBearer(r *http.Request, key []byte) (string, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", ErrMissingToken
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims,
		func(t *jwt.Token) (interface{}, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.Subject, nil
}
