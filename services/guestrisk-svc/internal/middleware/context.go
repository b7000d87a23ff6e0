package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"guestrisk/pkg/logger"
)

// RequestIDHeader заголовок с идентификатором запроса
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen длиннее клиентский id не принимаем и генерируем свой
const maxRequestIDLen = 128

type requestIDKey struct{}

// GetRequestID извлекает request_id из контекста
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithRequestID кладёт request_id в контекст, GetRequestID его достаёт
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GenerateRequestID случайный UUIDv4
func GenerateRequestID() string {
	return uuid.NewString()
}

// RequestID берёт X-Request-ID клиента или генерирует новый,
// кладёт его в контекст вместе с логгером и возвращает в ответе
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = GenerateRequestID()
		}

		ctx := logger.NewContext(WithRequestID(r.Context(), id), logger.WithRequestID(id))

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
