package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"guestrisk/pkg/apperror"
	"guestrisk/pkg/logger"
)

// Recover превращает панику обработчика в 500 INTERNAL_ERROR.
// http.ErrAbortHandler пробрасывается дальше, им net/http обрывает соединение.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			logger.FromContext(r.Context()).Error("Handler panicked",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)

			apperror.WriteHTTP(w, apperror.New(apperror.CodeInternal, fmt.Sprintf("panic: %v", rec)))
		}()

		next.ServeHTTP(w, r)
	})
}
