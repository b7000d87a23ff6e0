package apperror

import (
	"encoding/json"
	"net/http"
)

// Body JSON-представление ошибки для HTTP ответа
type Body struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ToBody конвертирует ошибку в тело ответа.
// Сообщения внутренних ошибок наружу не отдаются.
func ToBody(err error) (Body, int) {
	appErr := From(err)
	if appErr == nil {
		return Body{}, http.StatusOK
	}

	body := Body{
		Code:    appErr.Code,
		Message: appErr.Message,
		Field:   appErr.Field,
		Details: appErr.Details,
	}
	if appErr.Code == CodeInternal {
		body.Message = "internal error"
		body.Details = nil
	}

	return body, appErr.HTTPStatus()
}

// WriteHTTP пишет ошибку как JSON с соответствующим статусом
func WriteHTTP(w http.ResponseWriter, err error) {
	body, status := ToBody(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // клиент мог отключиться
}
