// Package handlers JSON HTTP API сервиса оценки риска приглашений.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"guestrisk/pkg/apperror"
	"guestrisk/pkg/logger"
	"guestrisk/services/guestrisk-svc/internal/service"
)

const defaultMaxBodyBytes = 1 << 20

// Simulator операции сервиса, которые обслуживает API
type Simulator interface {
	Simulate(ctx context.Context, req service.SimulateRequest) (*service.SimulateResponse, error)
	Sweep(ctx context.Context, req service.SweepRequest) (*service.SweepResponse, error)
	Health(ctx context.Context) *service.HealthStatus
}

// Handler HTTP обработчики
type Handler struct {
	svc          Simulator
	maxBodyBytes int64
}

// NewHandler создаёт обработчики
func NewHandler(svc Simulator, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{svc: svc, maxBodyBytes: maxBodyBytes}
}

// HandleSimulate POST /v1/simulations
func (h *Handler) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	var req service.SimulateRequest
	if err := h.decode(w, r, &req); err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	resp, err := h.svc.Simulate(r.Context(), req)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, resp)
}

// HandleSweep POST /v1/simulations/sweep
func (h *Handler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	var req service.SweepRequest
	if err := h.decode(w, r, &req); err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	resp, err := h.svc.Sweep(r.Context(), req)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, resp)
}

// HandleHealth GET /healthz
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := h.svc.Health(r.Context())

	code := http.StatusOK
	if status.Status != "HEALTHY" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(r.Context(), w, code, status)
}

// HandleNotFound JSON ответ для неизвестных маршрутов
func HandleNotFound(w http.ResponseWriter, r *http.Request) {
	apperror.WriteHTTP(w, apperror.New(apperror.CodeNotFound, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path)))
}

// HandleMethodNotAllowed JSON ответ для неподдерживаемого метода
func HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_ = json.NewEncoder(w).Encode(apperror.Body{ //nolint:errcheck // клиент мог отключиться
		Code:    apperror.CodeInvalidArgument,
		Message: fmt.Sprintf("method %s is not allowed for %s", r.Method, r.URL.Path),
	})
}

// decode читает JSON тело запроса, неизвестные поля считаются ошибкой
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError

		switch {
		case errors.As(err, &maxErr):
			return apperror.New(apperror.CodeInvalidArgument,
				fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		case errors.Is(err, io.EOF):
			return apperror.New(apperror.CodeInvalidArgument, "request body is empty")
		case errors.As(err, &syntaxErr):
			return apperror.New(apperror.CodeInvalidArgument,
				fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset))
		case errors.As(err, &typeErr):
			return apperror.NewWithField(apperror.CodeInvalidArgument,
				fmt.Sprintf("%s must be %s", typeErr.Field, typeErr.Type), typeErr.Field)
		default:
			return apperror.New(apperror.CodeInvalidArgument, err.Error())
		}
	}

	if dec.More() {
		return apperror.New(apperror.CodeInvalidArgument, "request body must contain a single JSON object")
	}

	return nil
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(ctx).Warn("Failed to write response", "error", err)
	}
}
