// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package catastro

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Errors returned by the client before or after talking to the service.
var (
	ErrInvalidReference = errors.New("la referencia catastral debe tener exactamente 14 caracteres")
	ErrMissingFields    = errors.New("debes completar todos los campos")
	ErrUnsupportedSRS   = errors.New("sistema de referencia espacial no soportado")
	ErrNoData           = errors.New("no se encontraron datos para la referencia catastral")
	ErrResponseSchema   = errors.New("la estructura de la respuesta del Catastro ha cambiado")
	ErrNoMunicipalities = errors.New("no se encontraron municipios para la provincia seleccionada")
	ErrNameNotFound     = errors.New("not found")
	ErrMultipleMatches  = errors.New("multiple matches")
)

// ServiceError represents a failure reported by the cadastre service, either
// through the HTTP status or through the error list embedded in the payload.
type ServiceError struct {
	Type    ErrorType
	Message string
	Code    string // error code reported by the service, if any
	Err     error
}

// ErrorType classifies service failures.
type ErrorType int

const (
	// ErrorTypeUnknown unclassified failure.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeRateLimit the service is throttling us.
	ErrorTypeRateLimit
	// ErrorTypeTimeout the request took too long.
	ErrorTypeTimeout
	// ErrorTypeNotFound the resource does not exist.
	ErrorTypeNotFound
	// ErrorTypeInvalidRequest the service rejected the request.
	ErrorTypeInvalidRequest
	// ErrorTypeUnavailable the service or a gateway is down.
	ErrorTypeUnavailable
	// ErrorTypeService the payload carried an error list (lerr / lerrores).
	ErrorTypeService
)

func (e *ServiceError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s (código %s)", msg, e.Code)
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsRateLimitError reports whether err is a throttling response.
func IsRateLimitError(err error) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Type == ErrorTypeRateLimit
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

// IsTimeoutError reports whether err is a timeout, from the service or from
// the HTTP client.
func IsTimeoutError(err error) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Type == ErrorTypeTimeout {
		return true
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// IsNotFoundError reports whether err means the looked up entity does not
// exist.
func IsNotFoundError(err error) bool {
	if errors.Is(err, ErrNoData) || errors.Is(err, ErrNameNotFound) || errors.Is(err, ErrNoMunicipalities) {
		return true
	}

	var svcErr *ServiceError

	return errors.As(err, &svcErr) && svcErr.Type == ErrorTypeNotFound
}

// ClassifyHTTPError maps a non-success HTTP status to a ServiceError.
func ClassifyHTTPError(statusCode int) *ServiceError {
	switch statusCode {
	case http.StatusTooManyRequests:
		return &ServiceError{
			Type:    ErrorTypeRateLimit,
			Message: "límite de tasa alcanzado",
		}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return &ServiceError{
			Type:    ErrorTypeTimeout,
			Message: fmt.Sprintf("tiempo de espera agotado (código %d)", statusCode),
		}
	case http.StatusBadRequest:
		return &ServiceError{
			Type:    ErrorTypeInvalidRequest,
			Message: "petición inválida",
		}
	case http.StatusNotFound:
		return &ServiceError{
			Type:    ErrorTypeNotFound,
			Message: "recurso no encontrado",
		}
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return &ServiceError{
			Type:    ErrorTypeUnavailable,
			Message: fmt.Sprintf("servicio no disponible (código %d)", statusCode),
		}
	default:
		return &ServiceError{
			Type:    ErrorTypeUnknown,
			Message: fmt.Sprintf("error HTTP %d", statusCode),
		}
	}
}
