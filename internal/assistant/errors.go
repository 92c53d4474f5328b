package assistant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// APIError représente une réponse d'erreur du service génératif
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("assistant api: http %d", e.StatusCode)
	}
	return fmt.Sprintf("assistant api: http %d: %s", e.StatusCode, e.Message)
}

// IsNotFound retourne true pour un 404. Pendant l'indexation, un 404
// signifie "pas encore visible", pas une panne.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsRateLimited retourne true pour un 429
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsNotFound retourne true si err est un 404 du service distant
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsNotFound()
}

// IsRateLimited retourne true si err est un 429 du service distant
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsRateLimited()
}

// IsTimeout retourne true si err est un timeout réseau sur l'appel
// lui-même (et non un statut distant)
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
