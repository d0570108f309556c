package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
)

// Success sends a success response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// Error maps an error to its HTTP shape. Domain sentinels carry their own
// status; anything unrecognised is a 500.
func Error(c *gin.Context, err error) {
	var appErr *domainerrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.Code, gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		})
		return
	}

	status := statusOf(err)
	c.JSON(status, gin.H{
		"code":    status,
		"message": messageOf(err, status),
	})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domainerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainerrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domainerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domainerrors.ErrUnknownAccount),
		errors.Is(err, domainerrors.ErrCurrencyMismatch),
		errors.Is(err, domainerrors.ErrInsufficientFunds),
		errors.Is(err, domainerrors.ErrInsufficientLiquidity),
		errors.Is(err, domainerrors.ErrRateExpired),
		errors.Is(err, domainerrors.ErrIllegalTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domainerrors.ErrOperationsSuspended):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func messageOf(err error, status int) string {
	if status == http.StatusInternalServerError {
		// never leak internals
		return "internal server error"
	}
	return err.Error()
}
