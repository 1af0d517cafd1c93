package server

import (
	"errors"
	"net/http"
	"strings"

	allocationdomain "github.com/Tao119/eurekode-sub004/internal/allocation/domain"
	checkoutdomain "github.com/Tao119/eurekode-sub004/internal/checkout/domain"
	creditdomain "github.com/Tao119/eurekode-sub004/internal/credit/domain"
	"github.com/Tao119/eurekode-sub004/internal/gate"
	gendomain "github.com/Tao119/eurekode-sub004/internal/generation/domain"
	plandomain "github.com/Tao119/eurekode-sub004/internal/plan/domain"
	subscriptiondomain "github.com/Tao119/eurekode-sub004/internal/subscription/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`

	// InsufficientCredits detail for the pre-flight block UI.
	Remaining *int64        `json:"remaining,omitempty"`
	Required  *float64      `json:"required,omitempty"`
	Actions   []gate.Action `json:"actions,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var insufficient *gate.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		remaining := insufficient.Remaining
		required := insufficient.Required
		return http.StatusPaymentRequired, errorPayload{
			Type:      "insufficient_credits",
			Message:   "insufficient credits",
			Remaining: &remaining,
			Required:  &required,
			Actions:   insufficient.Actions,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isForbiddenError(err):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, creditdomain.ErrInvalidActor),
		errors.Is(err, creditdomain.ErrInvalidMode),
		errors.Is(err, creditdomain.ErrInvalidPoints),
		errors.Is(err, creditdomain.ErrInvalidTokens),
		errors.Is(err, allocationdomain.ErrInvalidActor),
		errors.Is(err, allocationdomain.ErrInvalidPoints),
		errors.Is(err, allocationdomain.ErrInvalidAction),
		errors.Is(err, checkoutdomain.ErrInvalidActor),
		errors.Is(err, subscriptiondomain.ErrInvalidOwner),
		errors.Is(err, subscriptiondomain.ErrInvalidPlan),
		errors.Is(err, subscriptiondomain.ErrInvalidReference),
		errors.Is(err, gendomain.ErrInvalidConversation),
		errors.Is(err, plandomain.ErrInvalidActor),
		errors.Is(err, plandomain.ErrUnknownTier):
		return true
	default:
		return false
	}
}

func isForbiddenError(err error) bool {
	switch {
	case errors.Is(err, ErrForbidden),
		errors.Is(err, allocationdomain.ErrForbidden),
		errors.Is(err, checkoutdomain.ErrForbidden),
		errors.Is(err, gendomain.ErrModelNotPermitted):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, allocationdomain.ErrPendingRequest),
		errors.Is(err, subscriptiondomain.ErrSubscriptionExists),
		errors.Is(err, checkoutdomain.ErrSessionCompleted):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, allocationdomain.ErrRequestNotFound),
		errors.Is(err, allocationdomain.ErrMemberNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, plandomain.ErrOrganizationNotFound),
		errors.Is(err, gendomain.ErrConversationNotFound),
		errors.Is(err, checkoutdomain.ErrPackNotFound),
		errors.Is(err, checkoutdomain.ErrSessionNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
