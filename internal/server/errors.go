package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/zyalhor1961/corematch-web-sub006/internal/account/domain"
	alertdomain "github.com/zyalhor1961/corematch-web-sub006/internal/alert/domain"
	apikeydomain "github.com/zyalhor1961/corematch-web-sub006/internal/apikey/domain"
	authdomain "github.com/zyalhor1961/corematch-web-sub006/internal/auth/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/authorization"
	bidomain "github.com/zyalhor1961/corematch-web-sub006/internal/bi/domain"
	debdomain "github.com/zyalhor1961/corematch-web-sub006/internal/deb/domain"
	documentdomain "github.com/zyalhor1961/corematch-web-sub006/internal/document/domain"
	hscodedomain "github.com/zyalhor1961/corematch-web-sub006/internal/hscode/domain"
	invitationdomain "github.com/zyalhor1961/corematch-web-sub006/internal/invitation/domain"
	invoicedomain "github.com/zyalhor1961/corematch-web-sub006/internal/invoice/domain"
	journaldomain "github.com/zyalhor1961/corematch-web-sub006/internal/journal/domain"
	leaddomain "github.com/zyalhor1961/corematch-web-sub006/internal/lead/domain"
	organizationdomain "github.com/zyalhor1961/corematch-web-sub006/internal/organization/domain"
	productdomain "github.com/zyalhor1961/corematch-web-sub006/internal/product/domain"
	quotedomain "github.com/zyalhor1961/corematch-web-sub006/internal/quote/domain"
	screeningdomain "github.com/zyalhor1961/corematch-web-sub006/internal/screening/domain"
	taxdomain "github.com/zyalhor1961/corematch-web-sub006/internal/tax/domain"
	pkgdb "github.com/zyalhor1961/corematch-web-sub006/pkg/db"
	"gorm.io/gorm"
)

// Error taxonomy. Every failure body carries exactly one of these types
// and clients branch on the type, not the HTTP status.
const (
	errTypeValidation   = "validation_error"
	errTypeUnauthorized = "unauthorized"
	errTypeAccessDenied = "access_denied"
	errTypeNotFound     = "not_found"
	errTypeConflict     = "conflict"
	errTypeRateLimited  = "rate_limited"
	errTypeDatabase     = "database_error"
	errTypeUnavailable  = "service_unavailable"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code,omitempty"`
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
}

type errorResponse struct {
	Success bool         `json:"success"`
	Error   errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("access_denied")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// ErrorHandlingMiddleware renders the failure envelope from the last
// error a handler recorded. Handler bodies never write error JSON.
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
		c.AbortWithStatusJSON(status, errorResponse{Success: false, Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
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
			Type:    errTypeDatabase,
			Message: "internal server error",
		}
	}

	var lineErr *debdomain.LineValidationError
	if errors.As(err, &lineErr) && lineErr != nil {
		fields := make([]ValidationError, 0, len(lineErr.Issues))
		for _, issue := range lineErr.Issues {
			fields = append(fields, ValidationError{
				Field:   issue.Field,
				Code:    "invalid_line",
				Message: fmt.Sprintf("line %s: %s", issue.LineID, issue.Message),
			})
		}
		return http.StatusBadRequest, errorPayload{
			Type:    errTypeValidation,
			Message: lineErr.Error(),
			Errors:  fields,
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    errTypeValidation,
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    errTypeValidation,
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
	case isUnauthorizedError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    errTypeUnauthorized,
			Message: "unauthorized",
		}
	case isAccessDeniedError(err):
		return http.StatusForbidden, errorPayload{
			Type:    errTypeAccessDenied,
			Message: "access denied",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    errTypeNotFound,
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    errTypeConflict,
			Message: "conflict",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    errTypeRateLimited,
			Message: "rate limit exceeded",
		}
	case isUnavailableError(err):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    errTypeUnavailable,
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    errTypeDatabase,
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
		errors.Is(err, bidomain.ErrInvalidOrganization),
		errors.Is(err, invitationdomain.ErrInvalidInvite):
		return true
	case isDocumentValidationError(err),
		isJournalValidationError(err),
		isInvoiceValidationError(err),
		isAccountValidationError(err),
		isLeadValidationError(err),
		isQuoteValidationError(err),
		isScreeningValidationError(err),
		isHSCodeValidationError(err),
		isDEBValidationError(err),
		isAlertValidationError(err),
		isOrganizationValidationError(err),
		isInviteValidationError(err),
		isAPIKeyValidationError(err),
		isAuditValidationError(err),
		isTaxValidationError(err),
		isProductValidationError(err):
		return true
	default:
		return false
	}
}

func isUnauthorizedError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionNotFound),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked):
		return true
	default:
		return false
	}
}

func isAccessDeniedError(err error) bool {
	switch {
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, organizationdomain.ErrNotMember),
		errors.Is(err, invitationdomain.ErrEmailMismatch),
		errors.Is(err, authdomain.ErrMustChangePassword):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, documentdomain.ErrNotFound),
		errors.Is(err, journaldomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, accountdomain.ErrNotFound),
		errors.Is(err, leaddomain.ErrNotFound),
		errors.Is(err, quotedomain.ErrNotFound),
		errors.Is(err, screeningdomain.ErrNotFound),
		errors.Is(err, debdomain.ErrNotFound),
		errors.Is(err, debdomain.ErrLineNotFound),
		errors.Is(err, alertdomain.ErrNotFound),
		errors.Is(err, taxdomain.ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, apikeydomain.ErrNotFound),
		errors.Is(err, invitationdomain.ErrInviteNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, documentdomain.ErrStatusConflict),
		errors.Is(err, journaldomain.ErrStatusConflict),
		errors.Is(err, invoicedomain.ErrStatusConflict),
		errors.Is(err, quotedomain.ErrStatusConflict),
		errors.Is(err, quotedomain.ErrExpired),
		errors.Is(err, screeningdomain.ErrStatusConflict),
		errors.Is(err, screeningdomain.ErrNotFailed),
		errors.Is(err, debdomain.ErrStatusConflict),
		errors.Is(err, debdomain.ErrNotDraft),
		errors.Is(err, debdomain.ErrAlreadyExists),
		errors.Is(err, accountdomain.ErrCodeTaken),
		errors.Is(err, productdomain.ErrSKUTaken),
		errors.Is(err, leaddomain.ErrTerminalStatus),
		errors.Is(err, invitationdomain.ErrAlreadyMember),
		errors.Is(err, invitationdomain.ErrAlreadyInvited),
		errors.Is(err, invitationdomain.ErrInviteNotPending),
		errors.Is(err, invitationdomain.ErrInviteExpired),
		errors.Is(err, authdomain.ErrUserExists):
		return true
	default:
		return pkgdb.IsDuplicateKeyErr(err)
	}
}

func isUnavailableError(err error) bool {
	switch {
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, leaddomain.ErrSourcingUnavailable),
		errors.Is(err, hscodedomain.ErrUnavailable):
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
	if strings.HasPrefix(code, "missing_") {
		return strings.TrimPrefix(code, "missing_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return strings.ReplaceAll(code, "_", " ")
	}
}

// classifyErrorForLog buckets handler errors for the request logger.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 && payload.Errors[0].Code != "" {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func isHSCodeValidationError(err error) bool {
	switch err {
	case hscodedomain.ErrInvalidOrganization,
		hscodedomain.ErrMissingDescription:
		return true
	default:
		return false
	}
}
