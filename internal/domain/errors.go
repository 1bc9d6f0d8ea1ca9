package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Webhook Errors (WEBHOOK_*)
	ErrorCodeSignatureInvalid ErrorCode = "WEBHOOK_SIGNATURE_INVALID"
	ErrorCodePayloadMalformed ErrorCode = "WEBHOOK_PAYLOAD_MALFORMED"

	// Order Errors (ORDER_*)
	ErrorCodeOrderNotFound       ErrorCode = "ORDER_NOT_FOUND"
	ErrorCodeOrderAmbiguous      ErrorCode = "ORDER_AMBIGUOUS"
	ErrorCodeOrderForeignGateway ErrorCode = "ORDER_FOREIGN_GATEWAY"

	// Processor Errors (PROCESSOR_*)
	ErrorCodeProcessorUnavailable ErrorCode = "PROCESSOR_UNAVAILABLE"
	ErrorCodeProcessorUnsupported ErrorCode = "PROCESSOR_UNSUPPORTED"
	ErrorCodeInvoiceNotFound      ErrorCode = "PROCESSOR_INVOICE_NOT_FOUND"

	// Refund Errors (REFUND_*)
	ErrorCodeInsufficientPermission ErrorCode = "REFUND_INSUFFICIENT_PERMISSION"

	// Invoice Lifecycle Errors (INVOICE_*)
	ErrorCodeInvoiceStateConflict ErrorCode = "INVOICE_STATE_CONFLICT"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Internal Errors (INTERNAL_*)
	ErrorCodeStoreError    ErrorCode = "INTERNAL_STORE_ERROR"
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsProcessorError checks if an error came from an outbound processor call
func IsProcessorError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeProcessorUnavailable ||
		code == ErrorCodeProcessorUnsupported ||
		code == ErrorCodeInvoiceNotFound
}

// Structured error instances
var (
	ErrSignatureInvalid = NewDomainError(ErrorCodeSignatureInvalid, "webhook signature verification failed")
	ErrPayloadMalformed = NewDomainError(ErrorCodePayloadMalformed, "webhook payload malformed")

	ErrOrderNotFound       = NewDomainError(ErrorCodeOrderNotFound, "no order found for invoice")
	ErrOrderAmbiguous      = NewDomainError(ErrorCodeOrderAmbiguous, "multiple orders found for invoice")
	ErrOrderForeignGateway = NewDomainError(ErrorCodeOrderForeignGateway, "order belongs to another payment gateway")

	ErrProcessorUnavailable = NewDomainError(ErrorCodeProcessorUnavailable, "payment processor unavailable")
	ErrProcessorUnsupported = NewDomainError(ErrorCodeProcessorUnsupported, "payment processor does not support this operation")
	ErrInvoiceNotFound      = NewDomainError(ErrorCodeInvoiceNotFound, "invoice not found on payment processor")

	ErrInsufficientPermission = NewDomainError(ErrorCodeInsufficientPermission, "API key lacks pull payment permission")
	ErrInvoiceStateConflict   = NewDomainError(ErrorCodeInvoiceStateConflict, "existing invoice does not match requested payment methods")

	ErrValidationFailed = NewDomainError(ErrorCodeValidationFailed, "validation failed")

	ErrStoreError    = NewDomainError(ErrorCodeStoreError, "order store error")
	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal error")
)
