// Package apperr is the error taxonomy shared by the engines and the HTTP layer.
// Every concrete error unwraps to one kind sentinel and knows its transport status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrForbidden   = errors.New("forbidden")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrRateLimited = errors.New("rate limited")
	ErrInternal    = errors.New("internal error")
)

type statusCoder interface {
	StatusCode() int
}

// HTTPStatus maps err to a transport status code. Unknown errors are 500.
func HTTPStatus(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// Public reports whether err's message may be shown to a client verbatim.
func Public(err error) bool {
	return HTTPStatus(err) != http.StatusInternalServerError
}

// ---------- validation ----------

type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}
func (e *MissingFieldsError) Unwrap() error   { return ErrValidation }
func (e *MissingFieldsError) StatusCode() int { return http.StatusBadRequest }

type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}
func (e *ValidationError) Unwrap() error   { return ErrValidation }
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// ---------- authorization / lookup ----------

type ForbiddenError struct {
	Action string
}

func Forbidden(action string) *ForbiddenError { return &ForbiddenError{Action: action} }

func (e *ForbiddenError) Error() string {
	if e.Action == "" {
		return "forbidden"
	}
	return "not allowed to " + e.Action
}
func (e *ForbiddenError) Unwrap() error   { return ErrForbidden }
func (e *ForbiddenError) StatusCode() int { return http.StatusForbidden }

type NotFoundError struct {
	Resource string
	ID       int64
}

func NotFound(resource string, id int64) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}
func (e *NotFoundError) Unwrap() error   { return ErrNotFound }
func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

// ---------- listing creation ----------

type QuotaExceededError struct {
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("you have reached the maximum number of listings (%d)", e.Limit)
}
func (e *QuotaExceededError) Unwrap() error   { return ErrConflict }
func (e *QuotaExceededError) StatusCode() int { return http.StatusBadRequest }

type DuplicateTitleError struct {
	Title string
}

func (e *DuplicateTitleError) Error() string {
	return fmt.Sprintf("you already have a listing titled %q", e.Title)
}
func (e *DuplicateTitleError) Unwrap() error   { return ErrConflict }
func (e *DuplicateTitleError) StatusCode() int { return http.StatusBadRequest }

type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string { return "you are creating listings too quickly" }
func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }
func (e *RateLimitedError) StatusCode() int {
	return http.StatusTooManyRequests
}

// ---------- applications ----------

type SelfApplicationError struct{}

func (e *SelfApplicationError) Error() string   { return "you cannot apply to your own listing" }
func (e *SelfApplicationError) Unwrap() error   { return ErrForbidden }
func (e *SelfApplicationError) StatusCode() int { return http.StatusForbidden }

type DuplicateApplicationError struct{}

func (e *DuplicateApplicationError) Error() string   { return "you have already applied to this listing" }
func (e *DuplicateApplicationError) Unwrap() error   { return ErrConflict }
func (e *DuplicateApplicationError) StatusCode() int { return http.StatusConflict }

type ListingUnavailableError struct {
	Status string
}

func (e *ListingUnavailableError) Error() string {
	return fmt.Sprintf("listing is not accepting applications (status %s)", e.Status)
}
func (e *ListingUnavailableError) Unwrap() error   { return ErrConflict }
func (e *ListingUnavailableError) StatusCode() int { return http.StatusConflict }

type AlreadyDecidedError struct{}

func (e *AlreadyDecidedError) Error() string   { return "an applicant has already been selected" }
func (e *AlreadyDecidedError) Unwrap() error   { return ErrConflict }
func (e *AlreadyDecidedError) StatusCode() int { return http.StatusConflict }

// ---------- completion ----------

type AlreadyCompletedError struct{}

func (e *AlreadyCompletedError) Error() string   { return "listing is already completed" }
func (e *AlreadyCompletedError) Unwrap() error   { return ErrConflict }
func (e *AlreadyCompletedError) StatusCode() int { return http.StatusBadRequest }

type NoAcceptedApplicantError struct{}

func (e *NoAcceptedApplicantError) Error() string   { return "listing has no accepted applicant" }
func (e *NoAcceptedApplicantError) Unwrap() error   { return ErrConflict }
func (e *NoAcceptedApplicantError) StatusCode() int { return http.StatusBadRequest }

// ---------- feedback ----------

type NotCompletedError struct{}

func (e *NotCompletedError) Error() string   { return "no completed transaction eligible for feedback" }
func (e *NotCompletedError) Unwrap() error   { return ErrNotFound }
func (e *NotCompletedError) StatusCode() int { return http.StatusNotFound }

type AlreadyReviewedError struct{}

func (e *AlreadyReviewedError) Error() string   { return "feedback was already submitted for this transaction" }
func (e *AlreadyReviewedError) Unwrap() error   { return ErrConflict }
func (e *AlreadyReviewedError) StatusCode() int { return http.StatusConflict }
