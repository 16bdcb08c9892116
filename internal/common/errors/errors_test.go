package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStandardError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("review: %w", NewForbiddenError("review listing"))

	assert.True(t, stderrors.Is(err, ErrForbidden))
	assert.False(t, stderrors.Is(err, ErrNotFound))
}

func TestNewValidationError_KeepsEveryField(t *testing.T) {
	err := NewValidationError([]FieldError{
		{Field: "name", Code: "REQUIRED_FIELD_MISSING", Message: "required field missing"},
		{Field: "url", Code: "INVALID_FORMAT", Message: "must be an absolute URL"},
	})

	assert.Len(t, err.Fields, 2)
	assert.Contains(t, err.Details, "name: required field missing")
	assert.Contains(t, err.Details, "url: must be an absolute URL")
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestAsStandard_WrapsPlainErrors(t *testing.T) {
	plain := stderrors.New("boom")
	std := AsStandard(plain)

	assert.Equal(t, ErrCodeInternal, std.Code)
	assert.True(t, stderrors.Is(std, plain))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(plain))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewUnauthenticatedError("missing token"), http.StatusUnauthorized},
		{NewForbiddenError("list pending"), http.StatusForbidden},
		{NewNotFoundError("listing", 4), http.StatusNotFound},
		{NewSearchQueryFailedError(stderrors.New("es down")), http.StatusBadGateway},
		{NewDatabaseQueryFailedError("insert", stderrors.New("conn reset")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), AsStandard(tt.err).Code)
	}
}

func TestConvertToBPMNError(t *testing.T) {
	b := ConvertToBPMNError(NewDatabaseQueryFailedError("update status", stderrors.New("timeout")))
	assert.Equal(t, "DATABASE_QUERY_FAILED", b.Code)
	assert.Equal(t, 3, b.Retries)
	assert.Equal(t, "DATABASE_QUERY_FAILED", b.ToErrorVariables()["originalErrorCode"])

	b = ConvertToBPMNError(NewForbiddenError("review listing"))
	assert.Equal(t, 0, b.Retries)
	assert.False(t, b.Retryable)
}
