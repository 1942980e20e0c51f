package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_WrappingPreservesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := Wrap(cause, ErrCodeInternal, "query alerts")

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "query alerts")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestAppError_CodePredicates(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFound(NotFound("gone")))
	assert.True(t, IsConflict(Conflictf("alert %s is changing", "a-1")))
	assert.True(t, IsForbidden(Forbidden("nope")))
	assert.True(t, IsValidation(ValidationField("filter", "bad expression")))

	// Predicates see through wrapping.
	wrapped := fmt.Errorf("dismiss: %w", Conflict("version moved"))
	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsNotFound(wrapped))

	assert.False(t, IsConflict(errors.New("plain")))
}

func TestCodeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ErrCodeNotFound, CodeOf(NotFound("x")))
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("anything")))
	assert.Equal(t, ErrCodeForbidden, CodeOf(fmt.Errorf("wrap: %w", Forbidden("x"))))
}

func TestValidationField_CarriesField(t *testing.T) {
	t.Parallel()

	err := ValidationField("filter", "invalid filter expression")

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "filter", appErr.Field)
}

func TestMapDBError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFound(MapDBError(pgx.ErrNoRows)))
	assert.Equal(t, ErrCodeTimeout, CodeOf(MapDBError(context.DeadlineExceeded)))
	assert.Equal(t, ErrCodeCanceled, CodeOf(MapDBError(context.Canceled)))
	assert.Equal(t, ErrCodeInternal, CodeOf(MapDBError(errors.New("boom"))))
	assert.Nil(t, MapDBError(nil))

	unique := &pgconn.PgError{Code: pgerrcode.UniqueViolation}
	assert.True(t, IsConflict(MapDBError(unique)))

	check := &pgconn.PgError{Code: pgerrcode.CheckViolation}
	assert.True(t, IsValidation(MapDBError(check)))
}
