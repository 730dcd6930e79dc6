package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsSchemaMismatchRecognizesUndefinedColumnAndTable(t *testing.T) {
	assert.True(t, isSchemaMismatch(&pgconn.PgError{Code: "42703"}))
	assert.True(t, isSchemaMismatch(&pgconn.PgError{Code: "42P01"}))
}

func TestIsSchemaMismatchRejectsOtherCodesAndPlainErrors(t *testing.T) {
	assert.False(t, isSchemaMismatch(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isSchemaMismatch(errors.New("boom")))
	assert.False(t, isSchemaMismatch(fmt.Errorf("wrapped: %w", errors.New("boom"))))
}
