package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"tradeledger/internal/core/apperror"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, MapError(nil))

	notFound := apperror.NewNotFound("order", "42")
	assert.Same(t, notFound, MapError(notFound))

	plain := errors.New("boom")
	assert.Equal(t, plain, MapError(plain))

	tests := []struct {
		code  string
		check func(error) bool
	}{
		{pgUniqueViolation, apperror.IsConflict},
		{pgForeignKeyViolation, apperror.IsValidation},
		{pgCheckViolation, apperror.IsValidation},
		{pgSerializationFailure, apperror.IsTransient},
		{pgDeadlockDetected, apperror.IsTransient},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := MapError(fmt.Errorf("exec: %w", &pgconn.PgError{Code: tt.code}))
			assert.True(t, tt.check(err), "unexpected mapping: %v", err)
		})
	}
}
