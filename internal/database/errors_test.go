package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      ErrorClass
		retryable bool
	}{
		{"nil", nil, ErrorClassPermanent, false},
		{"deadlock", &pq.Error{Code: "40P01"}, ErrorClassDeadlock, true},
		{"serialization", &pq.Error{Code: "40001"}, ErrorClassSerialization, true},
		{"lock not available", &pq.Error{Code: "55P03"}, ErrorClassTransient, true},
		{"wrapped deadlock", fmt.Errorf("decrement stock: %w", &pq.Error{Code: "40P01"}), ErrorClassDeadlock, true},
		{"check violation", &pq.Error{Code: "23514"}, ErrorClassPermanent, false},
		{"unique violation", &pq.Error{Code: "23505"}, ErrorClassPermanent, false},
		{"no rows", sql.ErrNoRows, ErrorClassPermanent, false},
		{"plain error", errors.New("boom"), ErrorClassPermanent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "deadlock", ErrorClassDeadlock.String())
	assert.Equal(t, "serialization", ErrorClassSerialization.String())
	assert.Equal(t, "transient", ErrorClassTransient.String())
	assert.Equal(t, "permanent", ErrorClassPermanent.String())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("23505")))
}
