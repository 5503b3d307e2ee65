package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetryOperation_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	result, err := retryOperation(context.Background(), zap.NewNop(), "op", 3, time.Millisecond,
		func() (string, error) {
			attempts++
			if attempts < 3 {
				return "", errors.New("transient")
			}
			return "ok", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestRetryOperation_ReturnsLastErrorWhenBudgetSpent(t *testing.T) {
	attempts := 0
	_, err := retryOperation(context.Background(), zap.NewNop(), "op", 3, time.Millisecond,
		func() (string, error) {
			attempts++
			return "", errors.New("still broken")
		})
	require.Error(t, err)
	assert.Equal(t, "still broken", err.Error())
	assert.Equal(t, 3, attempts)
}

func TestRetryOperation_HonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := retryOperation(ctx, zap.NewNop(), "op", 3, time.Minute,
		func() (string, error) {
			attempts++
			return "", errors.New("transient")
		})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
