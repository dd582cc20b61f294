package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesOrdering(t *testing.T) {
	up, err := Files("up")
	require.NoError(t, err)
	require.NotEmpty(t, up)
	assert.IsIncreasing(t, up)

	down, err := Files("down")
	require.NoError(t, err)
	require.Len(t, down, len(up))
	assert.IsDecreasing(t, down)
	assert.Equal(t, "000004_create_cart_and_reviews.down.sql", down[0])
}

func TestFilesRejectsUnknownDirection(t *testing.T) {
	_, err := Files("sideways")
	require.Error(t, err)
}
