package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	s, err := EncodeCursor(Cursor{AfterID: 42})
	require.NoError(t, err)

	id, err := AfterID(s)
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	_, err := DecodeCursor("%%%")
	require.ErrorIs(t, err, ErrInvalidCursor)

	_, err = DecodeCursor("bm90LWpzb24") // "not-json"
	require.ErrorIs(t, err, ErrInvalidCursor)

	c, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNextAndClamp(t *testing.T) {
	assert.Empty(t, Next(3, 5, 10))
	assert.NotEmpty(t, Next(5, 5, 10))

	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, MaxLimit, ClampLimit(1000))
	assert.Equal(t, 7, ClampLimit(7))
}
