package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	original := Cursor{CreatedAt: time.Date(2025, 3, 4, 5, 6, 7, 8, time.UTC), ID: uuid.New()}

	parsed, err := ParseCursor(EncodeCursor(original))
	require.NoError(t, err)
	require.True(t, parsed.CreatedAt.Equal(original.CreatedAt))
	require.Equal(t, original.ID, parsed.ID)

	empty, err := ParseCursor("  ")
	require.NoError(t, err)
	require.Nil(t, empty)

	_, err = ParseCursor("not-base64!!")
	require.Error(t, err)
}

func TestNormalizeLimit(t *testing.T) {
	require.Equal(t, DefaultLimit, NormalizeLimit(0))
	require.Equal(t, MaxLimit, NormalizeLimit(1000))
	require.Equal(t, 7, NormalizeLimit(7))
	require.Equal(t, 8, LimitWithBuffer(7))
}

type row struct {
	id      uuid.UUID
	created time.Time
}

func TestTrim(t *testing.T) {
	now := time.Now().UTC()
	rows := []row{
		{id: uuid.New(), created: now},
		{id: uuid.New(), created: now.Add(-time.Minute)},
		{id: uuid.New(), created: now.Add(-2 * time.Minute)},
	}
	position := func(r row) Cursor { return Cursor{CreatedAt: r.created, ID: r.id} }

	page, next := Trim(rows, 2, position)
	require.Len(t, page, 2)
	require.NotEmpty(t, next)
	cursor, err := ParseCursor(next)
	require.NoError(t, err)
	require.Equal(t, rows[1].id, cursor.ID)

	page, next = Trim(rows, 5, position)
	require.Len(t, page, 3)
	require.Empty(t, next)
}
