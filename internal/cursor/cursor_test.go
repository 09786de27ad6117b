package cursor

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"breaksphere/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Cursor
	}{
		{"whole seconds", Cursor{ID: "p1", CreatedAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}},
		{"nanoseconds", Cursor{ID: "4b1c8f3e-1c0e-4f33-9d4c-7f0a2b2c9e11", CreatedAt: time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.UTC)}},
		{"non-utc input", Cursor{ID: "p2", CreatedAt: time.Date(2024, 1, 1, 12, 0, 0, 5, time.FixedZone("CET", 3600))}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			token, err := Encode(tt.in)
			require.NoError(t, err)
			assert.NotContains(t, token, "=")

			got, err := Decode(token)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.in.ID, got.ID)
			assert.True(t, tt.in.CreatedAt.Equal(got.CreatedAt))
			assert.Equal(t, time.UTC, got.CreatedAt.Location())
		})
	}
}

func TestDecodeEmptyTokenMeansNoCursor(t *testing.T) {
	got, err := Decode("   ")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		token string
	}{
		{"not base64", "%%%"},
		{"not json", base64.RawURLEncoding.EncodeToString([]byte("hello"))},
		{"missing id", base64.RawURLEncoding.EncodeToString([]byte(`{"createdAt":"2024-01-01T00:00:00Z"}`))},
		{"bad timestamp", base64.RawURLEncoding.EncodeToString([]byte(`{"id":"p1","createdAt":"yesterday"}`))},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Decode(tt.token)
			assert.Nil(t, got)
			require.Error(t, err)

			var appErr *models.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, models.CodeValidation, appErr.Code)
		})
	}
}

func TestDecodeToleratesPadding(t *testing.T) {
	raw := []byte(`{"id":"p1","createdAt":"2024-01-01T10:00:00Z"}`)
	padded := base64.URLEncoding.EncodeToString(raw)

	got, err := Decode(padded)
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
}

func TestFromPost(t *testing.T) {
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	c := FromPost(&models.Post{ID: "p3", CreatedAt: ts})
	assert.Equal(t, "p3", c.ID)
	assert.True(t, ts.Equal(c.CreatedAt))
}

func TestFromParts(t *testing.T) {
	c, err := FromParts("p1", "2024-01-01T10:00:00.5Z")
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, time.Duration(c.CreatedAt.Nanosecond()))

	_, err = FromParts("", "2024-01-01T10:00:00Z")
	assert.Error(t, err)
}

func TestMustEncodeMatchesEncode(t *testing.T) {
	c := Cursor{ID: "p1", CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 42, time.UTC)}
	token, err := Encode(c)
	require.NoError(t, err)
	assert.Equal(t, token, MustEncode(c))
}
