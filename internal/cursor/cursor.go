// Package cursor encodes feed positions as opaque tokens.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"breaksphere/internal/models"
)

// Cursor marks a position in the (created_at DESC, id DESC) feed order.
// It names the first item of the page it resumes.
type Cursor struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

type wireCursor struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
}

// FromPost returns the cursor positioned at p.
func FromPost(p *models.Post) *Cursor {
	return &Cursor{ID: p.ID, CreatedAt: p.CreatedAt.UTC()}
}

// Encode renders c as a URL-safe opaque token.
func Encode(c Cursor) (string, error) {
	raw, err := json.Marshal(wireCursor{
		ID:        c.ID,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// MustEncode is Encode for cursors built from stored posts, which always marshal.
func MustEncode(c Cursor) string {
	token, err := Encode(c)
	if err != nil {
		panic(err)
	}
	return token
}

// Decode parses a token produced by Encode. An empty token yields a nil cursor.
func Decode(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return nil, invalid()
	}

	var w wireCursor
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, invalid()
	}
	return FromParts(w.ID, w.CreatedAt)
}

// FromParts builds a cursor from its structured id and RFC 3339 timestamp.
func FromParts(id, createdAt string) (*Cursor, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid()
	}
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(createdAt))
	if err != nil {
		return nil, invalid()
	}
	return &Cursor{ID: id, CreatedAt: ts.UTC()}, nil
}

func invalid() error {
	return models.NewValidationError("Invalid cursor")
}
