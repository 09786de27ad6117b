// Package validation checks user-supplied input before it reaches the store.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxPostRunes is the longest post body accepted.
const MaxPostRunes = 280

// NormalizePostContent trims content and checks its length in runes.
func NormalizePostContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", errors.New("content is required")
	}
	if n := utf8.RuneCountInString(content); n > MaxPostRunes {
		return "", fmt.Errorf("content is %d characters, max %d", n, MaxPostRunes)
	}
	return content, nil
}
