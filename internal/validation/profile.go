package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"breaksphere/internal/models"
)

// Profile field limits in characters.
const (
	MaxNameRunes     = 50
	MaxBioRunes      = 150
	MaxLocationRunes = 50
	MaxWebsiteRunes  = 60
)

// NormalizeProfile trims every field and checks limits. Name is required;
// a non-empty website must be an absolute http(s) URL.
func NormalizeProfile(in models.ProfileUpdate) (models.ProfileUpdate, error) {
	out := models.ProfileUpdate{
		Name:     strings.TrimSpace(in.Name),
		Bio:      strings.TrimSpace(in.Bio),
		Location: strings.TrimSpace(in.Location),
		Website:  strings.TrimSpace(in.Website),
	}

	if out.Name == "" {
		return out, fmt.Errorf("name is required")
	}
	for _, f := range []struct {
		field string
		value string
		max   int
	}{
		{"name", out.Name, MaxNameRunes},
		{"bio", out.Bio, MaxBioRunes},
		{"location", out.Location, MaxLocationRunes},
		{"website", out.Website, MaxWebsiteRunes},
	} {
		if utf8.RuneCountInString(f.value) > f.max {
			return out, fmt.Errorf("%s must be at most %d characters", f.field, f.max)
		}
	}

	if out.Website != "" {
		u, err := url.Parse(out.Website)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return out, fmt.Errorf("website must be an http or https URL")
		}
	}
	return out, nil
}
