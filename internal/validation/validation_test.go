package validation

import (
	"strings"
	"testing"

	"breaksphere/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePostContent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
		ok      bool
	}{
		{name: "plain", content: "hello", want: "hello", ok: true},
		{name: "trimmed", content: "  hi there \n", want: "hi there", ok: true},
		{name: "empty", content: "", ok: false},
		{name: "whitespace only", content: " \t\n", ok: false},
		{name: "max length", content: strings.Repeat("a", MaxPostRunes), want: strings.Repeat("a", MaxPostRunes), ok: true},
		{name: "too long", content: strings.Repeat("a", MaxPostRunes+1), ok: false},
		{name: "multibyte counted as runes", content: strings.Repeat("é", MaxPostRunes), want: strings.Repeat("é", MaxPostRunes), ok: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizePostContent(tc.content)
			if !tc.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeProfile(t *testing.T) {
	t.Parallel()

	valid := models.ProfileUpdate{Name: "Ada", Bio: "math", Location: "London", Website: "https://ada.dev"}

	tests := []struct {
		name   string
		mutate func(p *models.ProfileUpdate)
		ok     bool
	}{
		{name: "valid", mutate: func(*models.ProfileUpdate) {}, ok: true},
		{name: "empty optional fields", mutate: func(p *models.ProfileUpdate) { p.Bio, p.Location, p.Website = "", "", "" }, ok: true},
		{name: "missing name", mutate: func(p *models.ProfileUpdate) { p.Name = "  " }, ok: false},
		{name: "long name", mutate: func(p *models.ProfileUpdate) { p.Name = strings.Repeat("n", MaxNameRunes+1) }, ok: false},
		{name: "long bio", mutate: func(p *models.ProfileUpdate) { p.Bio = strings.Repeat("b", MaxBioRunes+1) }, ok: false},
		{name: "long location", mutate: func(p *models.ProfileUpdate) { p.Location = strings.Repeat("l", MaxLocationRunes+1) }, ok: false},
		{name: "long website", mutate: func(p *models.ProfileUpdate) { p.Website = "https://" + strings.Repeat("w", MaxWebsiteRunes) + ".io" }, ok: false},
		{name: "website without scheme", mutate: func(p *models.ProfileUpdate) { p.Website = "ada.dev" }, ok: false},
		{name: "website ftp", mutate: func(p *models.ProfileUpdate) { p.Website = "ftp://ada.dev" }, ok: false},
		{name: "http website", mutate: func(p *models.ProfileUpdate) { p.Website = "http://ada.dev/about" }, ok: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			_, err := NormalizeProfile(in)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	out, err := NormalizeProfile(models.ProfileUpdate{Name: " Ada ", Bio: " hi "})
	require.NoError(t, err)
	assert.Equal(t, "Ada", out.Name)
	assert.Equal(t, "hi", out.Bio)
}
