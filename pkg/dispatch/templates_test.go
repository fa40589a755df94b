package dispatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/taxpipe/pkg/cadence"
	"github.com/jordanlanch/taxpipe/pkg/models"
)

func TestDefaultTemplatesCoverEveryEmailPiece(t *testing.T) {
	templates := DefaultTemplates()

	for lc, stages := range cadence.Default {
		for stage, offsets := range stages {
			for day, step := range offsets {
				if step.ContactType != models.ContactEmail {
					continue
				}
				tmpl, ok := templates[step.StagePiece]
				require.True(t, ok, "%s/%s day %d has no template", lc, stage, day)
				assert.NotEmpty(t, tmpl.Subject)
				assert.Equal(t, 2, strings.Count(tmpl.HTML, "%s"),
					"HTML body takes a name and a scheduling link")
				assert.Equal(t, 2, strings.Count(tmpl.Plain, "%s"))
			}
		}
	}
}

func TestDefaultTemplatesSkipTextPieces(t *testing.T) {
	templates := DefaultTemplates()
	_, ok := templates["Prac Text 1"]
	assert.False(t, ok)
}

func TestDefaultTextTemplatesCoverEveryTextPiece(t *testing.T) {
	templates := DefaultTextTemplates()

	for lc, stages := range cadence.Default {
		for stage, offsets := range stages {
			for day, step := range offsets {
				if step.ContactType != models.ContactText {
					continue
				}
				body, ok := templates[step.StagePiece]
				require.True(t, ok, "%s/%s day %d has no body", lc, stage, day)
				assert.Equal(t, 2, strings.Count(body, "%s"),
					"text body takes a name and a scheduling link")
			}
		}
	}

	_, ok := templates["Prac Email 1"]
	assert.False(t, ok, "email pieces render through the email templates")
}
