package dispatch

import (
	"fmt"

	"github.com/jordanlanch/taxpipe/pkg/cadence"
	"github.com/jordanlanch/taxpipe/pkg/models"
)

// DefaultTemplates builds a template for every email piece in the default
// cadence. Copy teams override individual pieces; anything not overridden
// still renders a serviceable message with the scheduling link.
func DefaultTemplates() map[string]EmailTemplate {
	templates := make(map[string]EmailTemplate)
	for _, stages := range cadence.Default {
		for _, offsets := range stages {
			for _, step := range offsets {
				if step.ContactType != models.ContactEmail {
					continue
				}
				templates[step.StagePiece] = genericTemplate(step.StagePiece)
			}
		}
	}
	return templates
}

// DefaultTextTemplates builds a message body for every text piece in the
// default cadence. Bodies take the client's name and the scheduling link.
func DefaultTextTemplates() map[string]string {
	templates := make(map[string]string)
	for _, stages := range cadence.Default {
		for _, offsets := range stages {
			for _, step := range offsets {
				if step.ContactType != models.ContactText {
					continue
				}
				templates[step.StagePiece] = "Hi %s, our team has an update on your tax case. " +
					"Grab a time that works for you: %s"
			}
		}
	}
	return templates
}

func genericTemplate(piece string) EmailTemplate {
	subject := fmt.Sprintf("An update on your case (%s)", piece)
	html := `
		<html>
		<body>
			<p>Hi %s,</p>
			<p>Our team has an update on your tax case and would like to schedule time with you.</p>
			<p><a href="%s">Schedule a call</a></p>
			<p>Thanks,<br>Your Client Services Team</p>
		</body>
		</html>
	`
	plain := `
Hi %s,

Our team has an update on your tax case and would like to schedule time with you.

Schedule a call: %s

Thanks,
Your Client Services Team
	`
	return EmailTemplate{Subject: subject, HTML: html, Plain: plain}
}
