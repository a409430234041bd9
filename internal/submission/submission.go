// Package submission models one course-completion form post and its
// normalization and validation rules. Validation is a pure function of the
// submitted fields and the badge registry; no network calls happen here.
package submission

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/ScienceCommunicationLab/publish-badge/internal/registry"
	dErrors "github.com/ScienceCommunicationLab/publish-badge/pkg/domain-errors"
)

const maxFullNameLen = 100

// Deliberately loose: local@domain.tld shape only, not RFC 5322. The forms
// have accepted addresses this loose for years; tightening it is a product
// decision, not a cleanup.
var emailPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)

// Submission holds the normalized form fields for one badge request.
type Submission struct {
	Email        string
	FullName     string
	BadgeClassID string
	AccessCode   string
}

// FromForm extracts and normalizes the expected fields from a parsed
// URL-encoded body. Normalization rules per field:
//
//	email          trim, lowercase
//	full_name      trim, strip to safe characters, truncate to 100
//	badge_class_id trim only (IDs are case-sensitive and opaque)
//	access_code    trim, strip to safe characters
func FromForm(form url.Values) Submission {
	fullName := sanitize(strings.TrimSpace(form.Get("full_name")))
	if runes := []rune(fullName); len(runes) > maxFullNameLen {
		fullName = string(runes[:maxFullNameLen])
	}
	return Submission{
		Email:        strings.ToLower(strings.TrimSpace(form.Get("email"))),
		FullName:     fullName,
		BadgeClassID: strings.TrimSpace(form.Get("badge_class_id")),
		AccessCode:   sanitize(strings.TrimSpace(form.Get("access_code"))),
	}
}

// sanitize strips everything outside word characters, whitespace,
// apostrophes, and hyphens. Underscores count as word characters; the
// registered access codes contain them.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' || r == '\'' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Validate checks a normalized submission against the registry. The
// requireAccessCode flag selects the deployment variant: the gated variant
// additionally requires full_name and a matching per-course access code.
func (s Submission) Validate(reg *registry.Registry, requireAccessCode bool) error {
	required := []string{s.Email, s.BadgeClassID}
	if requireAccessCode {
		required = append(required, s.FullName, s.AccessCode)
	}
	for _, field := range required {
		if strings.TrimSpace(field) == "" {
			return dErrors.New(dErrors.CodeBadRequest, "missing required fields")
		}
	}

	if !emailPattern.MatchString(s.Email) {
		return dErrors.New(dErrors.CodeBadRequest, "invalid email format")
	}

	if _, ok := reg.CourseID(s.BadgeClassID); !ok {
		return dErrors.New(dErrors.CodeBadRequest, "invalid badge_class_id")
	}

	if requireAccessCode {
		expected, ok := reg.AccessCode(s.BadgeClassID)
		if !ok {
			// The class exists in the course mapping but not the access-code
			// mapping: a registry inconsistency, not a client mistake.
			return dErrors.Newf(dErrors.CodeInternal, "no access code registered for badge class %s", s.BadgeClassID)
		}
		if s.AccessCode != expected {
			return dErrors.New(dErrors.CodeForbidden, "invalid access code")
		}
	}

	return nil
}
