package service

import (
	"regexp"
	"strings"

	apperrors "github.com/egnyte/cloudimized/internal/errors"
)

// Classifier decides whether a change identity belongs to an automation
// service account. The configured expression is anchored at the start of
// the identity and matched against the full raw string.
type Classifier struct {
	re *regexp.Regexp
}

func NewClassifier(expr string) (*Classifier, error) {
	re, err := regexp.Compile(`\A(?:` + expr + `)`)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeConfigValidation,
			"invalid service account regex %q", expr)
	}
	return &Classifier{re: re}, nil
}

// IsAutomation reports whether identity matches the service account
// pattern. Identities that never went through SplitLogin successfully
// must not reach here.
func (c *Classifier) IsAutomation(identity string) bool {
	return c.re.MatchString(identity)
}

// SplitLogin extracts the login part of an e-mail style identity. The
// second return is false when identity carries no "@" at all.
func SplitLogin(identity string) (string, bool) {
	i := strings.Index(identity, "@")
	if i < 0 {
		return "", false
	}
	return identity[:i], true
}
