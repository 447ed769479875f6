package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/egnyte/cloudimized/internal/core/ports"
	apperrors "github.com/egnyte/cloudimized/internal/errors"
)

// TicketExtractor pulls ticket identifiers out of automation run messages
// and turns them into ticket system links.
type TicketExtractor struct {
	re      *regexp.Regexp
	baseURL string
	logger  ports.Logger
}

// NewTicketExtractor returns nil when either expr or baseURL is empty;
// ticket matching is then skipped entirely. The expression must define a
// capture group for the ticket identifier.
func NewTicketExtractor(expr, baseURL string, logger ports.Logger) (*TicketExtractor, error) {
	if expr == "" || baseURL == "" {
		return nil, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeConfigValidation,
			"invalid ticket regex %q", expr)
	}
	return &TicketExtractor{re: re, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}, nil
}

// Extract returns the ticket URL for the first identifier found in
// message. The identifier comes from the expression's first capture
// group; a match without one is skipped with a warning. Underscores are
// normalized to hyphens.
func (t *TicketExtractor) Extract(ctx context.Context, message string) (string, bool) {
	m := t.re.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	if len(m) < 2 {
		t.logger.Warnf(ctx, "ticket regex %q has no capture group, skipping ticket for message %q",
			t.re.String(), message)
		return "", false
	}
	ticket := m[1]
	if ticket == "" {
		return "", false
	}
	return t.baseURL + "/" + strings.ReplaceAll(ticket, "_", "-"), true
}
