// Package publish orchestrates a validated submission through badge
// issuance and the best-effort notification fan-out. Issuance failures abort
// the request; email and spreadsheet failures are logged and swallowed.
package publish

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ScienceCommunicationLab/publish-badge/internal/badgr"
	"github.com/ScienceCommunicationLab/publish-badge/internal/platform/metrics"
	"github.com/ScienceCommunicationLab/publish-badge/internal/registry"
	"github.com/ScienceCommunicationLab/publish-badge/internal/submission"
	"github.com/ScienceCommunicationLab/publish-badge/pkg/requestcontext"
)

// BadgeIssuer creates a badge assertion for a recipient.
type BadgeIssuer interface {
	Publish(ctx context.Context, badgeClassID, email string) (*badgr.Assertion, error)
}

// Notifier emails the recipient their badge link.
type Notifier interface {
	SendBadgeNotification(ctx context.Context, to, fullName, badgeURL string) error
}

// BadgeLog records one completion row in the badge log.
type BadgeLog interface {
	AppendRow(ctx context.Context, row []string) error
}

// Result is what the transport needs to acknowledge a submission.
type Result struct {
	OpenBadgeID string
}

// Service runs the validate → issue → notify pipeline.
type Service struct {
	registry          *registry.Registry
	requireAccessCode bool
	issuer            BadgeIssuer
	notifier          Notifier
	badgeLog          BadgeLog
	logger            *slog.Logger
	metrics           *metrics.Metrics
}

// New wires the pipeline dependencies.
func New(
	reg *registry.Registry,
	requireAccessCode bool,
	issuer BadgeIssuer,
	notifier Notifier,
	badgeLog BadgeLog,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		registry:          reg,
		requireAccessCode: requireAccessCode,
		issuer:            issuer,
		notifier:          notifier,
		badgeLog:          badgeLog,
		logger:            logger,
		metrics:           m,
	}
}

// Publish validates the form, issues the badge, and fans out notifications.
// Only validation and issuance errors propagate to the caller.
func (s *Service) Publish(ctx context.Context, form url.Values) (*Result, error) {
	sub := submission.FromForm(form)
	if err := sub.Validate(s.registry, s.requireAccessCode); err != nil {
		s.observeSubmission("rejected")
		return nil, err
	}

	assertion, err := s.issuer.Publish(ctx, sub.BadgeClassID, sub.Email)
	if err != nil {
		s.observeSubmission("failed")
		if s.metrics != nil {
			s.metrics.IncrementUpstreamFailure("badgr")
		}
		return nil, err
	}

	s.observeSubmission("issued")
	if s.metrics != nil {
		s.metrics.IncrementBadgesIssued()
	}
	s.logger.InfoContext(ctx, "badge issued",
		"request_id", requestcontext.RequestID(ctx),
		"badge_class_id", sub.BadgeClassID,
		"open_badge_id", assertion.OpenBadgeID,
	)

	s.fanOut(ctx, sub, assertion)

	return &Result{OpenBadgeID: assertion.OpenBadgeID}, nil
}

// fanOut runs the email and spreadsheet tasks concurrently. Each branch
// catches its own error so one failing never suppresses the other, and
// neither affects the response.
func (s *Service) fanOut(ctx context.Context, sub submission.Submission, assertion *badgr.Assertion) {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.notifier.SendBadgeNotification(ctx, sub.Email, sub.FullName, assertion.OpenBadgeID); err != nil {
			s.logger.WarnContext(ctx, "badge email failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
			if s.metrics != nil {
				s.metrics.IncrementUpstreamFailure("email")
			}
		}
		return nil
	})

	g.Go(func() error {
		timestamp := requestcontext.Now(ctx).UTC().Format(time.RFC3339)
		row := []string{sub.FullName, sub.Email, assertion.OpenBadgeID, timestamp}
		if err := s.badgeLog.AppendRow(ctx, row); err != nil {
			s.logger.WarnContext(ctx, "badge log append failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
			if s.metrics != nil {
				s.metrics.IncrementUpstreamFailure("sheets")
			}
		}
		return nil
	})

	// Branches always return nil; Wait only synchronizes completion.
	_ = g.Wait()
}

func (s *Service) observeSubmission(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveSubmission(outcome)
	}
}
