// Package httptransport is the thin HTTP layer over the publish service.
// It owns transport concerns only: body presence, form parsing, and the
// mapping of coded errors onto plain-text responses.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ScienceCommunicationLab/publish-badge/internal/publish"
	dErrors "github.com/ScienceCommunicationLab/publish-badge/pkg/domain-errors"
	"github.com/ScienceCommunicationLab/publish-badge/pkg/requestcontext"
)

// PublishService runs a submission through validation, issuance, and the
// notification fan-out.
type PublishService interface {
	Publish(ctx context.Context, form url.Values) (*publish.Result, error)
}

// Handler serves the badge submission endpoint.
type Handler struct {
	logger  *slog.Logger
	service PublishService
}

// NewHandler creates the submission handler.
func NewHandler(service PublishService, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// handlePublish accepts the course-completion form post. The trusted-origin
// and method checks have already run in the router by the time this is
// called.
func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if r.Body == nil || r.ContentLength == 0 {
		h.logger.WarnContext(ctx, "empty request body", "request_id", requestID)
		http.Error(w, "Missing request body", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.logger.WarnContext(ctx, "unparseable form body",
			"request_id", requestID,
			"error", err.Error(),
		)
		http.Error(w, "Missing request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.Publish(ctx, r.PostForm)
	if err != nil {
		h.logPublishError(ctx, err)
		writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "submission accepted",
		"request_id", requestID,
		"open_badge_id", res.OpenBadgeID,
	)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Badge published! Watch your email for your badge link.\n"))
}

func (h *Handler) logPublishError(ctx context.Context, err error) {
	requestID := requestcontext.RequestID(ctx)
	switch {
	case dErrors.Is(err, dErrors.CodeBadRequest), dErrors.Is(err, dErrors.CodeForbidden):
		h.logger.WarnContext(ctx, "submission rejected",
			"request_id", requestID,
			"error", err.Error(),
		)
	default:
		h.logger.ErrorContext(ctx, "submission failed",
			"request_id", requestID,
			"error", err.Error(),
		)
	}
}

// writeError maps a coded error to a plain-text response. Uncoded errors
// collapse to a generic 500 so internals never leak to the browser.
func writeError(w http.ResponseWriter, err error) {
	http.Error(w, dErrors.MessageOf(err), dErrors.StatusOf(err))
}
