package httptransport

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"github.com/ScienceCommunicationLab/publish-badge/internal/platform/metrics"
	"github.com/ScienceCommunicationLab/publish-badge/internal/publish"
	dErrors "github.com/ScienceCommunicationLab/publish-badge/pkg/domain-errors"
	"github.com/ScienceCommunicationLab/publish-badge/pkg/testutil"
)

const trustedOrigin = "https://courses.example.org"

// stubService lets handler tests exercise HTTP concerns without the real
// pipeline; the full stack is covered in integration_test.go.
type stubService struct {
	res   *publish.Result
	err   error
	calls int
}

func (s *stubService) Publish(ctx context.Context, form url.Values) (*publish.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

type HandlerSuite struct {
	suite.Suite
	service *stubService
	router  http.Handler
}

func (s *HandlerSuite) SetupTest() {
	s.service = &stubService{
		res: &publish.Result{OpenBadgeID: "https://api.badgr.io/public/assertions/abc"},
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	m := metrics.NewWith(prometheus.NewRegistry())
	s.router = NewRouter(NewHandler(s.service, logger), trustedOrigin, logger, m)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) formRequest(form url.Values) *http.Request {
	req := testutil.NewFormRequest(s.T(), "/publish-badge", form)
	req.Header.Set("Origin", trustedOrigin)
	return req
}

func (s *HandlerSuite) TestPublish_Success() {
	rr := testutil.DoRequest(s.router, s.formRequest(url.Values{"email": {"a@b.com"}}))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertBodyContains(s.T(), rr, "Watch your email")
	s.Equal(1, s.service.calls)
}

func (s *HandlerSuite) TestPublish_UntrustedOrigin() {
	req := testutil.NewFormRequest(s.T(), "/publish-badge", url.Values{"email": {"a@b.com"}})
	req.Header.Set("Origin", "https://evil.example.com")

	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
	testutil.AssertBodyContains(s.T(), rr, "Forbidden")
	s.Equal(0, s.service.calls, "gatekeeper must run before the service")
}

func (s *HandlerSuite) TestPublish_MissingOriginAndReferer() {
	req := testutil.NewFormRequest(s.T(), "/publish-badge", url.Values{"email": {"a@b.com"}})

	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
	s.Equal(0, s.service.calls)
}

func (s *HandlerSuite) TestPublish_WrongMethod() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/publish-badge")
	req.Header.Set("Origin", trustedOrigin)

	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusMethodNotAllowed)
	testutil.AssertBodyContains(s.T(), rr, "Method Not Allowed")
	s.Equal(0, s.service.calls)
}

func (s *HandlerSuite) TestPublish_OriginCheckedBeforeMethod() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/publish-badge")
	req.Header.Set("Origin", "https://evil.example.com")

	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
}

func (s *HandlerSuite) TestPublish_EmptyBody() {
	req := testutil.NewRequest(s.T(), http.MethodPost, "/publish-badge")
	req.Header.Set("Origin", trustedOrigin)

	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	testutil.AssertBodyContains(s.T(), rr, "Missing request body")
	s.Equal(0, s.service.calls)
}

func (s *HandlerSuite) TestPublish_ValidationErrorMapping() {
	s.service.err = dErrors.New(dErrors.CodeBadRequest, "invalid email format")

	rr := testutil.DoRequest(s.router, s.formRequest(url.Values{"email": {"nope"}}))

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	testutil.AssertBodyContains(s.T(), rr, "invalid email format")
}

func (s *HandlerSuite) TestPublish_AccessCodeErrorMapping() {
	s.service.err = dErrors.New(dErrors.CodeForbidden, "invalid access code")

	rr := testutil.DoRequest(s.router, s.formRequest(url.Values{"email": {"a@b.com"}}))

	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
	testutil.AssertBodyContains(s.T(), rr, "invalid access code")
}

func (s *HandlerSuite) TestPublish_UpstreamErrorMapping() {
	s.service.err = dErrors.New(dErrors.CodeUpstream, "issuer token request failed: 502 Bad Gateway")

	rr := testutil.DoRequest(s.router, s.formRequest(url.Values{"email": {"a@b.com"}}))

	testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
	testutil.AssertBodyContains(s.T(), rr, "502 Bad Gateway")
}

func (s *HandlerSuite) TestPublish_UncodedErrorsStayGeneric() {
	s.service.err = context.DeadlineExceeded

	rr := testutil.DoRequest(s.router, s.formRequest(url.Values{"email": {"a@b.com"}}))

	testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
	testutil.AssertBodyContains(s.T(), rr, "internal server error")
}

func (s *HandlerSuite) TestHealthz_NoOriginNeeded() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}

func (s *HandlerSuite) TestMetrics_NoOriginNeeded() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}
