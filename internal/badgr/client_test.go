package badgr

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScienceCommunicationLab/publish-badge/internal/platform/config"
	dErrors "github.com/ScienceCommunicationLab/publish-badge/pkg/domain-errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// fakeIssuer is a minimal stand-in for the issuer API, recording calls.
type fakeIssuer struct {
	tokenStatus     int
	tokenBody       string
	assertionStatus int
	assertionBody   string

	tokenCalls     int
	assertionCalls int
	lastAssertion  assertionRequest
	lastAuth       string
}

func (f *fakeIssuer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/o/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "issuer-user", r.PostForm.Get("username"))
		assert.Equal(t, "issuer-pass", r.PostForm.Get("password"))
		w.WriteHeader(f.tokenStatus)
		_, _ = w.Write([]byte(f.tokenBody))
	})
	mux.HandleFunc("/v2/badgeclasses/", func(w http.ResponseWriter, r *http.Request) {
		f.assertionCalls++
		f.lastAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastAssertion))
		w.WriteHeader(f.assertionStatus)
		_, _ = w.Write([]byte(f.assertionBody))
	})
	return mux
}

func newFakeIssuer() *fakeIssuer {
	return &fakeIssuer{
		tokenStatus:     http.StatusOK,
		tokenBody:       `{"access_token":"tok-123"}`,
		assertionStatus: http.StatusCreated,
		assertionBody:   `{"result":[{"openBadgeId":"https://api.badgr.io/public/assertions/abc"}]}`,
	}
}

func clientFor(srv *httptest.Server) *Client {
	return New(config.Badgr{
		BaseURL:  srv.URL,
		Username: "issuer-user",
		Password: "issuer-pass",
		Salt:     "scicommlab",
	}, discardLogger())
}

func TestPublish_Success(t *testing.T) {
	issuer := newFakeIssuer()
	srv := httptest.NewServer(issuer.handler(t))
	defer srv.Close()

	assertion, err := clientFor(srv).Publish(context.Background(), "g_AMm-vOSC6q4_oB2EMwKw", "a@b.com")

	require.NoError(t, err)
	assert.Equal(t, "https://api.badgr.io/public/assertions/abc", assertion.OpenBadgeID)
	assert.Equal(t, 1, issuer.tokenCalls)
	assert.Equal(t, 1, issuer.assertionCalls)
	assert.Equal(t, "Bearer tok-123", issuer.lastAuth)
}

func TestPublish_RecipientIsHashed(t *testing.T) {
	issuer := newFakeIssuer()
	srv := httptest.NewServer(issuer.handler(t))
	defer srv.Close()

	_, err := clientFor(srv).Publish(context.Background(), "g_AMm-vOSC6q4_oB2EMwKw", "a@b.com")
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("a@b.com" + "scicommlab"))
	want := "sha256$" + hex.EncodeToString(sum[:])

	rec := issuer.lastAssertion.Recipient
	assert.Equal(t, want, rec.Identity, "plain email must never reach the issuer")
	assert.True(t, rec.Hashed)
	assert.Equal(t, "email", rec.Type)
	assert.Equal(t, "scicommlab", rec.Salt)
}

func TestPublish_MissingCredentials(t *testing.T) {
	issuer := newFakeIssuer()
	srv := httptest.NewServer(issuer.handler(t))
	defer srv.Close()

	c := New(config.Badgr{BaseURL: srv.URL, Username: "issuer-user"}, discardLogger())
	_, err := c.Publish(context.Background(), "g_AMm-vOSC6q4_oB2EMwKw", "a@b.com")

	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeInternal))
	assert.Equal(t, 0, issuer.tokenCalls, "must fail closed before calling out")
}

func TestPublish_TokenEndpointFailure(t *testing.T) {
	issuer := newFakeIssuer()
	issuer.tokenStatus = http.StatusUnauthorized
	issuer.tokenBody = `{"error":"invalid_grant"}`
	srv := httptest.NewServer(issuer.handler(t))
	defer srv.Close()

	_, err := clientFor(srv).Publish(context.Background(), "g_AMm-vOSC6q4_oB2EMwKw", "a@b.com")

	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUpstream))
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, 0, issuer.assertionCalls, "no assertion call after a failed token exchange")
}

func TestPublish_TokenMissingInResponse(t *testing.T) {
	issuer := newFakeIssuer()
	issuer.tokenBody = `{"token_type":"Bearer"}`
	srv := httptest.NewServer(issuer.handler(t))
	defer srv.Close()

	_, err := clientFor(srv).Publish(context.Background(), "g_AMm-vOSC6q4_oB2EMwKw", "a@b.com")

	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUpstream))
	assert.Contains(t, err.Error(), "access_token")
}

func TestPublish_AssertionEndpointFailure(t *testing.T) {
	issuer := newFakeIssuer()
	issuer.assertionStatus = http.StatusBadGateway
	issuer.assertionBody = "upstream sad"
	srv := httptest.NewServer(issuer.handler(t))
	defer srv.Close()

	_, err := clientFor(srv).Publish(context.Background(), "g_AMm-vOSC6q4_oB2EMwKw", "a@b.com")

	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUpstream))
	assert.Contains(t, err.Error(), "502")
}

func TestPublish_EmptyResultList(t *testing.T) {
	issuer := newFakeIssuer()
	issuer.assertionBody = `{"result":[]}`
	srv := httptest.NewServer(issuer.handler(t))
	defer srv.Close()

	_, err := clientFor(srv).Publish(context.Background(), "g_AMm-vOSC6q4_oB2EMwKw", "a@b.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected assertion response format")
}

func TestPublish_MissingIdentifier(t *testing.T) {
	issuer := newFakeIssuer()
	issuer.assertionBody = `{"result":[{"entityId":"abc"}]}`
	srv := httptest.NewServer(issuer.handler(t))
	defer srv.Close()

	_, err := clientFor(srv).Publish(context.Background(), "g_AMm-vOSC6q4_oB2EMwKw", "a@b.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing openBadgeId")
}
