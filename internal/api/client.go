// Package api is the client for the remote folio REST API. The remote
// server is the security boundary of record; this client only transports
// its answers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fmcunha/folioview/internal/app/models"
	"github.com/fmcunha/folioview/internal/app/observability/metrics"
)

// Identity is the remote server's description of the authenticated
// principal. PermittedScreens nil means unrestricted.
type Identity struct {
	Identity         string   `json:"identity"`
	Role             string   `json:"role"`
	PermittedScreens []string `json:"permittedScreens"`
}

// Client talks to the folio API. A cookie jar carries the upstream
// session across calls, like the browser the original client ran in.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		logger: logger,
	}
}

// Login exchanges credentials for an identity. Bad credentials surface
// as models.ErrUnauthenticated; the caller shows them on the login form.
func (c *Client) Login(ctx context.Context, identity, secret string) (*Identity, error) {
	var out Identity
	err := c.do(ctx, http.MethodPost, "/v1/auth/login", map[string]string{
		"identity": identity,
		"secret":   secret,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout terminates the upstream session. Best-effort only; failures do
// not block local logout.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/auth/logout", nil, nil)
}

// CurrentIdentity asks the server who this session belongs to. An empty
// answer (no identity) returns (nil, nil): the session is gone, not an
// error.
func (c *Client) CurrentIdentity(ctx context.Context) (*Identity, error) {
	var out Identity
	err := c.do(ctx, http.MethodGet, "/v1/auth/me", nil, &out)
	if errors.Is(err, models.ErrUnauthenticated) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if out.Identity == "" {
		return nil, nil
	}
	return &out, nil
}

// VerifyRecoverySetup reports whether the identity configured a security
// recovery question.
func (c *Client) VerifyRecoverySetup(ctx context.Context, identity string) (bool, error) {
	var out struct {
		HasRecoveryQuestion bool `json:"hasRecoveryQuestion"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/security/verify", map[string]string{
		"identity": identity,
	}, &out)
	if err != nil {
		return false, err
	}
	return out.HasRecoveryQuestion, nil
}

// UpdateRecoveryQuestion stores a new recovery question and answer.
func (c *Client) UpdateRecoveryQuestion(ctx context.Context, identity, question, answer string) error {
	return c.do(ctx, http.MethodPost, "/v1/security/recovery-question", map[string]string{
		"identity": identity,
		"question": question,
		"answer":   answer,
	}, nil)
}

// PermittedScreens fetches the allow-list for an identity. A null answer
// means unrestricted.
func (c *Client) PermittedScreens(ctx context.Context, identity string) ([]string, error) {
	var out struct {
		Screens []string `json:"screens"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/identities/"+identity+"/screens", nil, &out)
	if err != nil {
		return nil, err
	}
	return out.Screens, nil
}

// Register creates an account upstream. Errors surface verbatim to the
// registration form.
func (c *Client) Register(ctx context.Context, identity, secret string) error {
	return c.do(ctx, http.MethodPost, "/v1/auth/register", map[string]string{
		"identity": identity,
		"secret":   secret,
	}, nil)
}

// ForgotPassword starts the upstream reset flow. The reset itself
// happens out of band; the client only reports whether the request was
// accepted.
func (c *Client) ForgotPassword(ctx context.Context, identity string) error {
	return c.do(ctx, http.MethodPost, "/v1/auth/forgot-password", map[string]string{
		"identity": identity,
	}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.Get().UpstreamRequestDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("path", path)))
	if err != nil {
		return errors.Wrap(err, "folio api unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return models.ErrUnauthenticated
	case resp.StatusCode == http.StatusNotFound:
		return models.ErrNotFound
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("Folio API error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("folio api %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Wrap(err, "decode response")
	}
	return nil
}
