// Package crm is the parameterized client for the tenant CRM backends. One
// implementation serves every white-label deployment; everything that varies
// between them lives in the tenants.Tenant descriptor. Requests are
// multipart/form-data POSTs, responses share the {status, message, data,
// code} envelope, and every failure is classified into a closed typed set
// (AuthError, BusinessError, NetworkError) at the point the envelope is
// parsed so downstream retry logic never parses prose.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ispkit/selfcare/tenants"
)

// DefaultTimeout bounds every outbound call when the caller does not supply
// its own http.Client.
const DefaultTimeout = 8 * time.Second

// Client talks to one tenant's CRM.
type Client struct {
	tenant *tenants.Tenant
	http   *http.Client
	log    zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client (tests, custom TLS).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New builds a Client for the given tenant.
func New(tenant *tenants.Tenant, log zerolog.Logger, options ...Option) (*Client, error) {
	if tenant == nil {
		return nil, errors.New("[crm.New] tenant is required")
	}
	if err := tenant.Validate(); err != nil {
		return nil, errors.Wrap(err, "[crm.New] tenant descriptor")
	}
	c := &Client{
		tenant: tenant,
		http:   &http.Client{Timeout: DefaultTimeout},
		log:    log.With().Str("tenant", tenant.ID).Logger(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Tenant returns the descriptor this client was built from.
func (c *Client) Tenant() *tenants.Tenant { return c.tenant }

// envelope is the CRM response wrapper. Success is status=="ok" alone; code
// is advisory and kept only for logging and error detail.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Code    int             `json:"code,omitempty"`
}

const statusOK = "ok"

type filePart struct {
	field    string
	filename string
	content  io.Reader
}

// post sends one multipart form POST to the endpoint path and returns the
// parsed envelope data on success. All failure classification happens here.
func (c *Client) post(ctx context.Context, path, token string, fields map[string]string, file *filePart) (json.RawMessage, error) {
	endpoint, err := url.JoinPath(c.tenant.BaseURL, path)
	if err != nil {
		return nil, errors.Wrap(err, "[crm.post] join url")
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			return nil, errors.Wrap(err, "[crm.post] write field")
		}
	}
	if file != nil {
		part, err := form.CreateFormFile(file.field, file.filename)
		if err != nil {
			return nil, errors.Wrap(err, "[crm.post] create file part")
		}
		if _, err := io.Copy(part, file.content); err != nil {
			return nil, errors.Wrap(err, "[crm.post] copy file")
		}
	}
	if err := form.Close(); err != nil {
		return nil, errors.Wrap(err, "[crm.post] close form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, errors.Wrap(err, "[crm.post] build request")
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("cache-control", "no-cache")
	if c.tenant.Referer != "" {
		req.Header.Set("referer", c.tenant.Referer)
	}
	for k, v := range c.tenant.Headers {
		req.Header.Set(k, v)
	}
	if token != "" {
		req.Header.Set("Authentication", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Str("path", path).Err(err).Msg("transport failure")
		return nil, &NetworkError{Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Debug().Str("path", path).Int("http_status", resp.StatusCode).Msg("unparseable response body")
		return nil, &NetworkError{Cause: errors.Wrapf(err, "unexpected response (http %d)", resp.StatusCode)}
	}

	if strings.EqualFold(env.Status, statusOK) {
		return env.Data, nil
	}
	return nil, classifyEnvelope(env.Message, env.Code, c.tenant.PasswordRejectsAsAuthExpired)
}

// postOp resolves an operation to either its dedicated endpoint or, for
// tenants that funnel through the generic dropdown endpoint, the dropdown
// path plus the operation's combo code.
func (c *Client) postOp(ctx context.Context, operation, token string, fields map[string]string) (json.RawMessage, error) {
	if code, ok := c.tenant.ComboCode(operation); ok {
		merged := map[string]string{"combo_code": code}
		for k, v := range fields {
			merged[k] = v
		}
		return c.post(ctx, c.tenant.Path(tenants.EndpointDropdown), token, merged, nil)
	}
	return c.post(ctx, c.tenant.Path(operation), token, fields, nil)
}

func decode(data json.RawMessage, out interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(data, out), "decode envelope data")
}
