// Package speech is a client for the speech vendor's token issuance and
// speaker identification endpoints.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const profilesPath = "/speaker/identification/v2.0/profiles"

// Error is a non-2xx vendor response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("speech: upstream status %d: %s", e.Status, e.Message)
}

// ResolveEndpoint picks the vendor base URL. An explicit endpoint wins;
// otherwise the URL is derived from the region. Both are valid operator
// configurations.
func ResolveEndpoint(region, endpoint string) string {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint != "" {
		return endpoint
	}
	region = strings.TrimSpace(region)
	if region == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.api.cognitive.microsoft.com", region)
}

// Client issues tokens and manages speaker profiles. It holds no state
// beyond the subscription key and resolved endpoint.
type Client struct {
	endpoint   string
	key        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a speech vendor client for the resolved endpoint.
func NewClient(endpoint, key string) *Client {
	return NewClientWithHTTP(endpoint, key, &http.Client{})
}

// NewClientWithHTTP creates a client with a caller-supplied HTTP client.
func NewClientWithHTTP(endpoint, key string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		key:        key,
		httpClient: httpClient,
		logger:     slog.With("module", "speech"),
	}
}

// IssueToken exchanges the subscription key for a short-lived authorization
// token. The vendor returns the token as plain text.
func (c *Client) IssueToken(ctx context.Context) (string, error) {
	url := c.endpoint + "/sts/v1.0/issueToken"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("token issuance failed", "status", resp.StatusCode, "details", string(body))
		return "", &Error{Status: resp.StatusCode, Message: "failed to retrieve authorization token"}
	}

	return string(body), nil
}

// CreateProfile creates a speaker identification profile with the given
// locale and returns the vendor-assigned profile id. No local copy of the
// profile is kept.
func (c *Client) CreateProfile(ctx context.Context, locale string) (string, error) {
	body, err := json.Marshal(map[string]string{"locale": locale})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+profilesPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create profile: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 256<<10))
	if err != nil {
		return "", fmt.Errorf("read profile response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", c.upstreamError(resp.StatusCode, raw)
	}

	var profileResp struct {
		ProfileID string `json:"profileId"`
	}
	if err := json.Unmarshal(raw, &profileResp); err != nil {
		return "", fmt.Errorf("decode profile response: %w", err)
	}
	if profileResp.ProfileID == "" {
		return "", fmt.Errorf("profile response missing profileId")
	}
	return profileResp.ProfileID, nil
}

// EnrollmentResult is the vendor's enrollment response, passed through
// verbatim. The vendor may accept enrollment asynchronously (202).
type EnrollmentResult struct {
	Status int
	Body   []byte
}

// CreateEnrollment streams raw audio bytes unmodified to the enrollment
// endpoint for an existing profile.
func (c *Client) CreateEnrollment(ctx context.Context, profileID string, audio io.Reader) (*EnrollmentResult, error) {
	url := fmt.Sprintf("%s%s/%s/enrollments", c.endpoint, profilesPath, profileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, audio)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create enrollment: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 256<<10))
	if err != nil {
		return nil, fmt.Errorf("read enrollment response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.upstreamError(resp.StatusCode, raw)
	}

	return &EnrollmentResult{Status: resp.StatusCode, Body: raw}, nil
}

func (c *Client) upstreamError(status int, raw []byte) error {
	msg := http.StatusText(status)
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}
	c.logger.Error("speech upstream error", "status", status, "message", msg)
	return &Error{Status: status, Message: msg}
}
