// Package backend is the HTTP client for the Sauti assistant API. It covers
// the three endpoints the client consumes — POST /api/text, POST /api/voice,
// and POST /api/translate — one request/response each, JSON over HTTP.
//
// The client never interprets failures for the user: any transport error,
// non-2xx status, or undecodable body is returned as an error and the caller
// decides what fixed message to surface.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second

	textEndpoint      = "/api/text"
	voiceEndpoint     = "/api/voice"
	translateEndpoint = "/api/translate"

	// maxErrorBodyBytes bounds how much of a failed response body is read for
	// the error message.
	maxErrorBodyBytes = 2048
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client. Useful for tests and
// for callers that need custom transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client talks to one Sauti backend. Safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// New creates a Client for the backend at baseURL (e.g. "http://localhost:8000").
// The URL must be absolute; any path component is stripped.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("backend: parse base URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend: base URL %q must be absolute", baseURL)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// TextRequest is the payload for POST /api/text.
type TextRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Mode     string `json:"mode"`
}

// ChatResponse is the reply shape shared by /api/text and /api/voice.
type ChatResponse struct {
	Text     string `json:"text"`
	AudioURL string `json:"audio_url,omitempty"`
	Language string `json:"language"`
}

// TranslateRequest is the payload for POST /api/translate.
type TranslateRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

// TranslateResponse is the reply shape of /api/translate.
type TranslateResponse struct {
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

// SendText submits one conversation turn and returns the assistant reply.
func (c *Client) SendText(ctx context.Context, req TextRequest) (ChatResponse, error) {
	var resp ChatResponse
	if err := c.postJSON(ctx, textEndpoint, req, &resp); err != nil {
		return ChatResponse{}, err
	}
	return resp, nil
}

// SendVoice submits a recorded audio clip for server-side recognition and
// reply. r supplies the audio bytes; filename is the multipart file name the
// backend sees.
func (c *Client) SendVoice(ctx context.Context, r io.Reader, filename, lang string) (ChatResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("backend: create form file: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return ChatResponse{}, fmt.Errorf("backend: copy audio: %w", err)
	}
	if err := mw.WriteField("language", lang); err != nil {
		return ChatResponse{}, fmt.Errorf("backend: write language field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return ChatResponse{}, fmt.Errorf("backend: finalize multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(voiceEndpoint), &body)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("backend: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var resp ChatResponse
	if err := c.do(httpReq, &resp); err != nil {
		return ChatResponse{}, err
	}
	return resp, nil
}

// Translate converts text between two languages of the shared vocabulary.
// Source and target may be equal; the backend decides what that means.
func (c *Client) Translate(ctx context.Context, req TranslateRequest) (TranslateResponse, error) {
	var resp TranslateResponse
	if err := c.postJSON(ctx, translateEndpoint, req, &resp); err != nil {
		return TranslateResponse{}, err
	}
	return resp, nil
}

// ResolveAudioURL resolves a possibly-relative audio reference returned by
// the backend against the backend's origin. Absolute URLs pass through
// unchanged; refs that cannot be parsed resolve to "".
func (c *Client) ResolveAudioURL(ref string) string {
	if strings.TrimSpace(ref) == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return u.String()
	}
	return c.baseURL.ResolveReference(u).String()
}

// BaseURL returns the backend origin this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = path
	return u.String()
}

// postJSON sends payload to path and decodes the JSON response into out.
func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("backend: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

// do executes the request and decodes a successful JSON body into out.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("backend: %s returned status %d: %s",
			req.URL.Path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
