// Package backend provides the shared HTTP plumbing for every outbound
// backend call: a pooled transport with conservative timeouts, token-header
// authentication, the JSON request/response helper, and the error taxonomy
// the command runtime translates into user replies.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout is the per-request deadline applied to every backend call.
const DefaultTimeout = 5 * time.Second

const userAgent = "fokabot"

// sharedTransport is reused by every backend client so connections pool
// across the process.
var sharedTransport = &http.Transport{
	DialContext: (&net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	TLSHandshakeTimeout:   5 * time.Second,
	ResponseHeaderTimeout: DefaultTimeout,
	IdleConnTimeout:       90 * time.Second,
	MaxIdleConns:          20,
	MaxIdleConnsPerHost:   5,
	ForceAttemptHTTP2:     true,
}

// Client is the common base embedded by the concrete backend clients. Base
// is the service root URL; AuthHeader names the token header ("X-Ripple-
// Token", "Authorization", ...); an empty Token disables the header.
type Client struct {
	Base       string
	Token      string
	AuthHeader string
	Logger     *slog.Logger

	HTTP *http.Client
}

// NewClient builds a base client with the shared transport and default
// timeout.
func NewClient(base, token, authHeader string, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	return Client{
		Base:       strings.TrimRight(base, "/"),
		Token:      token,
		AuthHeader: authHeader,
		Logger:     logger,
		HTTP: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: sharedTransport,
		},
	}
}

// DrainAndClose reads up to limit bytes from rc and closes it so the
// connection can return to the pool.
func DrainAndClose(rc io.ReadCloser, limit int64) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, limit))
	rc.Close()
}

// Do sends a request to handler (path below Base). GET requests encode
// params as the query string; other methods JSON-encode body. The decoded
// JSON body is stored into out when non-nil.
//
// Responses whose body is a JSON envelope with a non-200 "code" raise a
// *ResponseError; transport and decode failures raise a *FatalError.
func (c *Client) Do(ctx context.Context, method, handler string, params url.Values, body any, out any) error {
	u := c.Base + "/" + strings.TrimLeft(handler, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &FatalError{Err: fmt.Errorf("encode request body: %w", err)}
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return &FatalError{Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" && c.AuthHeader != "" {
		req.Header.Set(c.AuthHeader, c.Token)
	}

	c.Logger.Debug("backend request", "method", method, "url", u)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &FatalError{Err: err}
	}
	defer DrainAndClose(resp.Body, 1<<16)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &FatalError{Err: fmt.Errorf("read response: %w", err)}
	}

	// Most backends wrap replies in a {code, message, ...} envelope; some
	// (the official API) return bare arrays. Only object bodies are checked
	// for an envelope code.
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return &FatalError{Err: fmt.Errorf("decode response: %w", err)}
		}
		if envelope.Code != 0 && envelope.Code != http.StatusOK {
			var data map[string]any
			_ = json.Unmarshal(raw, &data)
			return &ResponseError{Code: envelope.Code, Data: data}
		}
	}
	if resp.StatusCode >= 400 {
		var data map[string]any
		_ = json.Unmarshal(raw, &data)
		return &ResponseError{Code: resp.StatusCode, Data: data}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &FatalError{Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

// Get is Do with method GET and no body.
func (c *Client) Get(ctx context.Context, handler string, params url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, handler, params, nil, out)
}

// Post is Do with method POST and a JSON body.
func (c *Client) Post(ctx context.Context, handler string, body any, out any) error {
	return c.Do(ctx, http.MethodPost, handler, nil, body, out)
}
