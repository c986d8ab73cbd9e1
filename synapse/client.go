package synapse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client represents platform API client.
type Client struct {
	endpoint string
	client   http.Client
	Headers  map[string]string
}

type ClientOption func(*Client)

func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.client.Transport = transport
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

// WithAuthToken sets personal access token used instead of login.
func WithAuthToken(token string) ClientOption {
	return func(c *Client) {
		c.Headers["Authorization"] = "Bearer " + token
	}
}

// NewClient returns new platform API client.
func NewClient(endpoint string, options ...ClientOption) *Client {
	c := Client{
		endpoint: endpoint,
		client: http.Client{
			Timeout: time.Minute,
		},
		Headers: map[string]string{},
	}
	for _, option := range options {
		option(&c)
	}
	return &c
}

type loginForm struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionToken string `json:"sessionToken"`
}

// Login authenticates client with username and password.
//
// Acquired session token is attached to all following requests.
func (c *Client) Login(ctx context.Context, username, password string) error {
	data, err := json.Marshal(loginForm{
		Username: username,
		Password: password,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.getURL("/login"), bytes.NewReader(data),
	)
	if err != nil {
		return err
	}
	var respData loginResponse
	if _, err := c.doRequest(req, http.StatusCreated, &respData); err != nil {
		return err
	}
	c.Headers["sessionToken"] = respData.SessionToken
	return nil
}

// RestGET performs GET request to relative API path.
func (c *Client) RestGET(ctx context.Context, path string, respData any) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.getURL(path), nil,
	)
	if err != nil {
		return err
	}
	_, err = c.doRequest(req, http.StatusOK, respData)
	return err
}

// RestPOST performs POST request to relative API path.
func (c *Client) RestPOST(ctx context.Context, path string, reqData, respData any) error {
	return c.doBodyRequest(ctx, http.MethodPost, path, reqData, respData)
}

// RestPUT performs PUT request to relative API path.
func (c *Client) RestPUT(ctx context.Context, path string, reqData, respData any) error {
	return c.doBodyRequest(ctx, http.MethodPut, path, reqData, respData)
}

// RestDELETE performs DELETE request to relative API path.
func (c *Client) RestDELETE(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodDelete, c.getURL(path), nil,
	)
	if err != nil {
		return err
	}
	resp, err := c.doRequest(req, http.StatusOK, nil)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return err
}

func (c *Client) doBodyRequest(
	ctx context.Context, method, path string, reqData, respData any,
) error {
	var body *bytes.Reader
	if reqData != nil {
		data, err := json.Marshal(reqData)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.getURL(path), body)
	if err != nil {
		return err
	}
	resp, err := c.doRequest(req, http.StatusOK, respData)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return err
}

func (c *Client) getURL(path string, args ...any) string {
	return c.endpoint + fmt.Sprintf(path, args...)
}

func (c *Client) doRequest(req *http.Request, code int, respData any) (*http.Response, error) {
	if len(req.Header.Get("Content-Type")) == 0 {
		req.Header.Add("Content-Type", "application/json")
	}
	for key, value := range c.Headers {
		req.Header.Add(key, value)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != code {
		defer func() { _ = resp.Body.Close() }()
		var respData Error
		if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
			return nil, &Error{
				Reason: fmt.Sprintf("status code %d", resp.StatusCode),
				Code:   resp.StatusCode,
			}
		}
		respData.Code = resp.StatusCode
		return nil, &respData
	}
	if respData != nil {
		defer func() { _ = resp.Body.Close() }()
		return nil, json.NewDecoder(resp.Body).Decode(respData)
	}
	return resp, nil
}

// Error represents transport error with HTTP-style status code.
type Error struct {
	Reason string `json:"reason"`
	Code   int    `json:"-"`
}

func (e *Error) Error() string {
	return e.Reason
}

func (e *Error) StatusCode() int {
	return e.Code
}
