package bom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Credentials identify one BOM account.
type Credentials struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Debug     bool
}

type Client struct {
	HTTP *http.Client
	Log  *logrus.Logger
}

func NewClient(timeout time.Duration, log *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{HTTP: &http.Client{Timeout: timeout}, Log: log}
}

// --- Request / Response Structures ---

type SendTemplateRequest struct {
	TemplateID string            `json:"template_id"`
	Phone      string            `json:"phone"`
	Params     map[string]string `json:"params"`
}

// Response is the raw HTTP outcome of a BOM call.
type Response struct {
	StatusCode int
	Body       []byte
}

func (r *Response) Text() string {
	return string(r.Body)
}

// Decode parses the body as a JSON object.
func (r *Response) Decode() (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(r.Body, &data); err != nil {
		return nil, fmt.Errorf("decode BOM response: %w", err)
	}
	return data, nil
}

type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

type TemplateInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Type        string      `json:"type"`
	Content     string      `json:"content"`
	Parameters  []Parameter `json:"parameters"`
}

type OAInfo struct {
	OAID   string `json:"oa_id"`
	OAName string `json:"oa_name"`
}

// --- API Methods ---

func (c *Client) SendTemplate(ctx context.Context, creds Credentials, req SendTemplateRequest) (*Response, error) {
	if creds.Debug {
		payload, _ := json.Marshal(req)
		c.Log.WithField("request", string(payload)).Info("sending ZNS request")
	}
	resp, err := c.sendRequest(ctx, http.MethodPost, endpoint(creds, "send-template"), creds, req)
	if err == nil && creds.Debug {
		c.Log.WithField("response", resp.Text()).Info("ZNS response")
	}
	return resp, err
}

func (c *Client) MessageStatus(ctx context.Context, creds Credentials, messageID string) (*Response, error) {
	resp, err := c.sendRequest(ctx, http.MethodGet, endpoint(creds, "status", messageID), creds, nil)
	if err == nil && creds.Debug {
		c.Log.WithField("response", resp.Text()).Info("status check response")
	}
	return resp, err
}

// Ping probes GET /status to verify the credentials.
func (c *Client) Ping(ctx context.Context, creds Credentials) (*Response, error) {
	return c.sendRequest(ctx, http.MethodGet, endpoint(creds, "status"), creds, nil)
}

func (c *Client) OAInfo(ctx context.Context, creds Credentials) (*OAInfo, *Response, error) {
	resp, err := c.sendRequest(ctx, http.MethodGet, endpoint(creds, "zalo-oa-info"), creds, nil)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp, statusError(resp)
	}
	var info OAInfo
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return nil, resp, fmt.Errorf("decode OA info: %w", err)
	}
	return &info, resp, nil
}

func (c *Client) Template(ctx context.Context, creds Credentials, code string) (*TemplateInfo, *Response, error) {
	resp, err := c.sendRequest(ctx, http.MethodGet, endpoint(creds, "template", code), creds, nil)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp, statusError(resp)
	}
	var info TemplateInfo
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return nil, resp, fmt.Errorf("decode template: %w", err)
	}
	return &info, resp, nil
}

// --- Helper ---

func (c *Client) sendRequest(ctx context.Context, method, target string, creds Credentials, body interface{}) (*Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", creds.APIKey)
	req.Header.Set("X-Api-Secret", creds.APISecret)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

func endpoint(creds Credentials, parts ...string) string {
	base := strings.TrimRight(creds.BaseURL, "/")
	for _, p := range parts {
		base += "/" + url.PathEscape(p)
	}
	return base
}

func statusError(resp *Response) error {
	return fmt.Errorf("status code: %d. response: %s", resp.StatusCode, resp.Text())
}
