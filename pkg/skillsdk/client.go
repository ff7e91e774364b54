package skillsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/llm-inline/llmi/pkg/bridge"
	"github.com/pkg/errors"
)

// Client implements bridge.Bridge over the host's loopback transport. Like
// the in-process bridge it never returns Go errors; transport failures are
// reported in the result's Error field.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ bridge.Bridge = (*Client)(nil)

// NewClient creates a client for the bridge at baseURL
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// GetFileContent asks the host to read path under its attachment policy
func (c *Client) GetFileContent(ctx context.Context, path string) bridge.FileContent {
	var out bridge.FileContent
	if err := c.post(ctx, bridge.PathFile, bridge.FileRequest{Path: path}, &out); err != nil && out.Error == nil {
		out = bridge.FileContent{Path: path, Error: err}
	}
	return out
}

// CallLLM asks the host to run a completion
func (c *Client) CallLLM(ctx context.Context, req bridge.LLMRequest) bridge.LLMResponse {
	var out bridge.LLMResponse
	if err := c.post(ctx, bridge.PathLLM, req, &out); err != nil && out.Error == nil {
		out = bridge.LLMResponse{Error: err}
	}
	return out
}

// Version returns the API version spoken by the host
func (c *Client) Version(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+bridge.PathVersion, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to reach bridge")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("bridge returned HTTP %d", resp.StatusCode)
	}
	var out bridge.VersionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "failed to decode version")
	}
	return out.APIVersion, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) *bridge.Error {
	data, err := json.Marshal(body)
	if err != nil {
		return &bridge.Error{Code: bridge.CodeInvalidRequest, Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return &bridge.Error{Code: bridge.CodeInternal, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &bridge.Error{Code: bridge.CodeInternal, Message: "bridge unreachable: " + err.Error()}
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &bridge.Error{Code: bridge.CodeInternal, Message: "invalid bridge response: " + err.Error()}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return &bridge.Error{Code: bridge.CodeInvalidRequest, Message: "bridge rejected the execution token"}
	}
	return nil
}
