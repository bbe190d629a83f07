// Package sandbox запускает код через внешний sandbox API (POST {base}/api/run).
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrNoCode      = errors.New("nothing to run")
	ErrUnreachable = errors.New("execution failed to reach server")
)

// DefaultVersion — для языков без записи в таблице.
const DefaultVersion = "18.15.0"

var versions = map[string]string{
	"javascript": "18.15.0",
	"typescript": "5.0.3",
	"python":     "3.10.0",
	"java":       "15.0.2",
	"csharp":     "6.12.0",
	"php":        "8.2.3",
}

func VersionFor(language string) string {
	if v, ok := versions[language]; ok {
		return v
	}
	return DefaultVersion
}

type runRequest struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Code     string `json:"code"`
}

type runResponse struct {
	Run struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
	} `json:"run"`
	Error string `json:"error,omitempty"`
}

// Output — результат запуска. IsError: непустой stderr или сбой запроса.
type Output struct {
	IsError bool
	Message string
}

type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) Execute(ctx context.Context, language, code string) (Output, error) {
	if strings.TrimSpace(language) == "" {
		return Output{}, ErrNoCode
	}
	body, err := json.Marshal(runRequest{Language: language, Version: VersionFor(language), Code: code})
	if err != nil {
		return Output{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/run", bytes.NewReader(body))
	if err != nil {
		return Output{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Output{IsError: true, Message: ErrUnreachable.Error()}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	var out runResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Output{IsError: true, Message: ErrUnreachable.Error()}, fmt.Errorf("%w: decode: %v", ErrUnreachable, err)
	}
	if resp.StatusCode >= 300 {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Output{IsError: true, Message: msg}, fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}

	if out.Run.Stderr != "" {
		return Output{IsError: true, Message: out.Run.Stderr}, nil
	}
	return Output{Message: out.Run.Stdout}, nil
}
