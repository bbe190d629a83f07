// Package projects — HTTP-клиент внешнего CRUD проектов (GET/PUT /api/projects/{id}).
package projects

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cwrk-planet/collab-service/internal/domain"
)

var (
	ErrNotFound     = errors.New("project not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrUpstream     = errors.New("upstream error")
)

type Project struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Files []domain.File `json:"files"`
}

type saveRequest struct {
	Files []domain.File `json:"files"`
}

type Client struct {
	base  string
	token string
	http  *http.Client
}

type Option func(*Client)

// WithToken добавляет Authorization: Bearer ко всем запросам.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Get(ctx context.Context, id string) (Project, error) {
	var p Project
	if err := c.do(ctx, http.MethodGet, id, nil, &p); err != nil {
		return Project{}, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

// SaveFiles заменяет файлы проекта текущим набором.
func (c *Client) SaveFiles(ctx context.Context, id string, files []domain.File) error {
	if files == nil {
		files = []domain.File{}
	}
	if err := c.do(ctx, http.MethodPut, id, saveRequest{Files: files}, nil); err != nil {
		return fmt.Errorf("save project %s: %w", id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, id string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+"/api/projects/"+url.PathEscape(id), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if err := statusErr(resp.StatusCode); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	return nil
}

func statusErr(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("%w: status %d", ErrUpstream, code)
	}
}
