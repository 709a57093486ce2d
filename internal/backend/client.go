// Package backend talks to the survey templates REST API on behalf of a console user.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/patient-feedback/survey-console/internal/models"
	"github.com/patient-feedback/survey-console/internal/utils"
)

const templatesPath = "/survey-templates"

// TemplateAPI is the subset of the survey templates API the console uses.
type TemplateAPI interface {
	ListSurveyTemplates(ctx context.Context, p models.Principal, page Page) (*models.SurveyTemplateList, error)
	ListActiveSurveyTemplates(ctx context.Context, p models.Principal, page Page) (*models.SurveyTemplateList, error)
	ReadSurveyTemplate(ctx context.Context, p models.Principal, id string) (*models.SurveyTemplate, error)
	CreateSurveyTemplate(ctx context.Context, p models.Principal, create models.SurveyTemplateCreate) (*models.SurveyTemplate, error)
	UpdateSurveyTemplate(ctx context.Context, p models.Principal, id string, update models.SurveyTemplateUpdate) (*models.SurveyTemplate, error)
	ActivateSurveyTemplate(ctx context.Context, p models.Principal, id string) (*models.SurveyTemplate, error)
	DeactivateSurveyTemplate(ctx context.Context, p models.Principal, id string) (*models.SurveyTemplate, error)
	DeleteSurveyTemplate(ctx context.Context, p models.Principal, id string) (*models.Message, error)
	DuplicateSurveyTemplate(ctx context.Context, p models.Principal, id string) (*models.SurveyTemplate, error)
}

// Page selects a window of a list endpoint. Zero values use the API defaults.
type Page struct {
	Skip  int
	Limit int
}

func (p Page) query() url.Values {
	q := url.Values{}
	if p.Skip > 0 {
		q.Set("skip", strconv.Itoa(p.Skip))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

type Client struct {
	baseURL string
	http    heimdall.Doer
	logger  utils.Logger
}

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Logger  utils.Logger
}

// NewClient builds a client that never retries: a failed save is reported
// to the user, who decides whether to try again.
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: httpclient.NewClient(
			httpclient.WithHTTPTimeout(cfg.Timeout),
			httpclient.WithRetryCount(0),
		),
		logger: cfg.Logger,
	}
}

func (c *Client) ListSurveyTemplates(ctx context.Context, p models.Principal, page Page) (*models.SurveyTemplateList, error) {
	var out models.SurveyTemplateList
	if err := c.do(ctx, p, http.MethodGet, templatesPath+"/", page.query(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListActiveSurveyTemplates(ctx context.Context, p models.Principal, page Page) (*models.SurveyTemplateList, error) {
	var out models.SurveyTemplateList
	if err := c.do(ctx, p, http.MethodGet, templatesPath+"/active", page.query(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ReadSurveyTemplate(ctx context.Context, p models.Principal, id string) (*models.SurveyTemplate, error) {
	var out models.SurveyTemplate
	if err := c.do(ctx, p, http.MethodGet, templatePath(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateSurveyTemplate(ctx context.Context, p models.Principal, create models.SurveyTemplateCreate) (*models.SurveyTemplate, error) {
	var out models.SurveyTemplate
	if err := c.do(ctx, p, http.MethodPost, templatesPath+"/", nil, create, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSurveyTemplate sends a partial update; unset fields are left unchanged.
func (c *Client) UpdateSurveyTemplate(ctx context.Context, p models.Principal, id string, update models.SurveyTemplateUpdate) (*models.SurveyTemplate, error) {
	var out models.SurveyTemplate
	if err := c.do(ctx, p, http.MethodPatch, templatePath(id), nil, update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ActivateSurveyTemplate(ctx context.Context, p models.Principal, id string) (*models.SurveyTemplate, error) {
	var out models.SurveyTemplate
	if err := c.do(ctx, p, http.MethodPatch, templatePath(id)+"/activate", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeactivateSurveyTemplate(ctx context.Context, p models.Principal, id string) (*models.SurveyTemplate, error) {
	var out models.SurveyTemplate
	if err := c.do(ctx, p, http.MethodPatch, templatePath(id)+"/deactivate", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSurveyTemplate(ctx context.Context, p models.Principal, id string) (*models.Message, error) {
	var out models.Message
	if err := c.do(ctx, p, http.MethodDelete, templatePath(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DuplicateSurveyTemplate(ctx context.Context, p models.Principal, id string) (*models.SurveyTemplate, error) {
	var out models.SurveyTemplate
	if err := c.do(ctx, p, http.MethodPost, templatePath(id)+"/duplicate", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func templatePath(id string) string {
	return templatesPath + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, p models.Principal, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Backend request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.DebugContext(ctx, "Backend request",
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"duration", time.Since(start).String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response from %s %s: %w", method, path, err)
	}
	return nil
}
