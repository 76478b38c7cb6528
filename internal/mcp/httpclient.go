package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/kanufit/internal/catalog"
	"github.com/claude/kanufit/internal/insights"
	"github.com/claude/kanufit/internal/models"
)

// HTTPClient implements DataSource by calling the KanuFit REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func timeParams(start, end time.Time) url.Values {
	v := url.Values{}
	if !start.IsZero() {
		v.Set("start", start.Format(time.RFC3339))
	}
	if !end.IsZero() {
		v.Set("end", end.Format(time.RFC3339))
	}
	return v
}

func (c *HTTPClient) ListTemplates(ctx context.Context) ([]catalog.Template, error) {
	var templates []catalog.Template
	if err := c.get(ctx, "/api/v1/templates", nil, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

func (c *HTTPClient) QueryLogs(ctx context.Context, start, end time.Time, typeFilter string) ([]models.WorkoutLog, error) {
	params := timeParams(start, end)
	if typeFilter != "" {
		params.Set("type", typeFilter)
	}

	var logs []models.WorkoutLog
	if err := c.get(ctx, "/api/v1/logs", params, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (c *HTTPClient) QueryWeights(ctx context.Context, start, end time.Time) ([]models.WeightEntry, error) {
	var weights []models.WeightEntry
	if err := c.get(ctx, "/api/v1/weights", timeParams(start, end), &weights); err != nil {
		return nil, err
	}
	return weights, nil
}

func (c *HTTPClient) GetExerciseHistory(ctx context.Context, exerciseID string) ([]models.ExerciseHistory, error) {
	if exerciseID == "" {
		var all []models.ExerciseHistory
		if err := c.get(ctx, "/api/v1/history", nil, &all); err != nil {
			return nil, err
		}
		return all, nil
	}

	var h models.ExerciseHistory
	if err := c.get(ctx, "/api/v1/history/"+url.PathEscape(exerciseID), nil, &h); err != nil {
		return nil, err
	}
	return []models.ExerciseHistory{h}, nil
}

func (c *HTTPClient) GetInsights(ctx context.Context, windowDays, months int) (*insights.Report, error) {
	params := url.Values{}
	params.Set("window_days", strconv.Itoa(windowDays))
	params.Set("months", strconv.Itoa(months))

	var rep insights.Report
	if err := c.get(ctx, "/api/v1/insights", params, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (c *HTTPClient) GetDashboard(ctx context.Context) (*insights.Dashboard, error) {
	var d insights.Dashboard
	if err := c.get(ctx, "/api/v1/dashboard", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
