package mcp

import (
	"context"
	"time"

	"github.com/claude/kanufit/internal/catalog"
	"github.com/claude/kanufit/internal/insights"
	"github.com/claude/kanufit/internal/models"
	"github.com/claude/kanufit/internal/tracker"
)

// DataSource abstracts the data layer for MCP tools. Both *tracker.Tracker
// (local) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ListTemplates(ctx context.Context) ([]catalog.Template, error)
	QueryLogs(ctx context.Context, start, end time.Time, typeFilter string) ([]models.WorkoutLog, error)
	QueryWeights(ctx context.Context, start, end time.Time) ([]models.WeightEntry, error)
	GetExerciseHistory(ctx context.Context, exerciseID string) ([]models.ExerciseHistory, error)
	GetInsights(ctx context.Context, windowDays, months int) (*insights.Report, error)
	GetDashboard(ctx context.Context) (*insights.Dashboard, error)
}

// Compile-time check: *tracker.Tracker satisfies DataSource.
var _ DataSource = (*tracker.Tracker)(nil)
