package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/kanufit/internal/insights"
)

// defaultTimeRange returns start/end, defaulting to the last days days.
func defaultTimeRange(startStr, endStr string, days int) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -days)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolListTemplates = mcp.NewTool("list_templates",
	mcp.WithDescription("List the workout templates: id, name, type (strength, functional, cardio, yoga), duration and the ordered exercises with target sets, reps, rest and form notes."),
)

var toolGetWorkoutLogs = mcp.NewTool("get_workout_logs",
	mcp.WithDescription("Query logged workout sessions, newest first. Each log holds the template snapshot and the weight/reps captured for every set."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("type", mcp.Description("Filter by workout type (e.g. 'strength', 'yoga') or part of the template name")),
)

var toolGetInsights = mcp.NewTool("get_insights",
	mcp.WithDescription("Training insights: total sessions, session count and average duration over a sliding window, sessions per calendar month, sessions per type and the last recorded performance of every exercise."),
	mcp.WithNumber("window_days", mcp.Description("Sliding window length in days, at most 3650. Defaults to 30.")),
	mcp.WithNumber("months", mcp.Description("Number of calendar months to report, ending with the current one, at most 120. Defaults to 6.")),
)

var toolGetExerciseHistory = mcp.NewTool("get_exercise_history",
	mcp.WithDescription("Last recorded weight and reps per exercise, with the date they were recorded."),
	mcp.WithString("exercise", mcp.Description("Exercise ID (e.g. 'm_chest'). Omit to list every exercise.")),
)

var toolGetWeights = mcp.NewTool("get_weights",
	mcp.WithDescription("Body-weight measurements, newest first."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 90 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
)

// --- Tool handlers ---

func (h *handlers) listTemplates(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templates, err := h.ds.ListTemplates(ctx)
	if err != nil {
		h.log.Error("mcp list_templates", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(templates)
}

func (h *handlers) getWorkoutLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 30)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	logs, err := h.ds.QueryLogs(ctx, start, end, req.GetString("type", ""))
	if err != nil {
		h.log.Error("mcp get_workout_logs", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(logs)
}

func (h *handlers) getInsights(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	window := req.GetInt("window_days", 30)
	months := req.GetInt("months", 6)
	if window <= 0 || months <= 0 {
		return mcp.NewToolResultError("window_days and months must be positive"), nil
	}
	if window > insights.MaxWindowDays || months > insights.MaxMonths {
		return mcp.NewToolResultError(fmt.Sprintf("window_days is limited to %d and months to %d",
			insights.MaxWindowDays, insights.MaxMonths)), nil
	}

	rep, err := h.ds.GetInsights(ctx, window, months)
	if err != nil {
		h.log.Error("mcp get_insights", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(rep)
}

func (h *handlers) getExerciseHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hist, err := h.ds.GetExerciseHistory(ctx, req.GetString("exercise", ""))
	if err != nil {
		h.log.Error("mcp get_exercise_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(hist)
}

func (h *handlers) getWeights(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 90)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	weights, err := h.ds.QueryWeights(ctx, start, end)
	if err != nil {
		h.log.Error("mcp get_weights", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(weights)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
