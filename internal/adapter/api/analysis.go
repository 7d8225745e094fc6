package api

import (
	"context"
)

// ColumnInfo describes one column of a processed sheet.
type ColumnInfo struct {
	Name      string `json:"name"`
	Dtype     string `json:"dtype"`
	NullCount int    `json:"null_count"`
}

// Columns is the body of GET /data/columns/{id}.
type Columns struct {
	FileID     string       `json:"file_id"`
	SheetIndex int          `json:"sheet_index"`
	Columns    []ColumnInfo `json:"columns"`
}

// Columns lists the columns of a processed sheet.
func (c *Client) Columns(ctx context.Context, fileID string) (*Columns, error) {
	var out Columns
	if err := c.getJSON(ctx, "/data/columns/"+escape(fileID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DatasetRequest addresses one sheet of a processed file.
type DatasetRequest struct {
	FileID     string `json:"file_id"`
	SheetIndex int    `json:"sheet_index"`
}

// Insight is one generated observation.
type Insight struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Importance  string  `json:"importance,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// InsightsResponse is the body of POST /ai/insights.
type InsightsResponse struct {
	FileID     string    `json:"file_id"`
	Insights   []Insight `json:"insights"`
	Summary    string    `json:"summary,omitempty"`
	TokensUsed int64     `json:"tokens_used,omitempty"`
}

// Insights asks the API for AI-generated insights about a dataset.
func (c *Client) Insights(ctx context.Context, req DatasetRequest) (*InsightsResponse, error) {
	var out InsightsResponse
	if err := c.postJSON(ctx, "/ai/insights", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryRequest is a natural-language question about a dataset.
type QueryRequest struct {
	FileID     string `json:"file_id"`
	SheetIndex int    `json:"sheet_index"`
	Query      string `json:"query"`
}

// QueryResponse is the body of POST /ai/query.
type QueryResponse struct {
	Answer string           `json:"answer"`
	Data   []map[string]any `json:"data,omitempty"`
	Chart  map[string]any   `json:"chart,omitempty"`
}

// Query answers a natural-language question about a dataset.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	var out QueryResponse
	if err := c.postJSON(ctx, "/ai/query", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChartRecommendation is one suggested chart.
type ChartRecommendation struct {
	ChartType string   `json:"chart_type"`
	Title     string   `json:"title"`
	XColumn   string   `json:"x_column,omitempty"`
	YColumns  []string `json:"y_columns,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// Recommendations is the body of POST /charts/recommend.
type Recommendations struct {
	Recommendations []ChartRecommendation `json:"recommendations"`
}

// RecommendCharts asks for chart suggestions for a dataset.
func (c *Client) RecommendCharts(ctx context.Context, req DatasetRequest) (*Recommendations, error) {
	var out Recommendations
	if err := c.postJSON(ctx, "/charts/recommend", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChartTypes lists the chart types the API can render.
func (c *Client) ChartTypes(ctx context.Context) ([]string, error) {
	var out struct {
		ChartTypes []string `json:"chart_types"`
	}
	if err := c.getJSON(ctx, "/charts/types", &out); err != nil {
		return nil, err
	}
	return out.ChartTypes, nil
}
