package adapthttp

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"insightdeck/internal/adapter/memory"
	"insightdeck/internal/domain"
)

// defaultInsightCost is charged for each insights or query request.
const defaultInsightCost = domain.UnitsPerCredit / 10

var chartTypes = []string{"bar", "line", "area", "pie", "scatter", "histogram"}

type columnInfo struct {
	Name      string `json:"name"`
	Dtype     string `json:"dtype"`
	NullCount int    `json:"null_count"`

	values []float64
}

type datasetRequest struct {
	FileID     string `json:"file_id"`
	SheetIndex int    `json:"sheet_index"`
	Query      string `json:"query,omitempty"`
}

type insight struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Importance  string  `json:"importance,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

type chartRecommendation struct {
	ChartType string   `json:"chart_type"`
	Title     string   `json:"title"`
	XColumn   string   `json:"x_column,omitempty"`
	YColumns  []string `json:"y_columns,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// sheet resolves a processed sheet, writing the error response itself when it
// cannot.
func (s *Server) sheet(w http.ResponseWriter, r *http.Request, fileID string, index int) (*domain.ProcessingResult, *domain.Dataframe, bool) {
	res, err := s.backend.Result(accountFrom(r.Context()).ID, fileID)
	if err != nil {
		writeFileError(w, err)
		return nil, nil, false
	}
	if len(res.Dataframes) == 0 {
		return res, nil, true
	}
	if index < 0 || index >= len(res.Dataframes) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Sheet index %d out of range", index))
		return nil, nil, false
	}
	return res, &res.Dataframes[index], true
}

func (s *Server) charge(w http.ResponseWriter, r *http.Request) bool {
	err := s.backend.Charge(accountFrom(r.Context()).ID, s.insightCost)
	switch {
	case errors.Is(err, memory.ErrNoCredits):
		writeError(w, http.StatusPaymentRequired, "Insufficient credits")
		return false
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal error")
		return false
	}
	return true
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	index := intQuery(r, "sheet_index", 0)
	_, df, ok := s.sheet(w, r, id, index)
	if !ok {
		return
	}
	if df == nil {
		writeError(w, http.StatusBadRequest, "File has no tabular data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file_id":     id,
		"sheet_index": index,
		"columns":     describeColumns(df),
	})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	var req datasetRequest
	if err := parseJSON(r, &req); err != nil || req.FileID == "" {
		writeValidation(w, "file_id", "field required")
		return
	}
	res, df, ok := s.sheet(w, r, req.FileID, req.SheetIndex)
	if !ok || !s.charge(w, r) {
		return
	}

	var insights []insight
	var summary string
	if df == nil {
		words := len(strings.Fields(res.TextContent))
		summary = fmt.Sprintf("Document with %d words.", words)
		insights = append(insights, insight{
			Title:       "Document length",
			Description: fmt.Sprintf("The document contains %d words.", words),
			Importance:  "medium",
			Confidence:  1,
		})
	} else {
		summary = fmt.Sprintf("Sheet %q has %d rows and %d columns.", df.SheetName, df.Rows, df.Columns)
		for _, c := range describeColumns(df) {
			if c.Dtype != "float64" || len(c.values) == 0 {
				continue
			}
			lo, hi, mean := stats(c.values)
			insights = append(insights, insight{
				Title:       c.Name + " range",
				Description: fmt.Sprintf("%s ranges from %g to %g with a mean of %.2f.", c.Name, lo, hi, mean),
				Importance:  "medium",
				Confidence:  1,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file_id":     req.FileID,
		"insights":    insights,
		"summary":     summary,
		"tokens_used": s.insightCost,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req datasetRequest
	if err := parseJSON(r, &req); err != nil || req.FileID == "" || strings.TrimSpace(req.Query) == "" {
		writeValidation(w, "query", "field required")
		return
	}
	res, df, ok := s.sheet(w, r, req.FileID, req.SheetIndex)
	if !ok || !s.charge(w, r) {
		return
	}

	var answer string
	if df == nil {
		answer = fmt.Sprintf("The document has %d characters.", len(res.TextContent))
	} else {
		var mentioned []string
		q := strings.ToLower(req.Query)
		for _, name := range df.ColumnNames {
			if strings.Contains(q, strings.ToLower(name)) {
				mentioned = append(mentioned, name)
			}
		}
		answer = fmt.Sprintf("The dataset has %d rows and %d columns.", df.Rows, df.Columns)
		if len(mentioned) > 0 {
			answer += " Columns referenced: " + strings.Join(mentioned, ", ") + "."
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"answer": answer})
}

func (s *Server) handleRecommendCharts(w http.ResponseWriter, r *http.Request) {
	var req datasetRequest
	if err := parseJSON(r, &req); err != nil || req.FileID == "" {
		writeValidation(w, "file_id", "field required")
		return
	}
	_, df, ok := s.sheet(w, r, req.FileID, req.SheetIndex)
	if !ok {
		return
	}
	if df == nil {
		writeError(w, http.StatusBadRequest, "File has no tabular data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recommend(describeColumns(df))})
}

func (s *Server) handleChartTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"chart_types": chartTypes})
}

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	a := accountFrom(r.Context())
	bal, err := s.backend.Balance(a.ID)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, domain.CreditsInfo{
		UserID:         a.ID,
		ActiveTokens:   bal,
		DisplayCredits: domain.Balance(bal).Display(),
	})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotImplemented, "Payments are not available in the sandbox")
}

// describeColumns infers a dtype per column: float64 when every non-empty
// value parses as a number, object otherwise.
func describeColumns(df *domain.Dataframe) []columnInfo {
	cols := make([]columnInfo, 0, len(df.ColumnNames))
	for _, name := range df.ColumnNames {
		c := columnInfo{Name: name, Dtype: "float64"}
		for _, row := range df.Data {
			v, ok := row[name]
			s := ""
			if ok && v != nil {
				s = strings.TrimSpace(fmt.Sprint(v))
			}
			if s == "" {
				c.NullCount++
				continue
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				c.Dtype = "object"
				continue
			}
			c.values = append(c.values, f)
		}
		if len(c.values) == 0 {
			c.Dtype = "object"
		}
		cols = append(cols, c)
	}
	return cols
}

func stats(vs []float64) (lo, hi, mean float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	var sum float64
	for _, v := range vs {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		sum += v
	}
	return lo, hi, sum / float64(len(vs))
}

func recommend(cols []columnInfo) []chartRecommendation {
	var x string
	var ys []string
	for _, c := range cols {
		switch {
		case c.Dtype == "float64":
			ys = append(ys, c.Name)
		case x == "":
			x = c.Name
		}
	}
	var out []chartRecommendation
	if x != "" && len(ys) > 0 {
		out = append(out, chartRecommendation{
			ChartType: "bar",
			Title:     strings.Join(ys, ", ") + " by " + x,
			XColumn:   x,
			YColumns:  ys,
			Reason:    "Compares numeric values across categories",
		})
		lower := strings.ToLower(x)
		if strings.Contains(lower, "date") || strings.Contains(lower, "time") || strings.Contains(lower, "month") {
			out = append(out, chartRecommendation{
				ChartType: "line",
				Title:     strings.Join(ys, ", ") + " over " + x,
				XColumn:   x,
				YColumns:  ys,
				Reason:    "Shows the trend over time",
			})
		}
	}
	if len(ys) >= 2 {
		out = append(out, chartRecommendation{
			ChartType: "scatter",
			Title:     ys[0] + " vs " + ys[1],
			XColumn:   ys[0],
			YColumns:  ys[1:2],
			Reason:    "Shows the relationship between two numeric columns",
		})
	}
	if len(ys) > 0 {
		out = append(out, chartRecommendation{
			ChartType: "histogram",
			Title:     "Distribution of " + ys[0],
			XColumn:   ys[0],
			Reason:    "Shows the distribution of values",
		})
	}
	return out
}
