package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"slime/internal/explain"
	"slime/internal/store"
)

// ExplainRequest is a precomputed perturbation neighborhood. Row 0 of
// Data must be the unperturbed instance.
type ExplainRequest struct {
	Data         [][]float64 `json:"data" binding:"required"`
	Labels       []float64   `json:"labels" binding:"required"`
	Distances    []float64   `json:"distances,omitempty"`
	FeatureNames []string    `json:"feature_names,omitempty"`
	Dataset      string      `json:"dataset,omitempty"`
	Save         bool        `json:"save,omitempty"`
}

// ExplainResponse carries the explanation and the run id when saved.
type ExplainResponse struct {
	RunID       string               `json:"run_id,omitempty"`
	Explanation *explain.Explanation `json:"explanation"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleExplain(c *gin.Context) {
	start := time.Now()
	var req ExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, "explain", http.StatusBadRequest, err)
		return
	}

	data, err := toDense(req.Data)
	if err != nil {
		s.fail(c, "explain", http.StatusBadRequest, err)
		return
	}

	exp, err := s.pipe.ExplainNeighborhood(data, req.Labels, req.Distances)
	if err != nil {
		s.fail(c, "explain", http.StatusUnprocessableEntity, err)
		return
	}
	s.metrics.FeaturesEliminated.Add(float64(len(exp.Eliminated)))

	resp := ExplainResponse{Explanation: exp}
	if req.Save {
		if s.runs == nil {
			s.fail(c, "explain", http.StatusConflict, fmt.Errorf("run persistence is disabled"))
			return
		}
		id, err := s.runs.SaveRun(&store.Run{
			Dataset:      req.Dataset,
			Instance:     req.Data[0],
			Params:       s.pipe.Params(),
			Result:       exp,
			FeatureNames: req.FeatureNames,
		})
		if err != nil {
			s.fail(c, "explain", http.StatusInternalServerError, err)
			return
		}
		resp.RunID = id
	}

	s.metrics.ExplainDurationSeconds.WithLabelValues("explain").Observe(time.Since(start).Seconds())
	s.metrics.RequestsTotal.WithLabelValues("explain", "ok").Inc()
	c.JSON(http.StatusOK, resp)
}

// handleExplainBackground explains row 0 of the hot-reloaded server
// dataset, treating the whole file as the neighborhood.
func (s *Server) handleExplainBackground(c *gin.Context) {
	start := time.Now()
	s.mu.RLock()
	d := s.background
	s.mu.RUnlock()
	if d == nil {
		s.fail(c, "explain_background", http.StatusConflict,
			fmt.Errorf("no background dataset configured"))
		return
	}
	if d.Labels == nil {
		s.fail(c, "explain_background", http.StatusConflict,
			fmt.Errorf("background dataset has no label column"))
		return
	}

	exp, err := s.pipe.ExplainNeighborhood(d.X, d.Labels, nil)
	if err != nil {
		s.fail(c, "explain_background", http.StatusUnprocessableEntity, err)
		return
	}
	s.metrics.FeaturesEliminated.Add(float64(len(exp.Eliminated)))
	s.metrics.ExplainDurationSeconds.WithLabelValues("explain_background").Observe(time.Since(start).Seconds())
	s.metrics.RequestsTotal.WithLabelValues("explain_background", "ok").Inc()
	c.JSON(http.StatusOK, ExplainResponse{Explanation: exp})
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.runs == nil {
		s.fail(c, "runs_list", http.StatusConflict, fmt.Errorf("run persistence is disabled"))
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.fail(c, "runs_list", http.StatusBadRequest, fmt.Errorf("bad limit %q", v))
			return
		}
		limit = n
	}
	runs, err := s.runs.ListRuns(limit)
	if err != nil {
		s.fail(c, "runs_list", http.StatusInternalServerError, err)
		return
	}
	s.metrics.RequestsTotal.WithLabelValues("runs_list", "ok").Inc()
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s.runs == nil {
		s.fail(c, "runs_get", http.StatusConflict, fmt.Errorf("run persistence is disabled"))
		return
	}
	run, err := s.runs.GetRun(c.Param("id"))
	if err != nil {
		s.fail(c, "runs_get", http.StatusNotFound, err)
		return
	}
	s.metrics.RequestsTotal.WithLabelValues("runs_get", "ok").Inc()
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleDeleteRun(c *gin.Context) {
	if s.runs == nil {
		s.fail(c, "runs_delete", http.StatusConflict, fmt.Errorf("run persistence is disabled"))
		return
	}
	if err := s.runs.DeleteRun(c.Param("id")); err != nil {
		s.fail(c, "runs_delete", http.StatusNotFound, err)
		return
	}
	s.metrics.RequestsTotal.WithLabelValues("runs_delete", "ok").Inc()
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (s *Server) fail(c *gin.Context, endpoint string, status int, err error) {
	s.metrics.RequestsTotal.WithLabelValues(endpoint, "error").Inc()
	s.log.Warn("request failed",
		zap.String("endpoint", endpoint),
		zap.Int("status", status),
		zap.Error(err))
	c.JSON(status, gin.H{"error": err.Error()})
}

func toDense(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("empty data matrix")
	}
	p := len(rows[0])
	out := mat.NewDense(len(rows), p, nil)
	for i, r := range rows {
		if len(r) != p {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(r), p)
		}
		out.SetRow(i, r)
	}
	return out, nil
}
