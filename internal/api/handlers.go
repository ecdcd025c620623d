package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/roach88/seedgraph/internal/graph"
	"github.com/roach88/seedgraph/internal/ir"
	"github.com/roach88/seedgraph/internal/scenario"
)

// StepView is one plan step in a /v1/plans response.
type StepView struct {
	Index  int         `json:"index"`
	Path   string      `json:"path"`
	Entity string      `json:"entity"`
	Kind   graph.Kind  `json:"kind"`
	Slots  []SlotView  `json:"slots,omitempty"`
	Values ir.IRObject `json:"values,omitempty"`
}

// SlotView is a foreign-key column filled at run time.
type SlotView struct {
	Column string `json:"column"`
	From   string `json:"from"`
}

// PlanView is the /v1/plans response body.
type PlanView struct {
	Scenario string     `json:"scenario"`
	SpecHash string     `json:"spec_hash"`
	Steps    []StepView `json:"steps"`
	Text     string     `json:"text"`
}

// NewPlanView renders p for JSON output.
func NewPlanView(p *graph.Plan) PlanView {
	out := PlanView{Scenario: p.Scenario, SpecHash: p.SpecHash, Text: p.Describe()}
	for i, s := range p.Steps {
		sv := StepView{Index: i, Path: s.Node.Path, Entity: s.Node.Entity.Name, Kind: s.Op.Kind, Values: s.Op.Values}
		for _, slot := range s.Node.Slots {
			sv.Slots = append(sv.Slots, SlotView{Column: slot.Column, From: slot.From.Path})
		}
		out.Steps = append(out.Steps, sv)
	}
	return out
}

// POST /v1/plans
func PlanHandler(eng Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		spec, ok := bindSpec(c)
		if !ok {
			return
		}
		plan, err := eng.Plan(spec)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, NewPlanView(plan))
	}
}

// POST /v1/graphs
func ApplyHandler(eng Engine, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		spec, ok := bindSpec(c)
		if !ok {
			return
		}
		res, err := eng.ApplyGraph(c.Request.Context(), spec)
		if err != nil {
			logger.Warn("apply failed", "scenario", spec.Name, "path", ir.PathOf(err), "error", err)
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

// GET /v1/runs?limit=n
func RunsHandler(runs History) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}
		recs, err := runs.ListRuns(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if recs == nil {
			recs = []ir.RunRecord{}
		}
		c.JSON(http.StatusOK, gin.H{"runs": recs})
	}
}

// bindSpec decodes the request body as a seed document. YAML is accepted
// when the content type says so; everything else is read as JSON.
func bindSpec(c *gin.Context) (ir.GraphSpec, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return ir.GraphSpec{}, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return ir.GraphSpec{}, false
	}

	format := "json"
	if mt, _, err := mime.ParseMediaType(c.ContentType()); err == nil {
		switch mt {
		case "application/yaml", "application/x-yaml", "text/yaml":
			format = "yaml"
		}
	}
	spec, err := scenario.Decode(body, format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return ir.GraphSpec{}, false
	}
	return spec, true
}

// StatusFor maps an engine error to an HTTP status.
func StatusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	cause := ir.Cause(err)
	if cause == nil {
		return http.StatusInternalServerError
	}
	switch cause.Code {
	case ir.ErrCodeMalformedSpec:
		return http.StatusBadRequest
	case ir.ErrCodeValidation, ir.ErrCodeCycle, ir.ErrCodeUniqueNotFound:
		return http.StatusUnprocessableEntity
	case ir.ErrCodeConstraintViolation:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if cause := ir.Cause(err); cause != nil {
		body["code"] = cause.Code
		if cause.Path != "" {
			body["path"] = cause.Path
		}
		if cause.Entity != "" {
			body["entity"] = cause.Entity
		}
		if len(cause.Cycle) > 0 {
			body["cycle"] = cause.Cycle
		}
		body["rolled_back"] = ir.IsTransactionAbort(err)
	}
	c.JSON(StatusFor(err), body)
}
