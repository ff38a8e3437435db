package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/flows"
	"github.com/tjfontaine/polyglot-flow/internal/pipeline"
	"github.com/tjfontaine/polyglot-flow/internal/schema"
)

// maxBodyBytes bounds run request bodies.
const maxBodyBytes = 1 << 20

// FlowSummary is one entry of GET /flows.
type FlowSummary struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Steps       int    `json:"steps"`
	Input       string `json:"input,omitempty"`
}

// FlowDescription is the body of GET /flows/{id}.
type FlowDescription struct {
	ID          string            `json:"id" yaml:"id"`
	Description string            `json:"description" yaml:"description"`
	Params      map[string]any    `json:"params" yaml:"params"`
	Artifact    string            `json:"artifact" yaml:"artifact"`
	Steps       []StepDescription `json:"steps" yaml:"steps"`
}

// StepDescription describes one step's contract.
type StepDescription struct {
	ID          string         `json:"id" yaml:"id"`
	Description string         `json:"description" yaml:"description"`
	Requires    []string       `json:"requires,omitempty" yaml:"requires,omitempty"`
	Required    bool           `json:"required" yaml:"required"`
	Input       map[string]any `json:"input" yaml:"input"`
	Output      map[string]any `json:"output" yaml:"output"`
}

// Describe builds the description of a catalog entry.
func Describe(e flows.Entry) FlowDescription {
	p := e.Pipeline
	d := FlowDescription{
		ID:          p.ID(),
		Description: p.Description(),
		Params:      p.ParamsSchema().Describe(),
		Artifact:    e.Artifact,
	}
	for _, st := range p.Steps() {
		d.Steps = append(d.Steps, StepDescription{
			ID:          st.ID(),
			Description: st.Description(),
			Requires:    st.Requires(),
			Required:    st.Required(),
			Input:       st.InputSchema().Describe(),
			Output:      st.OutputSchema().Describe(),
		})
	}
	return d
}

// RunResponse is the body of POST /flows/{id}/run.
type RunResponse struct {
	Run      *domain.RunRecord         `json:"run"`
	Outputs  map[string]domain.Payload `json:"outputs"`
	Document string                    `json:"document,omitempty"`
	Artifact string                    `json:"artifact,omitempty"`
	Error    *domain.PipelineError     `json:"error,omitempty"`
}

type errorResponse struct {
	Error *domain.PipelineError `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	entries := s.backend.Catalog().List()
	out := make([]FlowSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, FlowSummary{
			ID:          e.ID(),
			Description: e.Pipeline.Description(),
			Steps:       len(e.Pipeline.Steps()),
			Input:       e.Input,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"flows": out})
}

func (s *Server) handleDescribeFlow(w http.ResponseWriter, r *http.Request) {
	e, err := s.backend.Catalog().Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Describe(e))
}

func (s *Server) handleRunFlow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	AddLogField(ctx, "flow", id)

	e, err := s.backend.Catalog().Get(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	params, err := decodeParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	run, err := e.Pipeline.Run(ctx, params)
	if run == nil {
		s.writeError(w, r, err)
		return
	}
	AddLogField(ctx, "run_id", run.ID)

	resp := RunResponse{
		Run:      run.Record(),
		Outputs:  run.Outputs(),
		Artifact: e.Artifact,
	}
	if run.Status == domain.RunStatusCompleted && e.Render != nil {
		resp.Document = e.Render(run)
	}

	status := http.StatusOK
	if err != nil {
		AddError(ctx, err)
		resp.Error = domain.AsPipelineError(err, domain.KindGeneration)
		status = runFailureStatus(run)
	}
	writeJSON(w, status, resp)
}

// runFailureStatus maps a run that stopped early: a failed step is a bad
// gateway regardless of kind, a cancelled run is unavailable.
func runFailureStatus(run *pipeline.Run) int {
	if run.Status == domain.RunStatusCancelled {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	store := s.backend.Store()
	if store == nil {
		s.writeError(w, r, domain.ErrNotFound("run storage is disabled"))
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, domain.ErrValidation("limit must be a non-negative integer").WithField("limit"))
			return
		}
		limit = n
	}

	runs, err := store.ListRuns(r.Context(), r.URL.Query().Get("flow"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	store := s.backend.Store()
	if store == nil {
		s.writeError(w, r, domain.ErrNotFound("run storage is disabled"))
		return
	}
	run, err := store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// decodeParams reads the request body as a JSON object. An empty body is an
// empty parameter set.
func decodeParams(r *http.Request) (domain.Payload, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, domain.ErrValidation("failed to read request body").WithErr(err)
	}
	if len(body) > maxBodyBytes {
		return nil, domain.ErrValidation("request body too large")
	}
	if strings.TrimSpace(string(body)) == "" {
		return domain.Payload{}, nil
	}
	params, err := schema.Decode(body)
	if err != nil {
		// A body that is not a JSON object is the caller's mistake.
		return nil, domain.ErrValidation("request body must be a JSON object").WithErr(err)
	}
	return params, nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)
	pe := domain.AsPipelineError(err, "")
	status := http.StatusInternalServerError
	if pe.Kind != "" {
		status = pe.HTTPStatusCode()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("request_id", GetRequestID(r.Context())),
			slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorResponse{Error: pe})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
