package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/0xcro3dile/archiverag/internal/domain/entities"
	"github.com/0xcro3dile/archiverag/internal/domain/usecases"
)

// queryRequest is the body of POST /api/query.
type queryRequest struct {
	Query string `json:"query"`
	Model string `json:"model,omitempty"`
	K     int    `json:"k,omitempty"`
}

// sourceJSON describes one retrieved chunk.
type sourceJSON struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Page   int     `json:"page"`
	Score  float64 `json:"score"`
	Text   string  `json:"text,omitempty"`
}

type queryResponse struct {
	Answer  string       `json:"answer"`
	Model   string       `json:"model"`
	K       int          `json:"k"`
	Sources []sourceJSON `json:"sources"`
}

type ingestResponse struct {
	Status    string `json:"status"`
	RunID     string `json:"run_id,omitempty"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
	Existing  int    `json:"existing"`
	Added     int    `json:"added"`
	Skipped   int    `json:"skipped"`
	Duration  string `json:"duration,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.backend.Count(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "chunks": count})
}

// handleQuery processes a non-streaming query. JSON and form bodies are accepted.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			jsonError(w, "invalid form: "+err.Error(), http.StatusBadRequest)
			return
		}
		req.Query = r.FormValue("query")
		req.Model = r.FormValue("model")
		k, err := parseK(r.FormValue("k"))
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.K = k
	}

	if strings.TrimSpace(req.Query) == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}
	if req.K < 0 {
		jsonError(w, "k must be positive", http.StatusBadRequest)
		return
	}

	chain, err := s.backend.Chain(usecases.ChainConfig{Model: req.Model, K: req.K})
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := chain.Query(r.Context(), &entities.ChatRequest{Query: req.Query})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Answer:  resp.Answer,
		Model:   chain.Model(),
		K:       chain.K(),
		Sources: toSources(resp.Sources, true),
	})
}

// handleQueryStream streams the answer as server-sent events. The first
// event lists the sources; each following event carries a token.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	question := q.Get("q")
	if strings.TrimSpace(question) == "" {
		jsonError(w, "query required", http.StatusBadRequest)
		return
	}
	k, err := parseK(q.Get("k"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	chain, err := s.backend.Chain(usecases.ChainConfig{Model: q.Get("model"), K: k})
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx := r.Context()
	tokens, results, err := chain.Stream(ctx, question)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	rc := http.NewResponseController(w)

	sendSSE(w, rc, map[string]any{"sources": toSources(results, false)})
	for token := range tokens {
		if token.Error != nil {
			sendSSE(w, rc, map[string]any{"error": token.Error.Error(), "done": true})
			return
		}
		sendSSE(w, rc, map[string]any{"content": token.Content, "done": token.Done})
		if token.Done {
			return
		}
	}
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	report, err := s.backend.Ingest(r.Context())
	switch {
	case errors.Is(err, entities.ErrNoDocumentsFound):
		writeJSON(w, http.StatusOK, ingestResponse{Status: "no_documents"})
		return
	case err != nil:
		s.writeError(w, err)
		return
	}

	status := "added"
	if report.UpToDate() {
		status = "up_to_date"
	}
	writeJSON(w, http.StatusOK, ingestResponse{
		Status:    status,
		RunID:     report.RunID,
		Documents: report.Documents,
		Chunks:    report.Chunks,
		Existing:  report.Existing,
		Added:     report.Added,
		Skipped:   report.Skipped,
		Duration:  report.Duration.String(),
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.backend.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, entities.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, entities.ErrIngestionInProgress):
		code = http.StatusConflict
	case errors.Is(err, entities.ErrEmbeddingService), errors.Is(err, entities.ErrGenerationService):
		code = http.StatusBadGateway
	}
	if code == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	jsonError(w, err.Error(), code)
}

func parseK(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	k, err := strconv.Atoi(v)
	if err != nil || k <= 0 {
		return 0, fmt.Errorf("k must be a positive integer, got %q", v)
	}
	return k, nil
}

func toSources(results []entities.QueryResult, withText bool) []sourceJSON {
	out := make([]sourceJSON, len(results))
	for i, r := range results {
		out[i] = sourceJSON{
			ID:     r.Chunk.ID,
			Source: r.Chunk.Source,
			Page:   r.Chunk.Page,
			Score:  r.Score,
		}
		if withText {
			out[i].Text = r.Chunk.Content
		}
	}
	return out
}

func sendSSE(w http.ResponseWriter, rc *http.ResponseController, data map[string]any) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	rc.Flush()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
