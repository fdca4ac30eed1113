package http

import (
	"context"
	"net/http"
	"time"

	"budget/internal/core"
	"budget/internal/log"
)

// createdAtLayout renders author creation times as dd:MM:yyyy HH:mm:ss.
const createdAtLayout = "02:01:2006 15:04:05"

type authorResponse struct {
	ID        int64  `json:"id"`
	FullName  string `json:"fullName"`
	CreatedAt string `json:"createdAt"`
}

type recordResponse struct {
	ID     int64           `json:"id"`
	Year   int             `json:"year"`
	Month  int             `json:"month"`
	Amount int64           `json:"amount"`
	Type   string          `json:"type"`
	Author *authorResponse `json:"author,omitempty"`
}

type yearStatsResponse struct {
	Total       int64            `json:"total"`
	TotalByType map[string]int64 `json:"totalByType"`
	Items       []recordResponse `json:"items"`
}

func toAuthorResponse(a core.Author) authorResponse {
	return authorResponse{
		ID:        a.ID,
		FullName:  a.FullName,
		CreatedAt: a.CreatedAt.Format(createdAtLayout),
	}
}

func toRecordResponse(r core.BudgetRecord) recordResponse {
	resp := recordResponse{
		ID:     r.ID,
		Year:   r.Year,
		Month:  r.Month,
		Amount: r.Amount,
		Type:   r.Type.String(),
	}
	if r.Author != nil {
		a := toAuthorResponse(*r.Author)
		resp.Author = &a
	}
	return resp
}

func toYearStatsResponse(rep core.YearReport) yearStatsResponse {
	resp := yearStatsResponse{
		Total:       rep.Total,
		TotalByType: make(map[string]int64, len(rep.TotalByType)),
		Items:       make([]recordResponse, 0, len(rep.Items)),
	}
	for t, sum := range rep.TotalByType {
		resp.TotalByType[t.String()] = sum
	}
	for _, item := range rep.Items {
		resp.Items = append(resp.Items, toRecordResponse(item))
	}
	return resp
}

func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in, err := ParseNewRecord(r)
	if err != nil {
		s.writeError(w, r, err, log.ComponentBudget, log.OpCreate)
		return
	}

	rec, err := s.budget.AddRecord(ctx, in)
	if err != nil {
		s.writeError(w, r, err, log.ComponentBudget, log.OpCreate)
		return
	}

	log.NewStructuredLogger(log.FromContext(ctx)).
		LogRecordCreated(ctx, rec.ID, rec.Year, rec.Month, rec.Amount, rec.Type.String(), rec.AuthorID)

	NewJSONResponse().Payload(toRecordResponse(rec)).Write(w)
}

func (s *Server) handleYearStats(w http.ResponseWriter, r *http.Request) {
	params, err := ParseYearStatsParams(r)
	if err != nil {
		s.writeError(w, r, err, log.ComponentBudget, log.OpReport)
		return
	}

	rep, err := s.budget.GetYearStats(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err, log.ComponentBudget, log.OpReport)
		return
	}

	NewJSONResponse().Payload(toYearStatsResponse(rep)).Write(w)
}

func (s *Server) handleAddAuthor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name, err := ParseAuthorName(r)
	if err != nil {
		s.writeError(w, r, err, log.ComponentAuthor, log.OpCreate)
		return
	}

	a, err := s.authors.AddAuthor(ctx, name)
	if err != nil {
		s.writeError(w, r, err, log.ComponentAuthor, log.OpCreate)
		return
	}

	log.FromContext(ctx).WithComponent(log.ComponentAuthor).InfoContext(ctx, "Author created",
		log.FieldAuthorID, a.ID, log.FieldOperation, log.OpCreate)

	NewJSONResponse().Payload(toAuthorResponse(a)).Write(w)
}

// writeError maps request and validation errors to 400 and anything else to
// a logged 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, component, op string) {
	ctx := r.Context()
	if isBadRequest(err) {
		log.FromContext(ctx).DebugContext(ctx, "Rejected request", log.FieldError, err.Error())
		BadRequestError(err.Error()).Write(w)
		return
	}

	log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Request failed", err, component, op, nil)
	InternalServerError().Write(w)
}

// handleHealth performs a basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Payload(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady verifies the store answers within a short deadline
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{
			"active_clients": s.rateLimiter.ActiveClients(),
			"rejected":       s.rateLimiter.Hits(),
		},
	}

	switch {
	case s.health == nil:
		checks["store"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	default:
		if err := s.health.Ping(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
			checks["store"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
		if v, ok := s.health.(SchemaVersioner); ok {
			checks["schema_version"] = v.SchemaVersion()
		}
	}

	NewJSONResponse().Status(httpStatus).Payload(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}
