package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"gridgen/internal/config"
	"gridgen/internal/ics"
	appLog "gridgen/internal/log"
	"gridgen/internal/pattern"
	"gridgen/internal/planner"
	"gridgen/internal/preview"
)

// Server serves schedule previews over HTTP.
//
// The default schedule (configured pattern, last server.window_days days)
// is generated once and cached; a cron job regenerates it. Requests with
// query parameters bypass the cache.
type Server struct {
	cfg     *config.Config
	planner *planner.Planner
	mux     *http.ServeMux

	// today returns midnight of the current day; replaced in tests.
	today func() time.Time

	mu       sync.RWMutex
	snapshot *snapshot
}

type snapshot struct {
	result    planner.Result
	updatedAt time.Time
}

// NewServer constructs a Server. The cache is empty until Refresh runs;
// the first request fills it.
func NewServer(cfg *config.Config, p *planner.Planner) *Server {
	s := &Server{
		cfg:     cfg,
		planner: p,
		mux:     http.NewServeMux(),
		today:   p.Today,
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, wrapped in Basic Auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	ba := s.cfg.Server.BasicAuth
	return ba != nil && ba.Username != "" && ba.Password != ""
}

// basicAuthMiddleware protects everything except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.Server.BasicAuth.Username
	password := s.cfg.Server.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="gridgen", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/patterns", s.handlePatterns)
	s.mux.HandleFunc("GET /api/schedule", s.handleSchedule)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
	s.mux.HandleFunc("GET /calendar", s.handleCalendar)
}

// Refresh regenerates the cached default schedule.
func (s *Server) Refresh(ctx context.Context) error {
	end := s.today()
	start := end.AddDate(0, 0, -(s.cfg.Server.WindowDays - 1))
	res, err := s.planner.Plan(ctx, planner.Request{Start: start, End: end})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.snapshot = &snapshot{result: res, updatedAt: time.Now()}
	s.mu.Unlock()
	appLog.Info("schedule refreshed", "pattern", res.Pattern, "events", res.Schedule.Total())
	return nil
}

// StartRefresh schedules Refresh on the configured cron expression. The
// returned function stops the scheduler and waits for a running refresh.
func (s *Server) StartRefresh(ctx context.Context) (func(), error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(s.cfg.Server.RefreshCron, func() {
		if err := s.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		appLog.Error("initial refresh failed", err)
	}
	stop, err := s.StartRefresh(ctx)
	if err != nil {
		return err
	}
	defer stop()

	srv := &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Server.Listen, "auth", s.basicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type patternDTO struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Volume      string             `json:"volume,omitempty"`
	Legacy      bool               `json:"legacy,omitempty"`
	Custom      bool               `json:"custom,omitempty"`
	Config      config.PatternSpec `json:"config"`
}

func (s *Server) handlePatterns(w http.ResponseWriter, _ *http.Request) {
	out := make([]patternDTO, 0)
	for _, d := range pattern.Presets() {
		out = append(out, patternDTO{
			Name:        d.Name,
			Description: d.Description,
			Volume:      d.Volume,
			Legacy:      d.Legacy,
			Config:      config.SpecFrom(d.Config),
		})
	}
	reg := s.planner.Registry()
	for _, name := range reg.Custom() {
		cfg, err := reg.Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, patternDTO{Name: name, Custom: true, Config: config.SpecFrom(cfg)})
	}
	writeJSON(w, http.StatusOK, out)
}

type dayDTO struct {
	Date   string `json:"date"`
	Count  int    `json:"count"`
	Reason string `json:"reason"`
	Spiked bool   `json:"spiked,omitempty"`
}

type intervalDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int    `json:"days"`
}

type eventDTO struct {
	At    time.Time `json:"at"`
	Label string    `json:"label"`
}

type scheduleResponse struct {
	Pattern   string          `json:"pattern"`
	Start     string          `json:"start"`
	End       string          `json:"end"`
	Timezone  string          `json:"timezone"`
	Needed    int             `json:"needed,omitempty"`
	Reached   bool            `json:"reached,omitempty"`
	Summary   preview.Summary `json:"summary"`
	Days      []dayDTO        `json:"days"`
	Vacations []intervalDTO   `json:"vacations"`
	Events    []eventDTO      `json:"events,omitempty"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

// handleSchedule returns the day breakdown as JSON.
//
// GET /api/schedule?pattern=maintainer&start=2024-01-01&end=2024-03-31&target=0&events=1
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	res, updatedAt, err := s.resolve(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	sched := res.Schedule
	resp := scheduleResponse{
		Pattern:   res.Pattern,
		Start:     sched.Start.Format(time.DateOnly),
		End:       sched.End.Format(time.DateOnly),
		Timezone:  s.planner.Location().String(),
		Needed:    res.Needed,
		Reached:   res.Reached,
		Summary:   preview.Summarize(sched.Events),
		Days:      make([]dayDTO, 0, len(sched.Days)),
		Vacations: make([]intervalDTO, 0, len(sched.Vacations)),
	}
	if !updatedAt.IsZero() {
		resp.UpdatedAt = &updatedAt
	}
	for _, d := range sched.Days {
		resp.Days = append(resp.Days, dayDTO{
			Date:   d.Date.Format(time.DateOnly),
			Count:  d.Count,
			Reason: string(d.Reason),
			Spiked: d.Spiked,
		})
	}
	for _, iv := range sched.Vacations {
		resp.Vacations = append(resp.Vacations, intervalDTO{
			Start: iv.Start.Format(time.DateOnly),
			End:   iv.End.Format(time.DateOnly),
			Days:  iv.Days(),
		})
	}
	if r.URL.Query().Get("events") == "1" {
		resp.Events = make([]eventDTO, 0, len(sched.Events))
		for _, ev := range sched.Events {
			resp.Events = append(resp.Events, eventDTO{At: ev.At, Label: ev.Label})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	res, _, err := s.resolve(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	body := ics.Export(res.Schedule.Events, ics.ExportOptions{Category: res.Pattern})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="gridgen.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// resolve returns the cached default schedule, or plans a fresh one when
// the request carries pattern/start/end/target parameters.
func (s *Server) resolve(r *http.Request) (planner.Result, time.Time, error) {
	q := r.URL.Query()
	if q.Get("pattern") == "" && q.Get("start") == "" && q.Get("end") == "" && q.Get("target") == "" {
		s.mu.RLock()
		snap := s.snapshot
		s.mu.RUnlock()
		if snap == nil {
			if err := s.Refresh(r.Context()); err != nil {
				return planner.Result{}, time.Time{}, err
			}
			s.mu.RLock()
			snap = s.snapshot
			s.mu.RUnlock()
		}
		return snap.result, snap.updatedAt, nil
	}

	loc := s.planner.Location()
	end := s.today()
	if v := q.Get("end"); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, loc)
		if err != nil {
			return planner.Result{}, time.Time{}, badRequest("end must be YYYY-MM-DD")
		}
		end = t
	}
	start := end.AddDate(0, 0, -(s.cfg.Server.WindowDays - 1))
	if v := q.Get("start"); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, loc)
		if err != nil {
			return planner.Result{}, time.Time{}, badRequest("start must be YYYY-MM-DD")
		}
		start = t
	}
	if limit := s.cfg.Server.MaxDays; end.After(start.AddDate(0, 0, limit-1)) {
		return planner.Result{}, time.Time{}, badRequest("range exceeds the " + strconv.Itoa(limit) + " day limit")
	}
	target := parseIntDefault(q.Get("target"), 0)
	if target < 0 {
		return planner.Result{}, time.Time{}, badRequest("target must be non-negative")
	}

	res, err := s.planner.Plan(r.Context(), planner.Request{
		Pattern:     q.Get("pattern"),
		Start:       start,
		End:         end,
		TargetTotal: target,
	})
	return res, time.Time{}, err
}

type badRequest string

func (e badRequest) Error() string { return string(e) }

// writeRequestError maps caller mistakes to 400 and the rest to 500.
func writeRequestError(w http.ResponseWriter, err error) {
	var br badRequest
	switch {
	case errors.As(err, &br),
		errors.Is(err, pattern.ErrInvalidRange),
		errors.Is(err, pattern.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pattern.ErrUnknownPattern):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		appLog.Error("schedule request failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build schedule")
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
