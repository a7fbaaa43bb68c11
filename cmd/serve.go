package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/awc-invest/prospect-cli/internal/model"
	"github.com/awc-invest/prospect-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-mostly prospect API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, cleanup, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(st, cfg.Pipeline.WindowYears),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// api carries the request handlers' dependencies.
type api struct {
	store       *store.Store
	windowYears int
}

func newRouter(st *store.Store, windowYears int) http.Handler {
	a := &api{store: st, windowYears: windowYears}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", a.health)
	r.Get("/top-picks/today", a.topPicksToday)
	r.Get("/top-picks/{date}", a.topPicksByDate)
	r.Get("/companies", a.listCompanies)
	r.Get("/companies/{orgnr}", a.getCompany)
	r.Post("/outreach/{orgnr}", a.postOutreach)

	return r
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) topPicksToday(w http.ResponseWriter, r *http.Request) {
	a.servePicks(w, r, time.Now().UTC().Truncate(24*time.Hour))
}

func (a *api) topPicksByDate(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	a.servePicks(w, r, date)
}

func (a *api) servePicks(w http.ResponseWriter, r *http.Request, date time.Time) {
	entries, err := a.store.ShortlistForDate(r.Context(), date)
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pick_date": date.Format("2006-01-02"),
		"picks":     entries,
	})
}

func (a *api) listCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := a.store.ListCompanies(r.Context())
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": companies})
}

// companyDetail aggregates everything the frontend shows on one company page.
type companyDetail struct {
	Company  *model.Company         `json:"company"`
	Score    *model.Score           `json:"latest_score,omitempty"`
	Metrics  []model.MetricSnapshot `json:"metrics,omitempty"`
	Outreach *model.Outreach        `json:"outreach,omitempty"`
}

func (a *api) getCompany(w http.ResponseWriter, r *http.Request) {
	orgnr := chi.URLParam(r, "orgnr")

	company, err := a.store.GetCompany(r.Context(), orgnr)
	if err != nil {
		serverError(w, err)
		return
	}
	if company == nil {
		writeError(w, http.StatusNotFound, "unknown company")
		return
	}

	detail := companyDetail{Company: company}

	detail.Score, err = a.store.LatestScore(r.Context(), orgnr)
	if err != nil {
		serverError(w, err)
		return
	}
	if detail.Score != nil {
		detail.Metrics, err = a.store.MetricsWindow(r.Context(), orgnr,
			model.ViewCompany, detail.Score.FiscalYear, a.windowYears)
		if err != nil {
			serverError(w, err)
			return
		}
	}

	detail.Outreach, err = a.store.GetOutreach(r.Context(), orgnr)
	if err != nil {
		serverError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

var validOutreachStatuses = map[string]bool{
	model.OutreachStatusNew:      true,
	model.OutreachStatusActive:   true,
	model.OutreachStatusDeclined: true,
	model.OutreachStatusExcluded: true,
}

func (a *api) postOutreach(w http.ResponseWriter, r *http.Request) {
	orgnr := model.NormalizeOrgnr(chi.URLParam(r, "orgnr"))
	if orgnr == "" {
		writeError(w, http.StatusBadRequest, "invalid orgnr")
		return
	}

	var req struct {
		Status        string     `json:"status"`
		Owner         string     `json:"owner"`
		Note          string     `json:"note"`
		LastContactAt *time.Time `json:"last_contact_at"`
		NextStepAt    *time.Time `json:"next_step_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status != "" && !validOutreachStatuses[req.Status] {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	o := model.Outreach{
		Orgnr:         orgnr,
		Status:        req.Status,
		Owner:         req.Owner,
		Note:          req.Note,
		LastContactAt: req.LastContactAt,
		NextStepAt:    req.NextStepAt,
	}
	if err := a.store.UpsertOutreach(r.Context(), o); err != nil {
		serverError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated", "orgnr": orgnr})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func serverError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
