package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/quillmind/governd/pkg/alert"
	"github.com/quillmind/governd/pkg/flags"
	"github.com/quillmind/governd/pkg/model"
	"github.com/quillmind/governd/pkg/report"
	"github.com/quillmind/governd/pkg/snapshot"
	"github.com/quillmind/governd/pkg/telemetry"
	"github.com/quillmind/governd/pkg/threat"
)

type HTTPServiceConfiguration struct {
	Port int32
}

// HTTPService is the admin surface: flag resolution, input scanning,
// alert lifecycle and report generation.
type HTTPService struct {
	HTTPServiceConfiguration *HTTPServiceConfiguration

	Gate    *flags.Gate
	Scanner *threat.Scanner
	Alerts  *alert.Log
	Reports *report.Aggregator
	Sampler *snapshot.Sampler
}

func (h *HTTPService) Serve(ctx context.Context) error {
	if h.HTTPServiceConfiguration == nil {
		return errors.New("http service configuration has not been initialised")
	}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", telemetry.Handler())
	r.Get("/flags/{key}/resolve", h.resolveFlag)
	r.Post("/scan", h.scanInput)
	r.Get("/alerts", h.listAlerts)
	r.Post("/alerts/{id}/resolve", h.resolveAlert)
	r.Post("/alerts/{id}/assign", h.assignAlert)
	r.Get("/reports/{kind}", h.reportHistory)
	r.Post("/reports/{kind}", h.buildReport)
	r.Get("/snapshots", h.listSnapshots)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", h.HTTPServiceConfiguration.Port),
		Handler: r,
	}

	errc := make(chan error, 1)
	go func() { errc <- server.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func (h *HTTPService) resolveFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var evalCtx map[string]any
	_ = json.NewDecoder(r.Body).Decode(&evalCtx)

	value, reason, err := h.Gate.Resolve(key, evalCtx)
	if err != nil {
		handleError(err, reason, w)
		return
	}
	telemetry.FlagEvaluations.WithLabelValues(reason).Inc()
	writeJSON(w, map[string]any{"value": value, "reason": reason})
}

func (h *HTTPService) scanInput(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text  string `json:"text"`
		Field string `json:"field"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(errors.New(model.ParseErrorCode), model.ErrorReason, w)
		return
	}
	result := h.Scanner.ScanInput(req.Text, req.Field)
	if !result.Safe {
		telemetry.BlockedInputs.Inc()
	}
	writeJSON(w, result)
}

func (h *HTTPService) listAlerts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.Alerts.All())
}

func (h *HTTPService) resolveAlert(w http.ResponseWriter, r *http.Request) {
	if !h.Alerts.Resolve(chi.URLParam(r, "id")) {
		handleError(errors.New(model.AlertNotFoundErrorCode), model.ErrorReason, w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPService) assignAlert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Assignee string `json:"assignee"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(errors.New(model.ParseErrorCode), model.ErrorReason, w)
		return
	}
	if !h.Alerts.Assign(chi.URLParam(r, "id"), req.Assignee) {
		handleError(errors.New(model.AlertNotFoundErrorCode), model.ErrorReason, w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPService) reportHistory(w http.ResponseWriter, r *http.Request) {
	kind := model.ReportKind(chi.URLParam(r, "kind"))
	writeJSON(w, h.Reports.History(kind))
}

func (h *HTTPService) buildReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Version string `json:"version"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	rep, err := h.Reports.Build(model.ReportKind(chi.URLParam(r, "kind")), req.Version)
	if err != nil {
		handleError(err, model.ErrorReason, w)
		return
	}
	writeJSON(w, rep)
}

func (h *HTTPService) listSnapshots(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.Sampler.History())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// some basic mapping of errors from model to HTTP
func handleError(err error, reason string, w http.ResponseWriter) {
	message := err.Error()
	switch message {
	case model.FlagNotFoundErrorCode, model.AlertNotFoundErrorCode:
		w.WriteHeader(http.StatusNotFound)
	case model.ParseErrorCode, model.ReportKindErrorCode:
		w.WriteHeader(http.StatusBadRequest)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
	log.Error(message)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"errorCode": message,
		"reason":    reason,
	})
}
