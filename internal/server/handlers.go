package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/claude/trainaspower/internal/ingest"
	"github.com/claude/trainaspower/internal/ingest/trainasone"
	"github.com/claude/trainaspower/internal/models"
	"github.com/claude/trainaspower/internal/stryd"
	"github.com/claude/trainaspower/internal/upload"
	"github.com/claude/trainaspower/internal/workout"
	"github.com/go-chi/chi/v5"
)

const maxUploadBytes = 4 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleConvert turns an uploaded FIT file or saved workout page into a
// workout builder document without touching the destination.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	kind, err := ingest.ParseKind(r.URL.Query().Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	opts := upload.ConvertOptions{PaceOnly: s.opts.PaceOnly}
	if v := r.URL.Query().Get("pace_only"); v != "" {
		if opts.PaceOnly, err = strconv.ParseBool(v); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pace_only: " + v})
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
		return
	}

	var snap ingest.Snapshot
	switch kind {
	case ingest.KindFIT:
		snap, err = trainasone.FITSnapshot(body)
	case ingest.KindHTML:
		snap, err = trainasone.HTMLSnapshot(body)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("reading %s workout: %v", kind, err)})
		return
	}

	s.refreshPower()
	wo, err := upload.BuildWorkout(r.Context(), s.power, s.opts.Adjust, snap)
	if err != nil {
		s.log.Warn("convert failed", "workout", snap.Name, "error", err)
		writeJSON(w, conversionStatus(err), map[string]string{"error": err.Error()})
		return
	}
	doc, err := upload.ConvertWorkout(wo, opts)
	if err != nil {
		writeJSON(w, conversionStatus(err), map[string]string{"error": err.Error()})
		return
	}

	s.log.Info("converted workout", "workout", snap.Name, "format", kind, "steps", wo.CountSteps())
	writeJSON(w, http.StatusOK, upload.NewBuilderRequest(doc))
}

// conversionStatus maps conversion failures: bad input is 422, an
// unavailable prediction service 502.
func conversionStatus(err error) int {
	var verr *workout.ValidationError
	var uerr *models.UnitError
	var derr *models.DimensionError
	var serr *stryd.PredictionServiceError
	switch {
	case errors.As(err, &verr), errors.As(err, &uerr), errors.As(err, &derr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &serr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	workouts, err := s.state.ListSynced(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if workouts == nil {
		workouts = []upload.SyncedWorkout{}
	}
	writeJSON(w, http.StatusOK, workouts)
}

type workoutDetail struct {
	upload.SyncedWorkout
	Document json.RawMessage `json:"document"`
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	synced, err := s.state.GetSynced(r.Context(), id)
	if errors.Is(err, upload.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "workout not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	detail := workoutDetail{SyncedWorkout: *synced}
	if synced.DocumentJSON != "" {
		detail.Document = json.RawMessage(synced.DocumentJSON)
		detail.DocumentJSON = ""
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	synced, err := s.state.CountSynced(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	snapshots, err := s.state.CountSnapshots(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"synced_workouts": synced,
		"debug_snapshots": snapshots,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
