package handlers

import (
	"manifest-route-service/internal/api/dto"
	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/manifest"
	"manifest-route-service/internal/services"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type RouteHandler struct {
	Svc *services.RouteService
}

// ParseManifest previews a manifest without persisting anything.
func (h *RouteHandler) ParseManifest(w http.ResponseWriter, r *http.Request) {
	var req dto.ParseManifestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res := h.Svc.ParseManifest(req.Text)
	writeJSON(w, r, http.StatusOK, dto.ParseManifestResponse{
		Stops:   toStopInputs(res.Stops),
		Dropped: toWarnings(res.Dropped),
	})
}

func (h *RouteHandler) CreateRoute(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRouteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sources := 0
	for _, set := range []bool{strings.TrimSpace(req.ManifestText) != "", strings.TrimSpace(req.CSV) != "", len(req.Stops) > 0} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		writeError(w, r, http.StatusBadRequest, "exactly one of manifest_text, csv or stops is required")
		return
	}

	var parsed manifest.Result
	switch {
	case strings.TrimSpace(req.ManifestText) != "":
		parsed = h.Svc.ParseManifest(req.ManifestText)
	case strings.TrimSpace(req.CSV) != "":
		res, err := manifest.ParseCSV(strings.NewReader(req.CSV))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		parsed = res
	default:
		parsed = manifest.FromEntries(fromStopInputs(req.Stops))
	}

	route, stops, err := h.Svc.CreateRouteWithStops(r.Context(), domain.Route{
		Name:    req.Name,
		OwnerID: UserID(r.Context()),
	}, parsed.Stops)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res := toRouteResponse(route, stops)
	res.Dropped = toWarnings(parsed.Dropped)
	writeJSON(w, r, http.StatusCreated, res)
}

func (h *RouteHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	route, stops, err := h.Svc.GetRoute(r.Context(), chi.URLParam(r, "routeID"), UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toRouteResponse(route, stops))
}

func (h *RouteHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Svc.ListRuns(r.Context(), chi.URLParam(r, "routeID"), UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res := dto.ListRunsResponse{Runs: make([]dto.RunResponse, 0, len(runs))}
	for _, run := range runs {
		res.Runs = append(res.Runs, dto.RunResponse{
			ID:              run.ID,
			Algorithm:       run.Algorithm,
			KeyMode:         string(run.KeyMode),
			DistanceMeters:  run.DistanceMeters,
			DurationSeconds: run.DurationSeconds,
			CreatedAt:       run.CreatedAt,
		})
	}
	writeJSON(w, r, http.StatusOK, res)
}

// Geocode runs one bounded batch. Per-stop failures are part of a 200 response.
func (h *RouteHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	res, mode, err := h.Svc.GeocodeRemaining(r.Context(), chi.URLParam(r, "routeID"), UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toGeocodeResponse(res, mode))
}

func (h *RouteHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.RunOptimization(r.Context(), chi.URLParam(r, "routeID"), UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOptimizeResponse(res))
}

func (h *RouteHandler) SetProviderKey(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	if userID == "" {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req dto.ProviderKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.Svc.SetProviderKey(r.Context(), userID, req.APIKey); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
