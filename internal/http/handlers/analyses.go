package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type analyzeRequest struct {
	URL string `json:"url"`
}

// Analyze accepts a product URL and answers before the pipeline runs.
func (api *API) Analyze(w http.ResponseWriter, r *http.Request) {
	var request analyzeRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	job, err := api.jobsService.Submit(r.Context(), request.URL)
	if err != nil {
		api.writeServiceError(w, r, err, "Failed to start analysis")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"success":     true,
		"analysis_id": job.ID,
		"message":     "Analysis started. Use the analysis_id to check progress.",
	})
}

func (api *API) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	job, err := api.jobsService.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.writeServiceError(w, r, err, "Failed to load analysis")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    job,
		"status":  job.Status,
	})
}

func (api *API) AnalysisStatus(w http.ResponseWriter, r *http.Request) {
	view, err := api.jobsService.GetStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.writeServiceError(w, r, err, "Failed to load analysis status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"analysis_id": view.ID,
		"status":      view.Status,
		"created_at":  view.CreatedAt,
		"updated_at":  view.UpdatedAt,
		"notes":       view.StageNote,
	})
}

func (api *API) RecentAnalyses(w http.ResponseWriter, r *http.Request) {
	items, err := api.jobsService.ListRecent(r.Context(), 0)
	if err != nil {
		api.writeServiceError(w, r, err, "Failed to list analyses")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    items,
	})
}
