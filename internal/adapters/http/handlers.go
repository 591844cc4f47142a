package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/verilens/verilens/internal/core/domain"
)

func (rt *Router) analyzeUpload(w http.ResponseWriter, r *http.Request, userID string) {
	// Multipart framing adds overhead beyond the media ceiling itself; the
	// ingestor enforces the exact media limit.
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes+(1<<20))

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "uploaded file is too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	result, err := rt.runner.AnalyzeUpload(
		r.Context(),
		userID,
		requestLanguage(r.FormValue("language")),
		fileHeader.Filename,
		fileHeader.Size,
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) analyzeURL(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		URL      string `json:"url"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url is required"})
		return
	}

	result, err := rt.runner.AnalyzeURL(r.Context(), userID, requestLanguage(req.Language), req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getAnalysis(w http.ResponseWriter, r *http.Request, userID string) {
	result, err := rt.results.Get(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) history(w http.ResponseWriter, r *http.Request, userID string) {
	limit := queryInt(r, "limit", rt.cfg.HistoryDefaultSize)
	skip := queryInt(r, "skip", 0)

	analyses, total, err := rt.results.History(r.Context(), userID, limit, skip)
	if err != nil {
		writeError(w, err)
		return
	}
	if analyses == nil {
		analyses = []domain.AnalysisResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"analyses": analyses,
		"total":    total,
	})
}

func (rt *Router) stats(w http.ResponseWriter, r *http.Request, userID string) {
	stats, err := rt.results.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) share(w http.ResponseWriter, r *http.Request, userID string) {
	shareID, err := rt.results.Share(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordShareMint()
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"share_id":  shareID,
		"share_url": "/v1/shared/" + shareID,
	})
}

func (rt *Router) shared(w http.ResponseWriter, r *http.Request) {
	result, err := rt.results.Shared(r.Context(), r.PathValue("share_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) compare(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		AnalysisIDs []string `json:"analysis_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	analyses, err := rt.results.Compare(r.Context(), userID, req.AnalysisIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": analyses})
}

func (rt *Router) deleteAnalysis(w http.ResponseWriter, r *http.Request, userID string) {
	if err := rt.results.Delete(r.Context(), r.PathValue("id"), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) exportHistory(w http.ResponseWriter, r *http.Request, userID string) {
	data, err := rt.results.ExportHistory(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="analysis-history.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func requestLanguage(raw string) domain.Language {
	lang := domain.Language(strings.ToLower(strings.TrimSpace(raw)))
	if domain.ValidLanguage(lang) {
		return lang
	}
	return domain.LanguageEnglish
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
