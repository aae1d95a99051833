package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/farmassist/internal/advisor"
)

const (
	queryRequired   = "Query parameter is required."
	weatherRequired = "Weather Information is required."
)

type AdvisorHandler struct {
	svc *advisor.Service
}

func NewAdvisorHandler(svc *advisor.Service) *AdvisorHandler {
	return &AdvisorHandler{svc: svc}
}

// Query answers crop and Pakistani weather questions.
func (h *AdvisorHandler) Query(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, advisor.CropWeather)
}

// FarmManagement answers farm management questions.
func (h *AdvisorHandler) FarmManagement(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, advisor.FarmManagement)
}

func (h *AdvisorHandler) ask(w http.ResponseWriter, r *http.Request, p advisor.Persona) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, queryRequired)
		return
	}

	ans, err := h.svc.Ask(r.Context(), p, query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": ans.Response})
}

// WeatherAnalyst gives crop advice for the weather JSON in ?weather=.
func (h *AdvisorHandler) WeatherAnalyst(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	raw := r.URL.Query().Get("weather")
	if query == "" {
		writeError(w, http.StatusBadRequest, queryRequired)
		return
	}
	if raw == "" {
		writeError(w, http.StatusBadRequest, weatherRequired)
		return
	}

	weather, err := advisor.ParseWeather(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ans, err := h.svc.AnalyzeWeather(r.Context(), query, weather)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": ans.Response})
}
