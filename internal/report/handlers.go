package report

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/backend-pos/internal/common"
)

// Handler exposes GET /api/v1/reports, dispatching on the type query param.
type Handler struct {
	Svc *Service
}

// Reports routes ?type=daily|monthly|top-products|low-stock.
func (h *Handler) Reports(w http.ResponseWriter, r *http.Request) {
	switch strings.TrimSpace(r.URL.Query().Get("type")) {
	case "daily":
		h.daily(w, r)
	case "monthly":
		h.monthly(w, r)
	case "top-products":
		h.topProducts(w, r)
	case "low-stock":
		h.lowStock(w, r)
	default:
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"type must be daily, monthly, top-products, or low-stock", nil)
	}
}

func (h *Handler) daily(w http.ResponseWriter, r *http.Request) {
	day := h.Svc.now()
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD", nil)
			return
		}
		day = parsed
	}
	out, err := h.Svc.Daily(r.Context(), day)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) monthly(w http.ResponseWriter, r *http.Request) {
	now := h.Svc.now()
	year, month := now.Year(), now.Month()
	if v := r.URL.Query().Get("month"); v != "" {
		parsed, err := time.Parse("2006-01", v)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "month must be YYYY-MM", nil)
			return
		}
		year, month = parsed.Year(), parsed.Month()
	}
	out, err := h.Svc.MonthlyReport(r.Context(), year, month)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) topProducts(w http.ResponseWriter, r *http.Request) {
	now := h.Svc.now()
	from := now.AddDate(0, 0, -30)
	to := now
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "from must be YYYY-MM-DD", nil)
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "to must be YYYY-MM-DD", nil)
			return
		}
		to = parsed.Add(24 * time.Hour)
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}
	out, err := h.Svc.TopProducts(r.Context(), from, to, limit)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.LowStock(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}
