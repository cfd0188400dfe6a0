package web

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/yearbook/internal/model"
	"github.com/erazemk/yearbook/internal/store"
)

// HistoryPage handles GET /history.
func (s *Server) HistoryPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.HistoryFilter{
		Status:   q.Get("status"),
		Category: q.Get("type"),
		Search:   q.Get("search"),
	}

	entries, err := store.ListHistory(r.Context(), s.DB, filter)
	if err != nil {
		slog.Error("failed to list history", "error", err)
	}

	counts := map[string]int{}
	for _, e := range entries {
		counts[e.Status]++
	}

	s.Templates.Render(w, "history.html", &struct {
		PageData
		Entries []model.HistoryEntry
		Filter  model.HistoryFilter
		Counts  map[string]int
	}{
		PageData: pageData(r, "History"),
		Entries:  entries,
		Filter:   filter,
		Counts:   counts,
	})
}
