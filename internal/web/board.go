package web

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/yearbook/internal/model"
	"github.com/erazemk/yearbook/internal/store"
)

// BoardPage handles GET /.
func (s *Server) BoardPage(w http.ResponseWriter, r *http.Request) {
	data, err := store.LoadBoard(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to load board", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Templates.Render(w, "board.html", &struct {
		PageData
		Items    []model.Item
		Pending  int
		Settings model.Settings
		Themes   []string
	}{
		PageData: pageData(r, "Yearbook"),
		Items:    data.Signatures,
		Pending:  len(data.PendingSignatures) + len(data.PendingMemories),
		Settings: data.Settings,
		Themes:   model.Themes,
	})
}

// SettingsSubmit handles POST /settings.
func (s *Server) SettingsSubmit(w http.ResponseWriter, r *http.Request) {
	settings, err := store.GetSettings(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to get settings", "error", err)
		redirect(w, r, "/", "err", "failed")
		return
	}
	if theme := r.FormValue("backgroundTheme"); theme != "" {
		settings.BackgroundTheme = theme
	}

	if err := store.SaveSettings(r.Context(), s.DB, settings); err != nil {
		slog.Warn("settings not saved", "error", err)
		redirect(w, r, "/", "err", "badinput")
		return
	}
	slog.Info("settings updated", "theme", settings.BackgroundTheme)
	redirect(w, r, "/", "ok", "saved")
}

// redirect sends the browser back to path after a form post, keeping admin
// mode and passing a flash message code.
func redirect(w http.ResponseWriter, r *http.Request, path, kind, code string) {
	target := path + "?" + kind + "=" + code
	if IsAdmin(r.Context()) {
		target += "&admin=true"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
