package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	apimw "github.com/hamed0406/sitewatch/internal/httpapi/middleware"
)

const maxFormBytes = 16 << 10

type adminTarget struct {
	URL    string `json:"url"`
	Name   string `json:"name"`
	ChatID string `json:"chat_id"`
}

type adminResponse struct {
	Targets []adminTarget `json:"targets"`
}

// handleAdminUpsert takes a form with url, chat_id and secret and stores the
// chat routing for url. Every rejected secret gets the same 403 body.
func (s *Server) handleAdminUpsert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "bad form")
		return
	}
	if !s.Registry.Authenticate(r.PostFormValue("secret")) {
		s.Logger.Warn("admin_auth_failed", zap.String("remote", r.RemoteAddr))
		apimw.Forbidden(w)
		return
	}

	t, err := s.Registry.Upsert(r.Context(), r.PostFormValue("url"), r.PostFormValue("chat_id"))
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
			return
		}
		s.Logger.Error("admin_upsert_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save")
		return
	}
	s.Logger.Info("admin_upserted", zap.String("url", t.URL), zap.String("chat_id", t.ChatID))

	s.writeTargets(w, r)
}

func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	s.writeTargets(w, r)
}

func (s *Server) writeTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Registry.List(r.Context())
	if err != nil {
		s.Logger.Error("admin_list_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	out := adminResponse{Targets: make([]adminTarget, 0, len(ts))}
	for _, t := range ts {
		out.Targets = append(out.Targets, adminTarget{URL: t.URL, Name: t.Name, ChatID: t.ChatID})
	}
	writeJSON(w, http.StatusOK, out)
}
