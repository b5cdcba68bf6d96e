package http

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bilancio/internal/catalog"
	applog "bilancio/internal/log"
)

type articleResponse struct {
	Article        catalog.Article   `json:"article"`
	Related        []catalog.Article `json:"related"`
	Interpretation *catalog.Rule     `json:"interpretation,omitempty"`
	Value          *float64          `json:"value,omitempty"`
}

// handleArticle returns a help article. With ?value= the matching
// interpretation rule for that metric value is included.
func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	a, ok := s.deps.Catalog.Article(chi.URLParam(r, "id"))
	if !ok {
		NotFoundError(r, "Unknown article").Write(w)
		return
	}
	resp := articleResponse{Article: a, Related: s.deps.Catalog.Related(a.ID)}
	if v, ok := floatQuery(r, "value"); ok {
		resp.Value = &v
		if rule, ok := a.Interpret(v); ok {
			resp.Interpretation = &rule
		}
	}

	if !isHTMX(r) {
		NewHTMXResponse().JSON(resp).Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "article.html", resp); err != nil {
		s.fail(w, r, applog.OpRender, "Failed to render article", err)
		return
	}
	NewHTMXResponse().BodyHTML(buf.String()).Write(w)
}

func (s *Server) handleArticleRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.deps.Catalog.Article(id); !ok {
		NotFoundError(r, "Unknown article").Write(w)
		return
	}
	recorded, err := s.deps.Guide.MarkArticleRead(r.Context(), userFromRequest(r), id)
	if err != nil {
		s.fail(w, r, applog.OpRender, "Failed to record article", err)
		return
	}
	NewHTMXResponse().JSON(map[string]bool{"recorded": recorded}).Write(w)
}

func (s *Server) handlePathComplete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	recorded, err := s.deps.Guide.CompletePath(r.Context(), userFromRequest(r), id)
	if err != nil {
		s.fail(w, r, applog.OpRender, "Failed to record path", err)
		return
	}
	b := NewHTMXResponse()
	if recorded {
		b.TriggerSuccessNotification("Learning path completed")
	}
	b.JSON(map[string]bool{"recorded": recorded}).Write(w)
}
