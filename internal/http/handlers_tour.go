package http

import (
	"bytes"
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/position"
	"bilancio/internal/services"
	"bilancio/internal/spotlight"
)

type tourResponse struct {
	Changed bool          `json:"changed"`
	View    services.View `json:"view"`
}

type tourListEntry struct {
	core.Tour
	Completed bool `json:"completed"`
	Dismissed bool `json:"dismissed"`
	Available bool `json:"available"`
}

func (s *Server) handleTours(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFromRequest(r)
	state, err := s.deps.Guide.HelpState(ctx, user)
	if err != nil {
		s.fail(w, r, applog.OpRender, "Failed to load help state", err)
		return
	}
	tours := s.deps.Catalog.Tours()
	out := make([]tourListEntry, 0, len(tours))
	for _, t := range tours {
		e := tourListEntry{Tour: t, Completed: state.IsCompleted(t.ID), Dismissed: state.IsDismissed(t.ID)}
		e.Available = !e.Completed && !e.Dismissed
		out = append(out, e)
	}
	NewHTMXResponse().JSON(map[string]any{"tours": out}).Write(w)
}

func (s *Server) handleTourState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFromRequest(r)
	view, err := s.deps.Guide.State(ctx, user)
	if err != nil {
		s.fail(w, r, applog.OpRender, "Failed to load tour state", err)
		return
	}
	state, err := s.deps.Guide.HelpState(ctx, user)
	if err != nil {
		s.fail(w, r, applog.OpRender, "Failed to load help state", err)
		return
	}
	NewHTMXResponse().JSON(map[string]any{"view": view, "helpState": state}).Write(w)
}

func (s *Server) handleTourStart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.deps.Catalog.Tour(id); !ok {
		NotFoundError(r, "Unknown tour").Write(w)
		return
	}
	s.runTransition(w, r, applog.OpStart, func(ctx context.Context, user string) (services.View, bool, error) {
		return s.deps.Guide.Start(ctx, user, id)
	})
}

func (s *Server) handleTourNext(w http.ResponseWriter, r *http.Request) {
	s.runTransition(w, r, applog.OpNext, s.deps.Guide.Next)
}

func (s *Server) handleTourPrev(w http.ResponseWriter, r *http.Request) {
	s.runTransition(w, r, applog.OpPrev, s.deps.Guide.Prev)
}

func (s *Server) handleTourSkip(w http.ResponseWriter, r *http.Request) {
	s.runTransition(w, r, applog.OpSkip, s.deps.Guide.Skip)
}

func (s *Server) handleTourEnd(w http.ResponseWriter, r *http.Request) {
	completed := boolQuery(r, "completed")
	s.runTransition(w, r, applog.OpEnd, func(ctx context.Context, user string) (services.View, bool, error) {
		return s.deps.Guide.End(ctx, user, completed)
	})
}

func (s *Server) handleTourDismiss(w http.ResponseWriter, r *http.Request) {
	tourID, err := stringParam(r, "tour")
	if err != nil {
		BadRequestError(r, err.Error()).Write(w)
		return
	}
	s.runTransition(w, r, applog.OpDismiss, func(ctx context.Context, user string) (services.View, bool, error) {
		return s.deps.Guide.Dismiss(ctx, user, tourID)
	})
}

func (s *Server) handleTourKey(w http.ResponseWriter, r *http.Request) {
	key, err := stringParam(r, "key")
	if err != nil {
		BadRequestError(r, err.Error()).Write(w)
		return
	}
	if key == "" {
		BadRequestError(r, "missing key").Write(w)
		return
	}
	s.runTransition(w, r, applog.OpKey, func(ctx context.Context, user string) (services.View, bool, error) {
		return s.deps.Guide.Key(ctx, user, key)
	})
}

func (s *Server) handleTourLayout(w http.ResponseWriter, r *http.Request) {
	var l services.Layout
	if err := decodeJSON(r, &l); err != nil {
		BadRequestError(r, "Invalid layout: "+err.Error()).Write(w)
		return
	}
	if l.Viewport.Width <= 0 || l.Viewport.Height <= 0 {
		BadRequestError(r, "Viewport must have a positive size").Write(w)
		return
	}
	ctx := r.Context()
	view, err := s.deps.Guide.Layout(ctx, userFromRequest(r), l)
	if err != nil {
		s.fail(w, r, applog.OpLayout, "Failed to apply layout", err)
		return
	}
	s.writeView(w, r, view, view.Changed)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := parseGatingEvent(r)
	if err != nil {
		BadRequestError(r, err.Error()).Write(w)
		return
	}
	ctx := r.Context()
	user := userFromRequest(r)
	view, moved, err := s.deps.Guide.Emit(ctx, user, ev.Name, ev.Data)
	if err != nil {
		s.fail(w, r, applog.OpEmit, "Failed to publish event", err)
		return
	}
	if moved {
		applog.FromContext(ctx).InfoContext(ctx, "Event advanced tour",
			applog.FieldUser, user, applog.FieldEvent, ev.Name, applog.FieldTourID, view.Snapshot.TourID)
	}
	s.writeView(w, r, view, moved)
}

// handleTourLayer renders the current overlay and tooltip for hx-get.
func (s *Server) handleTourLayer(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Guide.State(r.Context(), userFromRequest(r))
	if err != nil {
		s.fail(w, r, applog.OpRender, "Failed to load tour state", err)
		return
	}
	html, err := renderLayer(view)
	if err != nil {
		s.fail(w, r, applog.OpRender, "Failed to render tour", err)
		return
	}
	NewHTMXResponse().BodyHTML(html).Write(w)
}

// handleSpotlight renders only the overlay for an arbitrary rect, which the
// client uses to preview a target without an active tour.
func (s *Server) handleSpotlight(w http.ResponseWriter, r *http.Request) {
	vw, okW := floatQuery(r, "vw")
	vh, okH := floatQuery(r, "vh")
	if !okW || !okH || vw <= 0 || vh <= 0 {
		BadRequestError(r, "vw and vh are required").Write(w)
		return
	}
	var rect *core.TargetRect
	if width, ok := floatQuery(r, "width"); ok {
		top, _ := floatQuery(r, "top")
		left, _ := floatQuery(r, "left")
		height, _ := floatQuery(r, "height")
		rr := core.RectFrom(top, left, width, height)
		rect = &rr
	}
	padding, ok := floatQuery(r, "padding")
	if !ok {
		padding = core.DefaultHighlightPadding
	}
	overlay := spotlight.Compute(rect, padding, core.Size{Width: vw, Height: vh}, boolQuery(r, "interactive"))

	var buf bytes.Buffer
	if err := spotlight.Render(&buf, overlay); err != nil {
		s.fail(w, r, applog.OpRender, "Failed to render spotlight", err)
		return
	}
	NewHTMXResponse().BodyHTML(buf.String()).Write(w)
}

type transitionFunc func(ctx context.Context, user string) (services.View, bool, error)

func (s *Server) runTransition(w http.ResponseWriter, r *http.Request, op string, fn transitionFunc) {
	ctx := r.Context()
	user := userFromRequest(r)
	view, changed, err := fn(ctx, user)
	if err != nil {
		s.fail(w, r, op, "Tour operation failed", err)
		return
	}
	snap := view.Snapshot
	applog.FromContext(ctx).DebugContext(ctx, "Tour transition",
		applog.FieldOperation, op,
		applog.FieldUser, user,
		applog.FieldTourID, snap.TourID,
		applog.FieldStepIndex, snap.StepIndex,
		"changed", changed,
		"action", view.Action)
	s.writeView(w, r, view, changed)
}

// writeView answers HTMX callers with the tour layer partial and everyone
// else with JSON. Both carry the same HX-Trigger events.
func (s *Server) writeView(w http.ResponseWriter, r *http.Request, view services.View, changed bool) {
	b := NewHTMXResponse()
	snap := view.Snapshot
	// tour:changed makes the client re-measure, so it only fires on change.
	switch {
	case !changed:
	case snap.Active() && snap.Step != nil:
		b.TriggerTourChanged(snap.TourID, snap.Step.Target, snap.StepIndex)
	case !snap.Active():
		b.TriggerTourEnded()
	}
	b.TriggerScroll(view.ScrollTo)

	if !isHTMX(r) {
		b.JSON(tourResponse{Changed: changed, View: view}).Write(w)
		return
	}
	html, err := renderLayer(view)
	if err != nil {
		s.fail(w, r, applog.OpRender, "Failed to render tour", err)
		return
	}
	b.BodyHTML(html).Write(w)
}

// renderLayer returns the overlay followed by the tooltip. An inactive tour
// renders as an empty layer.
func renderLayer(view services.View) (string, error) {
	if !view.Snapshot.Active() {
		return "", nil
	}
	var buf bytes.Buffer
	if view.Overlay != nil {
		if err := spotlight.Render(&buf, *view.Overlay); err != nil {
			return "", err
		}
	}
	if err := spotlight.RenderTooltip(&buf, tooltipView(view)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func tooltipView(view services.View) spotlight.TooltipView {
	snap := view.Snapshot
	placement := core.PlacementCenter
	if view.Target != nil && snap.Step != nil {
		placement = snap.Step.WithDefaults().Placement
	}
	var pos position.Position
	if view.Tooltip != nil {
		pos = *view.Tooltip
	}
	return spotlight.TooltipView{
		TourName:   snap.TourName,
		Content:    snap.Content,
		StepIndex:  snap.StepIndex,
		StepCount:  snap.StepCount,
		Progress:   snap.ProgressPercent(),
		WaitingFor: snap.WaitingFor,
		Placement:  placement,
		Position:   pos,
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op, msg string, err error) {
	ctx := r.Context()
	applog.FromContext(ctx).LogError(ctx, msg, err, op,
		applog.NewFields().WithUser(userFromRequest(r)))
	InternalServerError(r, msg).Write(w)
}
