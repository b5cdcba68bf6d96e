// Package http serves the dashboard page, the tour API and the chart API.
//
// Handlers answer HTMX requests with HTML partials and everything else with
// JSON. Both paths go through HTMXResponseBuilder so HX-Trigger headers stay
// consistent.
package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Client-side events announced through HX-Trigger.
const (
	EventTourChanged  = "tour:changed"
	EventTourEnded    = "tour:ended"
	EventScrollTarget = "tour:scroll"
	EventNotification = "show-notification"
)

// HTMXResponseBuilder provides a fluent API for building HTMX responses.
type HTMXResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       []byte
	headers    map[string]string
	err        error
}

// NewHTMXResponse creates a new response builder with default 200 status.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named trigger with optional data to the HX-Trigger header.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerTourChanged tells the tour client to re-measure for the given step.
func (b *HTMXResponseBuilder) TriggerTourChanged(tourID, target string, stepIndex int) *HTMXResponseBuilder {
	return b.Trigger(EventTourChanged, map[string]any{"tourId": tourID, "target": target, "stepIndex": stepIndex})
}

func (b *HTMXResponseBuilder) TriggerTourEnded() *HTMXResponseBuilder {
	return b.Trigger(EventTourEnded, struct{}{})
}

// TriggerScroll asks the client to scroll the selectors into view.
func (b *HTMXResponseBuilder) TriggerScroll(selectors []string) *HTMXResponseBuilder {
	if len(selectors) == 0 {
		return b
	}
	return b.Trigger(EventScrollTarget, map[string]any{"selectors": selectors})
}

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

func (b *HTMXResponseBuilder) TriggerNotification(notifType NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger(EventNotification, map[string]any{
		"type":     string(notifType),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// JSON encodes v as the response body. An encoding failure turns the
// response into a 500 when written.
func (b *HTMXResponseBuilder) JSON(v any) *HTMXResponseBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		b.err = err
		return b
	}
	b.headers["Content-Type"] = "application/json"
	b.body = data
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	if b.err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if len(b.triggers) > 0 {
		if triggerJSON, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates a standard error response. HTMX callers get an
// escaped HTML fragment, API callers a JSON object.
func ErrorResponse(r *http.Request, statusCode int, message string) *HTMXResponseBuilder {
	b := NewHTMXResponse().Status(statusCode)
	if isHTMX(r) {
		return b.BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
	}
	return b.JSON(map[string]string{"error": message})
}

func BadRequestError(r *http.Request, message string) *HTMXResponseBuilder {
	return ErrorResponse(r, http.StatusBadRequest, message)
}

func NotFoundError(r *http.Request, message string) *HTMXResponseBuilder {
	return ErrorResponse(r, http.StatusNotFound, message)
}

func InternalServerError(r *http.Request, message string) *HTMXResponseBuilder {
	return ErrorResponse(r, http.StatusInternalServerError, message)
}

func isHTMX(r *http.Request) bool {
	return r != nil && r.Header.Get("HX-Request") == "true"
}
