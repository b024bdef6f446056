// Package http serves the tracker UI: full pages, HTMX partials, the CSV
// download and the operational endpoints.
//
// This file implements the builder for HTMX responses: HX-Trigger events,
// retargeting headers and consistent error bodies.

package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Event names the page listens for.
const (
	EventShowAlert        = "show-alert"
	EventShowNotification = "show-notification"
	EventEntrySaved       = "entry:saved"
	EventEntryDeleted     = "entry:deleted"
	EventEditorClosed     = "editor:closed"
)

// HTMXResponseBuilder collects status, headers, HX-Trigger events and body,
// then writes them in one go.
type HTMXResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       []byte
	headers    map[string]string
}

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

// Trigger queues a client event; all events go out in one HX-Trigger header.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerAlert asks the page for a blocking alert with message.
func (b *HTMXResponseBuilder) TriggerAlert(message string) *HTMXResponseBuilder {
	return b.Trigger(EventShowAlert, map[string]string{"message": message})
}

func (b *HTMXResponseBuilder) TriggerEntrySaved(id, date string) *HTMXResponseBuilder {
	return b.Trigger(EventEntrySaved, map[string]string{"id": id, "date": date})
}

func (b *HTMXResponseBuilder) TriggerEntryDeleted(id string) *HTMXResponseBuilder {
	return b.Trigger(EventEntryDeleted, map[string]string{"id": id})
}

// TriggerEditorClosed tells the page to drop the editor modal.
func (b *HTMXResponseBuilder) TriggerEditorClosed() *HTMXResponseBuilder {
	return b.Trigger(EventEditorClosed, struct{}{})
}

// NotificationType picks the toast style.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationInfo    NotificationType = "info"
)

// TriggerNotification adds a non-blocking toast.
func (b *HTMXResponseBuilder) TriggerNotification(notifType NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger(EventShowNotification, map[string]any{
		"type":     string(notifType),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

// Retarget swaps the body into selector instead of the requesting element.
func (b *HTMXResponseBuilder) Retarget(selector, swap string) *HTMXResponseBuilder {
	b.headers["HX-Retarget"] = selector
	if swap != "" {
		b.headers["HX-Reswap"] = swap
	}
	return b
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *HTMXResponseBuilder) BodyString(content string) *HTMXResponseBuilder {
	b.body = []byte(content)
	return b
}

// BodyHTML sets an already rendered fragment.
func (b *HTMXResponseBuilder) BodyHTML(html []byte) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = html
	return b
}

func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
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

// ErrorResponse creates an error response with an escaped HTML body.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(statusCode).
		BodyHTML([]byte(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`))
}

// AlertError is an error response that also raises a blocking alert.
func AlertError(statusCode int, message string) *HTMXResponseBuilder {
	return ErrorResponse(statusCode, message).TriggerAlert(message)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// BadGatewayError reports a failed backend write.
func BadGatewayError(message string) *HTMXResponseBuilder {
	return AlertError(http.StatusBadGateway, message)
}

// MethodNotAllowedError creates a 405 response with the Allow header.
func MethodNotAllowedError(allowedMethods string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", allowedMethods)
}
