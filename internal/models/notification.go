package models

import (
	"fmt"
	"time"
)

// NotificationKind identifies what a notification links to.
type NotificationKind string

const (
	NotificationInsight    NotificationKind = "insight"
	NotificationReport     NotificationKind = "report"
	NotificationDraft      NotificationKind = "draft"
	NotificationProcessing NotificationKind = "processing"
)

// NotificationStatus is the badge shown next to a notification.
type NotificationStatus string

const (
	StatusNew        NotificationStatus = "new"
	StatusRead       NotificationStatus = "read"
	StatusCritical   NotificationStatus = "critical"
	StatusProcessing NotificationStatus = "processing"
)

// Notification is read-only demo data shown in the dashboard dropdown.
type Notification struct {
	ID          string             `json:"id"`
	Kind        NotificationKind   `json:"kind"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Status      NotificationStatus `json:"status"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Openable reports whether clicking the notification does anything.
func (n Notification) Openable() bool {
	return n.Status != StatusProcessing
}

// ViewForKind maps a notification kind to the dashboard view that displays it.
// Unknown kinds fall back to the chat view.
func ViewForKind(kind NotificationKind) ActiveView {
	switch kind {
	case NotificationInsight:
		return ViewInsight
	case NotificationReport:
		return ViewReport
	case NotificationDraft:
		return ViewDraft
	default:
		return ViewChat
	}
}

// NotificationFilter narrows the notification list by kind.
type NotificationFilter string

const (
	FilterAll      NotificationFilter = "todos"
	FilterInsights NotificationFilter = "insights"
	FilterReports  NotificationFilter = "reportes"
	FilterDrafts   NotificationFilter = "drafts"
)

// AllNotificationFilters returns the filters in display order.
func AllNotificationFilters() []NotificationFilter {
	return []NotificationFilter{FilterAll, FilterInsights, FilterReports, FilterDrafts}
}

// Valid reports whether f is a known filter.
func (f NotificationFilter) Valid() bool {
	switch f {
	case FilterAll, FilterInsights, FilterReports, FilterDrafts:
		return true
	}
	return false
}

// ParseNotificationFilter converts a raw string into a NotificationFilter.
func ParseNotificationFilter(s string) (NotificationFilter, error) {
	f := NotificationFilter(s)
	if f.Valid() {
		return f, nil
	}
	return FilterAll, fmt.Errorf("%w: %q", ErrUnknownFilter, s)
}

// Matches reports whether n passes the filter.
func (f NotificationFilter) Matches(n Notification) bool {
	switch f {
	case FilterInsights:
		return n.Kind == NotificationInsight
	case FilterReports:
		return n.Kind == NotificationReport
	case FilterDrafts:
		return n.Kind == NotificationDraft
	default:
		return true
	}
}

// FilterNotifications returns the notifications that pass f, preserving order.
func FilterNotifications(ns []Notification, f NotificationFilter) []Notification {
	out := make([]Notification, 0, len(ns))
	for _, n := range ns {
		if f.Matches(n) {
			out = append(out, n)
		}
	}
	return out
}

// DemoNotifications returns the fixed notification set every session starts with.
// Timestamps are relative to now.
func DemoNotifications(now time.Time) []Notification {
	return []Notification{
		{
			ID:          "1",
			Kind:        NotificationInsight,
			Title:       "Oportunidad de mercado detectada",
			Description: "Nuevo segmento B2B identificado en sector tecnológico. Se ha detectado un crecimiento del 45% en demanda de servicios de consultoría estratégica para empresas de tecnología en la región.",
			Status:      StatusNew,
			Timestamp:   now,
		},
		{
			ID:          "2",
			Kind:        NotificationReport,
			Title:       "Reporte de Competencia Q3",
			Description: "Análisis completo de 15 competidores directos con métricas de posicionamiento, estrategias de precios y canales de distribución.",
			Status:      StatusRead,
			Timestamp:   now.Add(-24 * time.Hour),
		},
		{
			ID:          "3",
			Kind:        NotificationDraft,
			Title:       "Campaña Email Marketing",
			Description: "Borrador de secuencia de 5 emails para nurturing de leads B2B. Requiere revisión de copy y CTAs antes de activación.",
			Status:      StatusCritical,
			Timestamp:   now.Add(-time.Hour),
		},
		{
			ID:          "4",
			Kind:        NotificationProcessing,
			Title:       "Analizando respuestas...",
			Description: "Generando estrategia personalizada basada en las respuestas del cuestionario BrandOS.",
			Status:      StatusProcessing,
			Timestamp:   now,
		},
	}
}
