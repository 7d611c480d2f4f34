package flow

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/BrandOS/internal/models"
)

// Default latencies of the mock services.
const (
	DefaultChatReplyDelay = time.Second
	DefaultAnalysisDelay  = 2 * time.Second
)

// Fixed transcript texts.
const (
	GreetingMessage   = "Toda gran empresa tiene un propósito. ¿Cuál es la misión que impulsa a la tuya?"
	CannedReply       = "Interesante. ¿Y cuál es tu modelo de ingresos principal? ¿Contratos a largo plazo, compras puntuales, suscripciones? Descríbemelo un poco."
	CompletionMessage = "¡Excelente! He recibido toda la información. Ahora estoy analizando tus respuestas para generar una estrategia personalizada..."
)

// ChatResponder produces the canned assistant reply to every user message.
type ChatResponder struct {
	timer Timer
	delay time.Duration
}

// NewChatResponder creates a responder that replies after delay on timer.
func NewChatResponder(timer Timer, delay time.Duration) *ChatResponder {
	return &ChatResponder{timer: timer, delay: delay}
}

// Respond validates text and schedules deliver with the canned reply. It returns the timer ID.
func (r *ChatResponder) Respond(text string, deliver func(reply string)) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", models.ErrEmptyMessage
	}
	id, err := r.timer.ScheduleAfter(r.delay, func() { deliver(CannedReply) })
	if err != nil {
		return "", fmt.Errorf("failed to schedule chat reply: %w", err)
	}
	slog.Debug("ChatResponder Respond scheduled", "timerID", id, "delay", r.delay)
	return id, nil
}

// analysisResult is what every uploaded document "contains".
var analysisResult = map[string]string{
	"name":            "Acme Soluciones",
	"website":         "https://acme.example",
	"industry":        "services",
	"reach":           "national",
	"businessType":    "services",
	"salesApproach":   "longterm",
	"grossRevenue":    "$250,000",
	"netProfitMargin": "18%",
	"businessGoals":   "Duplicar la cartera de clientes corporativos en 18 meses.",
}

// AnalysisResult returns a copy of the fixed field set produced by document analysis.
func AnalysisResult() map[string]string {
	out := make(map[string]string, len(analysisResult))
	for k, v := range analysisResult {
		out[k] = v
	}
	return out
}

// DocumentAnalyzer pretends to read an uploaded document and returns questionnaire answers.
type DocumentAnalyzer struct {
	timer Timer
	delay time.Duration
}

// NewDocumentAnalyzer creates an analyzer that answers after delay on timer.
func NewDocumentAnalyzer(timer Timer, delay time.Duration) *DocumentAnalyzer {
	return &DocumentAnalyzer{timer: timer, delay: delay}
}

// Analyze schedules deliver with the fixed field set. The add-on must have been purchased and
// a filename supplied.
func (a *DocumentAnalyzer) Analyze(hasAddon bool, filename string, deliver func(fields map[string]string)) (string, error) {
	if !hasAddon {
		return "", models.ErrAddonRequired
	}
	if strings.TrimSpace(filename) == "" {
		return "", fmt.Errorf("filename is required")
	}
	id, err := a.timer.ScheduleAfter(a.delay, func() { deliver(AnalysisResult()) })
	if err != nil {
		return "", fmt.Errorf("failed to schedule document analysis: %w", err)
	}
	slog.Debug("DocumentAnalyzer Analyze scheduled", "timerID", id, "filename", filename, "delay", a.delay)
	return id, nil
}
