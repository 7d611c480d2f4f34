package flow

import (
	"log/slog"

	"github.com/BTreeMap/BrandOS/internal/catalog"
	"github.com/BTreeMap/BrandOS/internal/models"
)

// QuestionnaireTracker moves a QuestionnaireSession through the question set of the
// active flow. It reads nothing from navigation except the flow type.
type QuestionnaireTracker struct {
	catalog *catalog.Catalog
}

// NewQuestionnaireTracker creates a tracker backed by the given catalog.
func NewQuestionnaireTracker(c *catalog.Catalog) *QuestionnaireTracker {
	return &QuestionnaireTracker{catalog: c}
}

// TotalSteps returns the number of steps of ft (unset flows use the complete set).
func (t *QuestionnaireTracker) TotalSteps(ft models.FlowType) int {
	return t.catalog.TotalSteps(ft)
}

// Advance moves to the next step, or marks the session completed when already on the last
// step. Completion is terminal.
func (t *QuestionnaireTracker) Advance(q models.QuestionnaireSession, ft models.FlowType) models.QuestionnaireSession {
	out := q.Clone()
	if out.Completed {
		return out
	}
	if out.Step < t.TotalSteps(ft) {
		out.Step++
		return out
	}
	out.Completed = true
	slog.Debug("QuestionnaireTracker completed", "flowType", ft, "answers", len(out.Answers))
	return out
}

// Retreat moves back one step, never below the first. A completed session stays put.
func (t *QuestionnaireTracker) Retreat(q models.QuestionnaireSession) models.QuestionnaireSession {
	out := q.Clone()
	if out.Completed || out.Step <= 1 {
		return out
	}
	out.Step--
	return out
}

// UpdateAnswers merges partial into the answers, last write wins. Values are not validated.
func (t *QuestionnaireTracker) UpdateAnswers(q models.QuestionnaireSession, partial map[string]string) models.QuestionnaireSession {
	out := q.Clone()
	for k, v := range partial {
		out.Answers[k] = v
	}
	return out
}

// CurrentStep returns the definition of the step the session is on.
func (t *QuestionnaireTracker) CurrentStep(q models.QuestionnaireSession, ft models.FlowType) (catalog.Step, bool) {
	step := q.Step
	if total := t.TotalSteps(ft); step > total {
		step = total
	}
	return t.catalog.Step(ft, step)
}
