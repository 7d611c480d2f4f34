package flow

import (
	"github.com/BTreeMap/BrandOS/internal/models"
)

// BuildSnapshot renders the outbound view of s. It copies every map and slice.
func (m *Machine) BuildSnapshot(sessionID string, s models.SessionState) models.Snapshot {
	s = s.Clone()
	step, total := Progress(s)
	qTotal := m.tracker.TotalSteps(s.FlowType)
	qStep := s.Questionnaire.Step
	if qStep > qTotal {
		qStep = qTotal
	}
	return models.Snapshot{
		SessionID:               sessionID,
		Phase:                   s.Phase,
		PhaseName:               s.Phase.String(),
		CompanyType:             s.CompanyType,
		CompanyStage:            s.CompanyStage,
		FlowType:                s.FlowType,
		PlanType:                s.PlanType,
		ActiveView:              s.ActiveView,
		SelectedNotification:    s.SelectedNotification,
		QuestionnaireStep:       qStep,
		QuestionnaireTotalSteps: qTotal,
		QuestionnaireData:       s.Questionnaire.Answers,
		QuestionnaireCompleted:  s.Questionnaire.Completed,
		HasDocumentAddon:        s.HasDocumentAddon,
		Notifications:           s.Notifications,
		NotificationFilter:      s.NotificationFilter,
		ProgressStep:            step,
		ProgressTotal:           total,
		EligibleFlows:           EligibleFlows(s.CompanyType, s.CompanyStage),
		DefaultFlow:             DefaultFlow(s.CompanyType, s.CompanyStage),
		AvailablePlans:          AvailablePlans(s.CompanyType),
	}
}
