// Package models defines session state structures for BrandOS.
package models

import (
	"fmt"
	"time"
)

// QuestionnaireSession tracks the step and the collected answers of the active flow variant.
type QuestionnaireSession struct {
	Step      int               `json:"step"`
	Answers   map[string]string `json:"answers"`
	Completed bool              `json:"completed"`
}

// NewQuestionnaireSession returns a session positioned at the first step.
func NewQuestionnaireSession() QuestionnaireSession {
	return QuestionnaireSession{Step: 1, Answers: make(map[string]string)}
}

// Clone returns a deep copy of q.
func (q QuestionnaireSession) Clone() QuestionnaireSession {
	out := q
	out.Answers = make(map[string]string, len(q.Answers))
	for k, v := range q.Answers {
		out.Answers[k] = v
	}
	return out
}

// SessionState is the whole in-memory state of one onboarding session.
type SessionState struct {
	Phase                Phase
	CompanyType          CompanyType
	CompanyStage         CompanyStage
	FlowType             FlowType
	PlanType             PlanType
	ActiveView           ActiveView
	SelectedNotification *Notification
	Questionnaire        QuestionnaireSession
	HasDocumentAddon     bool
	Notifications        []Notification
	NotificationFilter   NotificationFilter
}

// NewSessionState returns the defaults every session starts from.
func NewSessionState() SessionState {
	return SessionState{
		Phase:              PhaseCompanyTypeSelect,
		ActiveView:         ViewChat,
		Questionnaire:      NewQuestionnaireSession(),
		Notifications:      DemoNotifications(time.Now()),
		NotificationFilter: FilterAll,
	}
}

// Clone returns a deep copy of s so that callers can mutate the copy freely.
func (s SessionState) Clone() SessionState {
	out := s
	if s.SelectedNotification != nil {
		n := *s.SelectedNotification
		out.SelectedNotification = &n
	}
	out.Questionnaire = s.Questionnaire.Clone()
	if s.Notifications != nil {
		out.Notifications = make([]Notification, len(s.Notifications))
		copy(out.Notifications, s.Notifications)
	}
	return out
}

// FindNotification returns the session notification with the given ID.
func (s SessionState) FindNotification(id string) (Notification, bool) {
	for _, n := range s.Notifications {
		if n.ID == id {
			return n, true
		}
	}
	return Notification{}, false
}

// Record extracts the persisted subset of s.
func (s SessionState) Record(sessionID string) SessionRecord {
	data := make(map[string]string, len(s.Questionnaire.Answers))
	for k, v := range s.Questionnaire.Answers {
		data[k] = v
	}
	return SessionRecord{
		SessionID:              sessionID,
		Phase:                  s.Phase,
		CompanyType:            s.CompanyType,
		CompanyStage:           s.CompanyStage,
		FlowType:               s.FlowType,
		PlanType:               s.PlanType,
		QuestionnaireData:      data,
		QuestionnaireCompleted: s.Questionnaire.Completed,
		HasDocumentAddon:       s.HasDocumentAddon,
	}
}

// PersistedEqual reports whether a and b agree on every persisted field.
func PersistedEqual(a, b SessionState) bool {
	if a.Phase != b.Phase || a.CompanyType != b.CompanyType || a.CompanyStage != b.CompanyStage ||
		a.FlowType != b.FlowType || a.PlanType != b.PlanType ||
		a.Questionnaire.Completed != b.Questionnaire.Completed || a.HasDocumentAddon != b.HasDocumentAddon {
		return false
	}
	if len(a.Questionnaire.Answers) != len(b.Questionnaire.Answers) {
		return false
	}
	for k, v := range a.Questionnaire.Answers {
		if bv, ok := b.Questionnaire.Answers[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// SessionRecord is the persisted subset of a session. Volatile fields (active view,
// selected notification, notifications, filter, questionnaire step) are never stored.
type SessionRecord struct {
	SessionID              string            `json:"session_id"`
	Phase                  Phase             `json:"phase"`
	CompanyType            CompanyType       `json:"company_type"`
	CompanyStage           CompanyStage      `json:"company_stage"`
	FlowType               FlowType          `json:"flow_type"`
	PlanType               PlanType          `json:"plan_type"`
	QuestionnaireData      map[string]string `json:"questionnaire_data,omitempty"`
	QuestionnaireCompleted bool              `json:"questionnaire_completed"`
	HasDocumentAddon       bool              `json:"has_document_addon"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

// Validate checks that every value is known, that the stage belongs to the company type and
// that the phase has its minimum selections. Reachability through the wizard is checked by
// flow.ValidateRecord.
func (r SessionRecord) Validate() error {
	if !r.Phase.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPhase, r.Phase)
	}
	if _, err := ParseCompanyType(string(r.CompanyType)); err != nil {
		return err
	}
	if _, err := ParseCompanyStage(string(r.CompanyStage)); err != nil {
		return err
	}
	if _, err := ParseFlowType(string(r.FlowType)); err != nil {
		return err
	}
	if _, err := ParsePlanType(string(r.PlanType)); err != nil {
		return err
	}
	if r.CompanyStage != CompanyStageUnset && !r.CompanyStage.BelongsTo(r.CompanyType) {
		return fmt.Errorf("%w: %s/%s", ErrStageOwnerMismatch, r.CompanyType, r.CompanyStage)
	}
	if r.Phase > PhaseCompanyTypeSelect && r.CompanyType == CompanyTypeUnset {
		return fmt.Errorf("%w: phase %s without company type", ErrInvalidPhase, r.Phase)
	}
	if r.Phase == PhaseDashboard && r.PlanType == PlanTypeUnset {
		return fmt.Errorf("%w: dashboard without plan", ErrInvalidPhase)
	}
	return nil
}

// Apply hydrates s with the persisted fields of r.
func (r SessionRecord) Apply(s SessionState) SessionState {
	out := s.Clone()
	out.Phase = r.Phase
	out.CompanyType = r.CompanyType
	out.CompanyStage = r.CompanyStage
	out.FlowType = r.FlowType
	out.PlanType = r.PlanType
	out.Questionnaire.Answers = make(map[string]string, len(r.QuestionnaireData))
	for k, v := range r.QuestionnaireData {
		out.Questionnaire.Answers[k] = v
	}
	out.Questionnaire.Completed = r.QuestionnaireCompleted
	out.HasDocumentAddon = r.HasDocumentAddon
	return out
}

// ChatRole identifies who authored a transcript entry.
type ChatRole string

const (
	ChatRoleAI   ChatRole = "ai"
	ChatRoleUser ChatRole = "user"
	// ChatRoleWidget marks the slot where the questionnaire widget is rendered.
	ChatRoleWidget ChatRole = "widget"
)

// ChatMessage is one entry of the volatile chat transcript.
type ChatMessage struct {
	ID      string    `json:"id"`
	Role    ChatRole  `json:"role"`
	Content string    `json:"content,omitempty"`
	Time    time.Time `json:"time"`
}

// Snapshot is the outbound view of a session consumed by presentation layers.
type Snapshot struct {
	SessionID               string             `json:"sessionId"`
	Phase                   Phase              `json:"phase"`
	PhaseName               string             `json:"phaseName"`
	CompanyType             CompanyType        `json:"companyType"`
	CompanyStage            CompanyStage       `json:"companyStage"`
	FlowType                FlowType           `json:"flowType"`
	PlanType                PlanType           `json:"planType"`
	ActiveView              ActiveView         `json:"activeView"`
	SelectedNotification    *Notification      `json:"selectedNotification"`
	QuestionnaireStep       int                `json:"questionnaireStep"`
	QuestionnaireTotalSteps int                `json:"questionnaireTotalSteps"`
	QuestionnaireData       map[string]string  `json:"questionnaireData"`
	QuestionnaireCompleted  bool               `json:"questionnaireCompleted"`
	HasDocumentAddon        bool               `json:"hasDocumentAddon"`
	Notifications           []Notification     `json:"notifications"`
	NotificationFilter      NotificationFilter `json:"notificationFilter"`
	ProgressStep            int                `json:"progressStep"`
	ProgressTotal           int                `json:"progressTotal"`
	EligibleFlows           []FlowType         `json:"eligibleFlows"`
	DefaultFlow             FlowType           `json:"defaultFlow"`
	AvailablePlans          []PlanType         `json:"availablePlans"`
}
