package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BTreeMap/BrandOS/internal/catalog"
	"github.com/BTreeMap/BrandOS/internal/models"
)

// ErrInvalidTransition is matched by every rejected transition.
var ErrInvalidTransition = errors.New("invalid transition")

// TransitionError describes why an event was rejected. The state is never changed on rejection.
type TransitionError struct {
	Event  EventKind
	Phase  models.Phase
	Reason string
	Err    error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("invalid transition %s in phase %s: %s", e.Event, e.Phase, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both ErrInvalidTransition and the underlying cause to errors.Is.
func (e *TransitionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidTransition}
	}
	return []error{ErrInvalidTransition, e.Err}
}

// EventKind names an inbound event.
type EventKind string

// Event kind constants.
const (
	EventSelectCompanyType     EventKind = "selectCompanyType"
	EventSelectCompanyStage    EventKind = "selectCompanyStage"
	EventSelectFlow            EventKind = "selectFlow"
	EventSelectPlan            EventKind = "selectPlan"
	EventGoBack                EventKind = "goBack"
	EventSetActiveView         EventKind = "setActiveView"
	EventOpenNotification      EventKind = "openNotification"
	EventSetNotificationFilter EventKind = "setNotificationFilter"
	EventPurchaseDocumentAddon EventKind = "purchaseDocumentAddon"
	EventAdvanceQuestionnaire  EventKind = "advanceQuestionnaire"
	EventRetreatQuestionnaire  EventKind = "retreatQuestionnaire"
	EventUpdateAnswers         EventKind = "updateAnswers"
	EventReset                 EventKind = "reset"
)

// Event is a selection or navigation signal from a presentation layer.
type Event interface {
	Kind() EventKind
}

type (
	SelectCompanyType     struct{ Type models.CompanyType }
	SelectCompanyStage    struct{ Stage models.CompanyStage }
	SelectFlow            struct{ Flow models.FlowType }
	SelectPlan            struct{ Plan models.PlanType }
	GoBack                struct{}
	SetActiveView         struct{ View models.ActiveView }
	OpenNotification      struct{ Notification models.Notification }
	SetNotificationFilter struct{ Filter models.NotificationFilter }
	PurchaseDocumentAddon struct{}
	AdvanceQuestionnaire  struct{}
	RetreatQuestionnaire  struct{}
	UpdateAnswers         struct{ Answers map[string]string }
	Reset                 struct{}
)

func (SelectCompanyType) Kind() EventKind     { return EventSelectCompanyType }
func (SelectCompanyStage) Kind() EventKind    { return EventSelectCompanyStage }
func (SelectFlow) Kind() EventKind            { return EventSelectFlow }
func (SelectPlan) Kind() EventKind            { return EventSelectPlan }
func (GoBack) Kind() EventKind                { return EventGoBack }
func (SetActiveView) Kind() EventKind         { return EventSetActiveView }
func (OpenNotification) Kind() EventKind      { return EventOpenNotification }
func (SetNotificationFilter) Kind() EventKind { return EventSetNotificationFilter }
func (PurchaseDocumentAddon) Kind() EventKind { return EventPurchaseDocumentAddon }
func (AdvanceQuestionnaire) Kind() EventKind  { return EventAdvanceQuestionnaire }
func (RetreatQuestionnaire) Kind() EventKind  { return EventRetreatQuestionnaire }
func (UpdateAnswers) Kind() EventKind         { return EventUpdateAnswers }
func (Reset) Kind() EventKind                 { return EventReset }

// Machine is the navigation state machine. It holds no session state: Transition maps
// (state, event) to the next state and never mutates its input.
type Machine struct {
	tracker *QuestionnaireTracker
}

// NewMachine creates a Machine whose questionnaire steps come from c.
func NewMachine(c *catalog.Catalog) *Machine {
	return &Machine{tracker: NewQuestionnaireTracker(c)}
}

var defaultMachine = sync.OnceValue(func() *Machine {
	return NewMachine(catalog.Default())
})

// Transition applies ev to s using the embedded catalog. It is safe for concurrent use.
func Transition(s models.SessionState, ev Event) (models.SessionState, error) {
	return defaultMachine().Transition(s, ev)
}

// Transition returns the state that follows s after ev. On rejection it returns s unchanged
// together with a *TransitionError.
func (m *Machine) Transition(s models.SessionState, ev Event) (models.SessionState, error) {
	if ev == nil {
		return s, &TransitionError{Phase: s.Phase, Reason: "nil event"}
	}
	next := s.Clone()

	var err error
	switch e := ev.(type) {
	case SelectCompanyType:
		err = selectCompanyType(&next, e.Type)
	case SelectCompanyStage:
		err = selectCompanyStage(&next, e.Stage)
	case SelectFlow:
		err = selectFlow(&next, e.Flow)
	case SelectPlan:
		err = selectPlan(&next, e.Plan)
	case GoBack:
		goBack(&next)
	case SetActiveView:
		if !e.View.Valid() {
			err = reject(ev, s.Phase, "unknown view", fmt.Errorf("%w: %q", models.ErrUnknownActiveView, e.View))
			break
		}
		next.ActiveView = e.View
	case OpenNotification:
		openNotification(&next, e.Notification)
	case SetNotificationFilter:
		if !e.Filter.Valid() {
			err = reject(ev, s.Phase, "unknown filter", fmt.Errorf("%w: %q", models.ErrUnknownFilter, e.Filter))
			break
		}
		next.NotificationFilter = e.Filter
	case PurchaseDocumentAddon:
		next.HasDocumentAddon = true
	case AdvanceQuestionnaire:
		next.Questionnaire = m.tracker.Advance(next.Questionnaire, next.FlowType)
	case RetreatQuestionnaire:
		next.Questionnaire = m.tracker.Retreat(next.Questionnaire)
	case UpdateAnswers:
		next.Questionnaire = m.tracker.UpdateAnswers(next.Questionnaire, e.Answers)
	case Reset:
		next = models.NewSessionState()
	default:
		err = reject(ev, s.Phase, "unsupported event", nil)
	}

	if err != nil {
		slog.Debug("Machine Transition rejected", "event", ev.Kind(), "phase", s.Phase, "error", err)
		return s, err
	}
	if next.Phase != s.Phase {
		slog.Debug("Machine Transition", "event", ev.Kind(), "from", s.Phase, "to", next.Phase)
	}
	return next, nil
}

func reject(ev Event, phase models.Phase, reason string, cause error) error {
	var kind EventKind
	if ev != nil {
		kind = ev.Kind()
	}
	return &TransitionError{Event: kind, Phase: phase, Reason: reason, Err: cause}
}

func selectCompanyType(s *models.SessionState, ct models.CompanyType) error {
	ev := SelectCompanyType{Type: ct}
	if s.Phase != models.PhaseCompanyTypeSelect {
		return reject(ev, s.Phase, "company type is chosen on the company screen", nil)
	}
	if !ct.Valid() {
		return reject(ev, s.Phase, "company type required", fmt.Errorf("%w: %q", models.ErrUnknownCompanyType, ct))
	}

	s.CompanyType = ct
	s.FlowType = models.FlowTypeUnset
	s.PlanType = models.PlanTypeUnset
	if ct == models.CompanyTypeEnterprise {
		// Enterprise owns a single stage, so the stage screen is never shown.
		s.CompanyStage = models.StageEnterprise
		s.Phase = models.PhaseFlowSelect
		return nil
	}
	s.CompanyStage = models.CompanyStageUnset
	s.Phase = models.PhaseStageSelect
	return nil
}

func selectCompanyStage(s *models.SessionState, cs models.CompanyStage) error {
	ev := SelectCompanyStage{Stage: cs}
	if s.CompanyType == models.CompanyTypeUnset {
		return reject(ev, s.Phase, "company type not set", nil)
	}
	if s.Phase != models.PhaseStageSelect {
		return reject(ev, s.Phase, "stage is chosen on the stage screen", nil)
	}
	if !cs.Valid() {
		return reject(ev, s.Phase, "stage required", fmt.Errorf("%w: %q", models.ErrUnknownCompanyStage, cs))
	}
	if !cs.BelongsTo(s.CompanyType) {
		return reject(ev, s.Phase, "stage not offered for company type", fmt.Errorf("%w: %s/%s", models.ErrStageOwnerMismatch, s.CompanyType, cs))
	}

	s.CompanyStage = cs
	s.PlanType = models.PlanTypeUnset
	flows := EligibleFlows(s.CompanyType, cs)
	if len(flows) == 1 {
		s.FlowType = flows[0]
		s.Phase = models.PhasePlanSelect
		return nil
	}
	s.FlowType = models.FlowTypeUnset
	s.Phase = models.PhaseFlowSelect
	return nil
}

func selectFlow(s *models.SessionState, ft models.FlowType) error {
	ev := SelectFlow{Flow: ft}
	if s.Phase != models.PhaseFlowSelect {
		return reject(ev, s.Phase, "flow is chosen on the flow screen", nil)
	}
	if !ft.Valid() {
		return reject(ev, s.Phase, "flow required", fmt.Errorf("%w: %q", models.ErrUnknownFlowType, ft))
	}
	if !IsEligible(s.CompanyType, s.CompanyStage, ft) {
		return reject(ev, s.Phase, fmt.Sprintf("flow %s not eligible for %s/%s", ft, s.CompanyType, s.CompanyStage), nil)
	}

	s.FlowType = ft
	s.PlanType = models.PlanTypeUnset
	s.Phase = models.PhasePlanSelect
	return nil
}

func selectPlan(s *models.SessionState, pt models.PlanType) error {
	ev := SelectPlan{Plan: pt}
	if s.Phase != models.PhasePlanSelect {
		return reject(ev, s.Phase, "plan is chosen on the plan screen", nil)
	}
	if !pt.Valid() {
		return reject(ev, s.Phase, "plan required", fmt.Errorf("%w: %q", models.ErrUnknownPlanType, pt))
	}
	if !PlanAllowed(s.CompanyType, pt) {
		return reject(ev, s.Phase, fmt.Sprintf("plan %s not offered to %s", pt, s.CompanyType), nil)
	}

	s.PlanType = pt
	s.Phase = models.PhaseDashboard
	return nil
}

// goBack unwinds one visible screen. A non-chat dashboard view is closed first. Phase
// unwinding re-derives whether the flow screen was skipped from the stored selections,
// before any of them is cleared.
func goBack(s *models.SessionState) {
	if s.ActiveView != models.ViewChat {
		s.ActiveView = models.ViewChat
		s.SelectedNotification = nil
		return
	}

	switch s.Phase {
	case models.PhaseDashboard:
		s.PlanType = models.PlanTypeUnset
		s.SelectedNotification = nil
		s.Phase = models.PhasePlanSelect

	case models.PhasePlanSelect:
		flowScreenShown := len(EligibleFlows(s.CompanyType, s.CompanyStage)) > 1
		s.FlowType = models.FlowTypeUnset
		s.PlanType = models.PlanTypeUnset
		if flowScreenShown {
			s.Phase = models.PhaseFlowSelect
			return
		}
		unwindBeforeFlowScreen(s)

	case models.PhaseFlowSelect:
		s.FlowType = models.FlowTypeUnset
		s.PlanType = models.PlanTypeUnset
		unwindBeforeFlowScreen(s)

	case models.PhaseStageSelect:
		clearSelections(s)
		s.Phase = models.PhaseCompanyTypeSelect

	case models.PhaseCompanyTypeSelect:
		// Entry screen: nothing to unwind.
	}
}

// unwindBeforeFlowScreen lands on the screen that preceded the flow screen: the company
// screen for Enterprise (which never visits the stage screen), the stage screen otherwise.
func unwindBeforeFlowScreen(s *models.SessionState) {
	if s.CompanyType == models.CompanyTypeEnterprise {
		clearSelections(s)
		s.Phase = models.PhaseCompanyTypeSelect
		return
	}
	s.CompanyStage = models.CompanyStageUnset
	s.Phase = models.PhaseStageSelect
}

func clearSelections(s *models.SessionState) {
	s.CompanyType = models.CompanyTypeUnset
	s.CompanyStage = models.CompanyStageUnset
	s.FlowType = models.FlowTypeUnset
	s.PlanType = models.PlanTypeUnset
}

func openNotification(s *models.SessionState, n models.Notification) {
	if !n.Openable() {
		return
	}
	s.ActiveView = models.ViewForKind(n.Kind)
	s.SelectedNotification = &n
}

// Progress returns the wizard progress indicator: the current screen number and the number
// of screens on this company type's path. Enterprise skips the stage screen.
func Progress(s models.SessionState) (step, total int) {
	total = 4
	offset := 0
	if s.CompanyType == models.CompanyTypeEnterprise {
		total = 3
		offset = 1
	}
	switch s.Phase {
	case models.PhaseCompanyTypeSelect:
		return 1, total
	case models.PhaseStageSelect:
		return 2, total
	case models.PhaseFlowSelect:
		return 3 - offset, total
	case models.PhasePlanSelect:
		return 4 - offset, total
	default:
		return total, total
	}
}
