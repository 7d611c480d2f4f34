package flow

import (
	"errors"
	"sync"
	"testing"

	"github.com/BTreeMap/BrandOS/internal/models"
	"github.com/google/go-cmp/cmp"
)

// mustTransition applies ev and fails the test on rejection.
func mustTransition(t *testing.T, s models.SessionState, ev Event) models.SessionState {
	t.Helper()
	next, err := Transition(s, ev)
	if err != nil {
		t.Fatalf("Transition(%s) in phase %s failed: %v", ev.Kind(), s.Phase, err)
	}
	return next
}

// expectRejected applies ev, requires an invalid-transition error and an unchanged state.
func expectRejected(t *testing.T, s models.SessionState, ev Event) {
	t.Helper()
	next, err := Transition(s, ev)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Transition(%s) error = %v, want ErrInvalidTransition", ev.Kind(), err)
	}
	var te *TransitionError
	if !errors.As(err, &te) || te.Event != ev.Kind() || te.Phase != s.Phase {
		t.Fatalf("expected a TransitionError for %s in %s, got %#v", ev.Kind(), s.Phase, err)
	}
	if diff := cmp.Diff(s, next); diff != "" {
		t.Fatalf("rejected transition changed state (-before +after):\n%s", diff)
	}
}

func TestSMBExampleScenario(t *testing.T) {
	s := models.NewSessionState()

	s = mustTransition(t, s, SelectCompanyType{Type: models.CompanyTypeSMB})
	if s.Phase != models.PhaseStageSelect || s.CompanyType != models.CompanyTypeSMB {
		t.Fatalf("after SMB: phase=%s type=%q", s.Phase, s.CompanyType)
	}

	s = mustTransition(t, s, SelectCompanyStage{Stage: models.StageSmb2to5})
	if s.Phase != models.PhaseFlowSelect || s.FlowType != models.FlowTypeUnset {
		t.Fatalf("after smb-2-5: phase=%s flow=%q", s.Phase, s.FlowType)
	}

	s = mustTransition(t, s, SelectFlow{Flow: models.FlowTypeEstrategico})
	if s.Phase != models.PhasePlanSelect || s.FlowType != models.FlowTypeEstrategico {
		t.Fatalf("after estrategico: phase=%s flow=%q", s.Phase, s.FlowType)
	}

	s = mustTransition(t, s, GoBack{})
	if s.Phase != models.PhaseFlowSelect || s.FlowType != models.FlowTypeUnset || s.PlanType != models.PlanTypeUnset {
		t.Fatalf("after goBack: phase=%s flow=%q plan=%q", s.Phase, s.FlowType, s.PlanType)
	}
	if s.CompanyType != models.CompanyTypeSMB || s.CompanyStage != models.StageSmb2to5 {
		t.Fatalf("goBack from plan must keep type and stage, got %q/%q", s.CompanyType, s.CompanyStage)
	}
}

func TestEnterpriseExampleScenario(t *testing.T) {
	s := mustTransition(t, models.NewSessionState(), SelectCompanyType{Type: models.CompanyTypeEnterprise})
	if s.Phase != models.PhaseFlowSelect || s.CompanyStage != models.StageEnterprise {
		t.Fatalf("after enterprise: phase=%s stage=%q", s.Phase, s.CompanyStage)
	}

	s = mustTransition(t, s, GoBack{})
	if s.Phase != models.PhaseCompanyTypeSelect {
		t.Fatalf("goBack from enterprise flow screen landed on %s", s.Phase)
	}
	if s.CompanyType != models.CompanyTypeUnset || s.CompanyStage != models.CompanyStageUnset {
		t.Fatalf("goBack should clear type and stage, got %q/%q", s.CompanyType, s.CompanyStage)
	}
}

func TestEnterpriseNeverVisitsStageScreen(t *testing.T) {
	base := models.NewSessionState()
	s := mustTransition(t, base, SelectCompanyType{Type: models.CompanyTypeEnterprise})
	if s.Phase == models.PhaseStageSelect {
		t.Fatal("enterprise must skip the stage screen")
	}
	if s.Phase != models.PhaseFlowSelect || s.CompanyStage != models.StageEnterprise {
		t.Fatalf("phase=%s stage=%q", s.Phase, s.CompanyStage)
	}
	// No stage event is accepted on the flow screen.
	expectRejected(t, s, SelectCompanyStage{Stage: models.StageEnterprise})
}

func TestSingleFlowAutoSkip(t *testing.T) {
	for _, stage := range []models.CompanyStage{models.StagePreseedConstruccion, models.StageSmbPreseed} {
		s := mustTransition(t, models.NewSessionState(), SelectCompanyType{Type: stage.Owner()})
		s = mustTransition(t, s, SelectCompanyStage{Stage: stage})
		if s.Phase != models.PhasePlanSelect || s.FlowType != models.FlowTypeCompleto {
			t.Errorf("stage %s: phase=%s flow=%q, want plan screen with completo", stage, s.Phase, s.FlowType)
		}

		back := mustTransition(t, s, GoBack{})
		if back.Phase != models.PhaseStageSelect {
			t.Errorf("stage %s: goBack landed on %s, want stage screen", stage, back.Phase)
		}
		if back.CompanyStage != models.CompanyStageUnset || back.FlowType != models.FlowTypeUnset {
			t.Errorf("stage %s: goBack left stage=%q flow=%q", stage, back.CompanyStage, back.FlowType)
		}
	}
}

// TestForwardBackSymmetry walks every forward path through the wizard and checks that goBack
// after each forward step restores the exact predecessor state.
func TestForwardBackSymmetry(t *testing.T) {
	paths := 0
	check := func(prev models.SessionState, ev Event) models.SessionState {
		t.Helper()
		next := mustTransition(t, prev, ev)
		back := mustTransition(t, next, GoBack{})
		if diff := cmp.Diff(prev, back); diff != "" {
			t.Fatalf("goBack after %s did not restore the predecessor (-want +got):\n%s", ev.Kind(), diff)
		}
		return next
	}

	start := models.NewSessionState()
	for _, ct := range models.AllCompanyTypes() {
		afterType := check(start, SelectCompanyType{Type: ct})

		var flowScreens []models.SessionState
		var planScreens []models.SessionState
		if afterType.Phase == models.PhaseFlowSelect {
			flowScreens = append(flowScreens, afterType)
		} else {
			for _, cs := range models.StagesFor(ct) {
				afterStage := check(afterType, SelectCompanyStage{Stage: cs})
				switch afterStage.Phase {
				case models.PhaseFlowSelect:
					flowScreens = append(flowScreens, afterStage)
				case models.PhasePlanSelect:
					planScreens = append(planScreens, afterStage)
				default:
					t.Fatalf("unexpected phase %s after stage %s", afterStage.Phase, cs)
				}
			}
		}
		for _, fs := range flowScreens {
			for _, ft := range EligibleFlows(fs.CompanyType, fs.CompanyStage) {
				planScreens = append(planScreens, check(fs, SelectFlow{Flow: ft}))
			}
		}
		for _, ps := range planScreens {
			for _, pt := range AvailablePlans(ps.CompanyType) {
				dash := check(ps, SelectPlan{Plan: pt})
				if dash.Phase != models.PhaseDashboard {
					t.Fatalf("plan %s did not reach the dashboard", pt)
				}
				paths++
			}
		}
	}

	// startup: 1 + 2 + 3 flows, smb: 1 + 2 + 2 + 3, enterprise: 3; three plans each except
	// enterprise with two.
	if want := (6+8)*3 + 3*2; paths != want {
		t.Errorf("walked %d complete paths, want %d", paths, want)
	}
}

func TestGoBackUnwindsEachPhase(t *testing.T) {
	tests := []struct {
		name  string
		state models.SessionState
		want  models.SessionState
	}{
		{
			name:  "company screen is a no-op",
			state: withSelections(models.PhaseCompanyTypeSelect, "", "", "", ""),
			want:  withSelections(models.PhaseCompanyTypeSelect, "", "", "", ""),
		},
		{
			name:  "stage screen clears type",
			state: withSelections(models.PhaseStageSelect, models.CompanyTypeStartup, "", "", ""),
			want:  withSelections(models.PhaseCompanyTypeSelect, "", "", "", ""),
		},
		{
			name:  "flow screen for smb returns to stage screen",
			state: withSelections(models.PhaseFlowSelect, models.CompanyTypeSMB, models.StageSmb5Plus, "", ""),
			want:  withSelections(models.PhaseStageSelect, models.CompanyTypeSMB, "", "", ""),
		},
		{
			name:  "plan screen after skipped flow screen",
			state: withSelections(models.PhasePlanSelect, models.CompanyTypeStartup, models.StagePreseedConstruccion, models.FlowTypeCompleto, ""),
			want:  withSelections(models.PhaseStageSelect, models.CompanyTypeStartup, "", "", ""),
		},
		{
			name:  "plan screen for enterprise returns to flow screen",
			state: withSelections(models.PhasePlanSelect, models.CompanyTypeEnterprise, models.StageEnterprise, models.FlowTypeTactico, ""),
			want:  withSelections(models.PhaseFlowSelect, models.CompanyTypeEnterprise, models.StageEnterprise, "", ""),
		},
		{
			name:  "dashboard clears plan only",
			state: withSelections(models.PhaseDashboard, models.CompanyTypeSMB, models.StageSmbTraccion, models.FlowTypeCompleto, models.PlanTypeEntry),
			want:  withSelections(models.PhasePlanSelect, models.CompanyTypeSMB, models.StageSmbTraccion, models.FlowTypeCompleto, ""),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustTransition(t, tt.state, GoBack{})
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("goBack mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGoBackClosesViewBeforePhase(t *testing.T) {
	s := withSelections(models.PhaseDashboard, models.CompanyTypeSMB, models.StageSmbTraccion, models.FlowTypeCompleto, models.PlanTypePremium)
	n, _ := s.FindNotification("1")
	s = mustTransition(t, s, OpenNotification{Notification: n})
	if s.ActiveView != models.ViewInsight || s.SelectedNotification == nil {
		t.Fatalf("notification did not open: view=%s", s.ActiveView)
	}

	s = mustTransition(t, s, GoBack{})
	if s.Phase != models.PhaseDashboard || s.ActiveView != models.ViewChat || s.SelectedNotification != nil {
		t.Fatalf("goBack should only close the view: phase=%s view=%s selected=%v", s.Phase, s.ActiveView, s.SelectedNotification)
	}
	if s.PlanType != models.PlanTypePremium {
		t.Fatalf("plan should survive closing the view, got %q", s.PlanType)
	}

	s = mustTransition(t, s, GoBack{})
	if s.Phase != models.PhasePlanSelect {
		t.Fatalf("second goBack should leave the dashboard, got %s", s.Phase)
	}
}

func TestInvalidTransitionsAreRejected(t *testing.T) {
	fresh := models.NewSessionState()
	enterpriseFlow := mustTransition(t, fresh, SelectCompanyType{Type: models.CompanyTypeEnterprise})
	enterprisePlan := mustTransition(t, enterpriseFlow, SelectFlow{Flow: models.FlowTypeCompleto})
	smbStage := mustTransition(t, fresh, SelectCompanyType{Type: models.CompanyTypeSMB})
	smbFlow := mustTransition(t, smbStage, SelectCompanyStage{Stage: models.StageSmb2to5})

	tests := []struct {
		name  string
		state models.SessionState
		ev    Event
	}{
		{"stage before company type", fresh, SelectCompanyStage{Stage: models.StageSemilla}},
		{"stage of another company type", smbStage, SelectCompanyStage{Stage: models.StageSemilla}},
		{"unknown stage", smbStage, SelectCompanyStage{Stage: "nope"}},
		{"unset company type", fresh, SelectCompanyType{}},
		{"unknown company type", fresh, SelectCompanyType{Type: "coop"}},
		{"company type twice", smbStage, SelectCompanyType{Type: models.CompanyTypeStartup}},
		{"ineligible flow", smbFlow, SelectFlow{Flow: models.FlowTypeTactico}},
		{"unset flow", smbFlow, SelectFlow{}},
		{"flow before stage", smbStage, SelectFlow{Flow: models.FlowTypeCompleto}},
		{"entry plan for enterprise", enterprisePlan, SelectPlan{Plan: models.PlanTypeEntry}},
		{"plan on flow screen", smbFlow, SelectPlan{Plan: models.PlanTypePremium}},
		{"unknown plan", enterprisePlan, SelectPlan{Plan: "gold"}},
		{"unknown view", fresh, SetActiveView{View: "settings"}},
		{"unknown filter", fresh, SetNotificationFilter{Filter: "spam"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectRejected(t, tt.state, tt.ev)
		})
	}
}

func TestRejectionWrapsCause(t *testing.T) {
	s := mustTransition(t, models.NewSessionState(), SelectCompanyType{Type: models.CompanyTypeSMB})
	_, err := Transition(s, SelectCompanyStage{Stage: models.StageSemilla})
	if !errors.Is(err, models.ErrStageOwnerMismatch) {
		t.Errorf("expected the stage ownership cause, got %v", err)
	}
	_, err = Transition(models.NewSessionState(), SelectCompanyType{Type: "coop"})
	if !errors.Is(err, models.ErrUnknownValue) {
		t.Errorf("expected ErrUnknownValue, got %v", err)
	}
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	s := withSelections(models.PhaseDashboard, models.CompanyTypeSMB, models.StageSmbTraccion, models.FlowTypeCompleto, models.PlanTypePremium)
	s.Questionnaire.Answers["name"] = "Acme"
	before := s.Clone()

	_ = mustTransition(t, s, UpdateAnswers{Answers: map[string]string{"name": "Other", "industry": "retail"}})
	n, _ := s.FindNotification("2")
	_ = mustTransition(t, s, OpenNotification{Notification: n})
	_ = mustTransition(t, s, Reset{})

	if diff := cmp.Diff(before, s); diff != "" {
		t.Fatalf("input state was mutated (-before +after):\n%s", diff)
	}
}

func TestSetActiveViewIdempotent(t *testing.T) {
	s := models.NewSessionState()
	s.ActiveView = models.ViewReport
	once := mustTransition(t, s, SetActiveView{View: models.ViewChat})
	twice := mustTransition(t, once, SetActiveView{View: models.ViewChat})
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second SetActiveView(chat) changed state (-first +second):\n%s", diff)
	}
	if once.Phase != s.Phase {
		t.Errorf("SetActiveView changed the phase")
	}
}

func TestOpenNotification(t *testing.T) {
	base := withSelections(models.PhaseDashboard, models.CompanyTypeSMB, models.StageSmbTraccion, models.FlowTypeCompleto, models.PlanTypePremium)

	tests := []struct {
		name     string
		n        models.Notification
		wantView models.ActiveView
		wantSel  bool
	}{
		{"insight", models.Notification{ID: "a", Kind: models.NotificationInsight, Status: models.StatusNew}, models.ViewInsight, true},
		{"report", models.Notification{ID: "b", Kind: models.NotificationReport, Status: models.StatusRead}, models.ViewReport, true},
		{"draft", models.Notification{ID: "c", Kind: models.NotificationDraft, Status: models.StatusCritical}, models.ViewDraft, true},
		{"unknown kind falls back to chat", models.Notification{ID: "d", Kind: "mystery", Status: models.StatusNew}, models.ViewChat, true},
		{"processing is ignored", models.Notification{ID: "e", Kind: models.NotificationReport, Status: models.StatusProcessing}, models.ViewChat, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustTransition(t, base, OpenNotification{Notification: tt.n})
			if got.ActiveView != tt.wantView {
				t.Errorf("view = %s, want %s", got.ActiveView, tt.wantView)
			}
			if (got.SelectedNotification != nil) != tt.wantSel {
				t.Fatalf("selected = %v, want selected=%v", got.SelectedNotification, tt.wantSel)
			}
			if tt.wantSel && got.SelectedNotification.ID != tt.n.ID {
				t.Errorf("selected ID = %q, want %q", got.SelectedNotification.ID, tt.n.ID)
			}
			if !tt.wantSel {
				if diff := cmp.Diff(base, got); diff != "" {
					t.Errorf("processing notification changed state:\n%s", diff)
				}
			}
		})
	}
}

func TestProcessingNotificationKeepsCurrentView(t *testing.T) {
	s := withSelections(models.PhaseDashboard, models.CompanyTypeSMB, models.StageSmbTraccion, models.FlowTypeCompleto, models.PlanTypePremium)
	report, _ := s.FindNotification("2")
	s = mustTransition(t, s, OpenNotification{Notification: report})

	processing, ok := s.FindNotification("4")
	if !ok || processing.Status != models.StatusProcessing {
		t.Fatalf("demo notification 4 should be processing, got %+v", processing)
	}
	got := mustTransition(t, s, OpenNotification{Notification: processing})
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("processing notification changed state (-want +got):\n%s", diff)
	}
}

func TestSupplementaryEvents(t *testing.T) {
	s := models.NewSessionState()

	s = mustTransition(t, s, SetNotificationFilter{Filter: models.FilterReports})
	if s.NotificationFilter != models.FilterReports {
		t.Errorf("filter = %q", s.NotificationFilter)
	}

	s = mustTransition(t, s, PurchaseDocumentAddon{})
	s = mustTransition(t, s, PurchaseDocumentAddon{})
	if !s.HasDocumentAddon {
		t.Error("add-on should be purchased")
	}

	s = mustTransition(t, s, SelectCompanyType{Type: models.CompanyTypeSMB})
	s = mustTransition(t, s, AdvanceQuestionnaire{})
	s = mustTransition(t, s, UpdateAnswers{Answers: map[string]string{"name": "Acme"}})
	if s.Questionnaire.Step != 2 || s.Questionnaire.Answers["name"] != "Acme" {
		t.Errorf("questionnaire = %+v", s.Questionnaire)
	}

	s = mustTransition(t, s, Reset{})
	if diff := cmp.Diff(models.NewSessionState(), s, cmpIgnoreTimestamps); diff != "" {
		t.Errorf("reset did not restore defaults (-want +got):\n%s", diff)
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name      string
		state     models.SessionState
		wantStep  int
		wantTotal int
	}{
		{"fresh", models.NewSessionState(), 1, 4},
		{"stage", withSelections(models.PhaseStageSelect, models.CompanyTypeStartup, "", "", ""), 2, 4},
		{"smb flow", withSelections(models.PhaseFlowSelect, models.CompanyTypeSMB, models.StageSmb5Plus, "", ""), 3, 4},
		{"smb plan", withSelections(models.PhasePlanSelect, models.CompanyTypeSMB, models.StageSmbPreseed, models.FlowTypeCompleto, ""), 4, 4},
		{"enterprise flow", withSelections(models.PhaseFlowSelect, models.CompanyTypeEnterprise, models.StageEnterprise, "", ""), 2, 3},
		{"enterprise plan", withSelections(models.PhasePlanSelect, models.CompanyTypeEnterprise, models.StageEnterprise, models.FlowTypeCompleto, ""), 3, 3},
		{"dashboard", withSelections(models.PhaseDashboard, models.CompanyTypeEnterprise, models.StageEnterprise, models.FlowTypeCompleto, models.PlanTypePremium), 3, 3},
	}
	for _, tt := range tests {
		step, total := Progress(tt.state)
		if step != tt.wantStep || total != tt.wantTotal {
			t.Errorf("%s: Progress = %d/%d, want %d/%d", tt.name, step, total, tt.wantStep, tt.wantTotal)
		}
	}
}

func TestNilEventRejected(t *testing.T) {
	s := models.NewSessionState()
	got, err := Transition(s, nil)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("nil event changed state:\n%s", diff)
	}
}

func TestTransitionConcurrentCallers(t *testing.T) {
	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	phases := make(chan models.Phase, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next, err := Transition(models.NewSessionState(), SelectCompanyType{Type: models.CompanyTypeSMB})
			if err != nil {
				errs <- err
				return
			}
			phases <- next.Phase
		}()
	}
	wg.Wait()
	close(errs)
	close(phases)

	for err := range errs {
		t.Errorf("concurrent Transition failed: %v", err)
	}
	for p := range phases {
		if p != models.PhaseStageSelect {
			t.Errorf("concurrent Transition reached %s, want stage", p)
		}
	}
}
