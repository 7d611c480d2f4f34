// Package models defines onboarding enum types to avoid circular imports.
package models

import "fmt"

// CompanyType classifies the user's company. The zero value means unset.
type CompanyType string

// Company type constants.
const (
	CompanyTypeUnset      CompanyType = ""
	CompanyTypeStartup    CompanyType = "startup"
	CompanyTypeSMB        CompanyType = "smb"
	CompanyTypeEnterprise CompanyType = "enterprise"
)

// AllCompanyTypes returns the selectable company types in display order.
func AllCompanyTypes() []CompanyType {
	return []CompanyType{CompanyTypeStartup, CompanyTypeSMB, CompanyTypeEnterprise}
}

// Valid reports whether ct is a selectable (non-unset) company type.
func (ct CompanyType) Valid() bool {
	switch ct {
	case CompanyTypeStartup, CompanyTypeSMB, CompanyTypeEnterprise:
		return true
	}
	return false
}

// ParseCompanyType converts a raw string into a CompanyType. An empty string is Unset.
func ParseCompanyType(s string) (CompanyType, error) {
	ct := CompanyType(s)
	if ct == CompanyTypeUnset || ct.Valid() {
		return ct, nil
	}
	return CompanyTypeUnset, fmt.Errorf("%w: %q", ErrUnknownCompanyType, s)
}

// CompanyStage is partitioned by CompanyType; a stage is only valid under its owner.
type CompanyStage string

// Company stage constants.
const (
	CompanyStageUnset CompanyStage = ""

	// Startup stages
	StagePreseedConstruccion CompanyStage = "preseed-construccion"
	StagePequenaTraccion     CompanyStage = "pequena-traccion"
	StageSemilla             CompanyStage = "semilla"

	// SMB stages
	StageSmbPreseed  CompanyStage = "smb-preseed"
	StageSmbTraccion CompanyStage = "smb-traccion"
	StageSmb2to5     CompanyStage = "smb-2-5"
	StageSmb5Plus    CompanyStage = "smb-5plus"

	// StageEnterprise is the singleton stage auto-assigned to Enterprise companies.
	StageEnterprise CompanyStage = "enterprise-stage"
)

var stagesByType = map[CompanyType][]CompanyStage{
	CompanyTypeStartup:    {StagePreseedConstruccion, StagePequenaTraccion, StageSemilla},
	CompanyTypeSMB:        {StageSmbPreseed, StageSmbTraccion, StageSmb2to5, StageSmb5Plus},
	CompanyTypeEnterprise: {StageEnterprise},
}

// StagesFor returns the stages owned by ct, in display order. Unset yields nil.
func StagesFor(ct CompanyType) []CompanyStage {
	stages := stagesByType[ct]
	if stages == nil {
		return nil
	}
	out := make([]CompanyStage, len(stages))
	copy(out, stages)
	return out
}

// Owner returns the company type that owns the stage, or Unset for unknown stages.
func (cs CompanyStage) Owner() CompanyType {
	for ct, stages := range stagesByType {
		for _, s := range stages {
			if s == cs {
				return ct
			}
		}
	}
	return CompanyTypeUnset
}

// Valid reports whether cs is a known (non-unset) stage.
func (cs CompanyStage) Valid() bool {
	return cs.Owner() != CompanyTypeUnset
}

// BelongsTo reports whether cs is a valid stage for ct.
func (cs CompanyStage) BelongsTo(ct CompanyType) bool {
	return ct != CompanyTypeUnset && cs.Owner() == ct
}

// ParseCompanyStage converts a raw string into a CompanyStage. An empty string is Unset.
func ParseCompanyStage(s string) (CompanyStage, error) {
	cs := CompanyStage(s)
	if cs == CompanyStageUnset || cs.Valid() {
		return cs, nil
	}
	return CompanyStageUnset, fmt.Errorf("%w: %q", ErrUnknownCompanyStage, s)
}

// FlowType represents the questionnaire flow variant.
type FlowType string

// Flow type constants.
const (
	FlowTypeUnset       FlowType = ""
	FlowTypeCompleto    FlowType = "completo"
	FlowTypeEstrategico FlowType = "estrategico"
	FlowTypeTactico     FlowType = "tactico"
)

// AllFlowTypes returns every selectable flow in canonical order.
func AllFlowTypes() []FlowType {
	return []FlowType{FlowTypeCompleto, FlowTypeEstrategico, FlowTypeTactico}
}

// Valid reports whether ft is a selectable (non-unset) flow type.
func (ft FlowType) Valid() bool {
	switch ft {
	case FlowTypeCompleto, FlowTypeEstrategico, FlowTypeTactico:
		return true
	}
	return false
}

// ParseFlowType converts a raw string into a FlowType. An empty string is Unset.
func ParseFlowType(s string) (FlowType, error) {
	ft := FlowType(s)
	if ft == FlowTypeUnset || ft.Valid() {
		return ft, nil
	}
	return FlowTypeUnset, fmt.Errorf("%w: %q", ErrUnknownFlowType, s)
}

// PlanType represents the subscription plan.
type PlanType string

// Plan type constants.
const (
	PlanTypeUnset      PlanType = ""
	PlanTypeEntry      PlanType = "entry"
	PlanTypeEnterprise PlanType = "enterprise"
	PlanTypePremium    PlanType = "premium"
)

// AllPlanTypes returns every plan in display order.
func AllPlanTypes() []PlanType {
	return []PlanType{PlanTypeEntry, PlanTypeEnterprise, PlanTypePremium}
}

// Valid reports whether pt is a selectable (non-unset) plan.
func (pt PlanType) Valid() bool {
	switch pt {
	case PlanTypeEntry, PlanTypeEnterprise, PlanTypePremium:
		return true
	}
	return false
}

// ParsePlanType converts a raw string into a PlanType. An empty string is Unset.
func ParsePlanType(s string) (PlanType, error) {
	pt := PlanType(s)
	if pt == PlanTypeUnset || pt.Valid() {
		return pt, nil
	}
	return PlanTypeUnset, fmt.Errorf("%w: %q", ErrUnknownPlanType, s)
}

// Phase is the ordered wizard screen. Not every phase is visited on every path.
type Phase int

// Phase constants.
const (
	PhaseCompanyTypeSelect Phase = iota + 1
	PhaseStageSelect
	PhaseFlowSelect
	PhasePlanSelect
	PhaseDashboard
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	return p >= PhaseCompanyTypeSelect && p <= PhaseDashboard
}

// String returns a stable identifier for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseCompanyTypeSelect:
		return "company-type"
	case PhaseStageSelect:
		return "stage"
	case PhaseFlowSelect:
		return "flow"
	case PhasePlanSelect:
		return "plan"
	case PhaseDashboard:
		return "dashboard"
	default:
		return "unknown"
	}
}

// ActiveView is the dashboard sub-navigation, independent of Phase.
type ActiveView string

// Active view constants.
const (
	ViewChat    ActiveView = "chat"
	ViewInsight ActiveView = "insight"
	ViewReport  ActiveView = "report"
	ViewDraft   ActiveView = "draft"
)

// AllActiveViews returns the dashboard views in tab order.
func AllActiveViews() []ActiveView {
	return []ActiveView{ViewChat, ViewInsight, ViewReport, ViewDraft}
}

// Valid reports whether v is a known view.
func (v ActiveView) Valid() bool {
	switch v {
	case ViewChat, ViewInsight, ViewReport, ViewDraft:
		return true
	}
	return false
}

// ParseActiveView converts a raw string into an ActiveView.
func ParseActiveView(s string) (ActiveView, error) {
	v := ActiveView(s)
	if v.Valid() {
		return v, nil
	}
	return ViewChat, fmt.Errorf("%w: %q", ErrUnknownActiveView, s)
}
