package flow

import (
	"errors"
	"fmt"

	"github.com/BTreeMap/BrandOS/internal/models"
)

// ErrUnreachableRecord is matched when a persisted record is well-formed but describes a
// state no sequence of events could produce.
var ErrUnreachableRecord = errors.New("unreachable session record")

// ValidateRecord checks that rec holds known values and that the wizard could have reached
// it: every selection up to the phase is made and eligible, nothing past the phase is set,
// and skipped screens are never the current one.
func ValidateRecord(rec models.SessionRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	unreachable := func(format string, args ...any) error {
		return fmt.Errorf("%w: phase %s: %s", ErrUnreachableRecord, rec.Phase, fmt.Sprintf(format, args...))
	}

	// Selections past the current phase are cleared by GoBack and not yet made going forward.
	if rec.Phase < models.PhaseStageSelect && rec.CompanyType != models.CompanyTypeUnset {
		return unreachable("company type %q already selected", rec.CompanyType)
	}
	if rec.Phase < models.PhaseFlowSelect && rec.CompanyStage != models.CompanyStageUnset {
		return unreachable("stage %q already selected", rec.CompanyStage)
	}
	if rec.Phase < models.PhasePlanSelect && rec.FlowType != models.FlowTypeUnset {
		return unreachable("flow %q already selected", rec.FlowType)
	}
	if rec.Phase < models.PhaseDashboard && rec.PlanType != models.PlanTypeUnset {
		return unreachable("plan %q already selected", rec.PlanType)
	}

	if rec.Phase == models.PhaseStageSelect && rec.CompanyType == models.CompanyTypeEnterprise {
		return unreachable("enterprise skips the stage screen")
	}
	if rec.Phase >= models.PhaseFlowSelect && rec.CompanyStage == models.CompanyStageUnset {
		return unreachable("no company stage")
	}
	if rec.Phase == models.PhaseFlowSelect && len(EligibleFlows(rec.CompanyType, rec.CompanyStage)) < 2 {
		return unreachable("stage %q has a single flow and skips the flow screen", rec.CompanyStage)
	}
	if rec.Phase >= models.PhasePlanSelect && !IsEligible(rec.CompanyType, rec.CompanyStage, rec.FlowType) {
		return unreachable("flow %q not eligible for %s/%s", rec.FlowType, rec.CompanyType, rec.CompanyStage)
	}
	if rec.Phase == models.PhaseDashboard && !PlanAllowed(rec.CompanyType, rec.PlanType) {
		return unreachable("plan %q not offered to %s", rec.PlanType, rec.CompanyType)
	}
	return nil
}
