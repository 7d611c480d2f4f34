// Package flow implements the onboarding navigation state machine and its collaborators.
package flow

import "github.com/BTreeMap/BrandOS/internal/models"

var (
	flowsCompletoOnly = []models.FlowType{models.FlowTypeCompleto}
	flowsTwo          = []models.FlowType{models.FlowTypeCompleto, models.FlowTypeEstrategico}
	flowsAll          = []models.FlowType{models.FlowTypeCompleto, models.FlowTypeEstrategico, models.FlowTypeTactico}
)

// EligibleFlows returns the flow variants allowed for a (company type, stage) pair, in
// canonical order. It is total: unmatched or unset pairs yield {Completo}.
func EligibleFlows(ct models.CompanyType, cs models.CompanyStage) []models.FlowType {
	var flows []models.FlowType
	switch {
	case cs == models.StagePreseedConstruccion || cs == models.StageSmbPreseed:
		flows = flowsCompletoOnly
	case cs == models.StagePequenaTraccion || cs == models.StageSmbTraccion:
		flows = flowsTwo
	case ct == models.CompanyTypeStartup && cs == models.StageSemilla:
		flows = flowsAll
	case ct == models.CompanyTypeSMB && cs == models.StageSmb2to5:
		flows = flowsTwo
	case ct == models.CompanyTypeSMB && cs == models.StageSmb5Plus:
		flows = flowsAll
	case ct == models.CompanyTypeEnterprise && cs == models.StageEnterprise:
		flows = flowsAll
	default:
		flows = flowsCompletoOnly
	}
	out := make([]models.FlowType, len(flows))
	copy(out, flows)
	return out
}

// IsEligible reports whether ft is allowed for the pair.
func IsEligible(ct models.CompanyType, cs models.CompanyStage, ft models.FlowType) bool {
	for _, f := range EligibleFlows(ct, cs) {
		if f == ft {
			return true
		}
	}
	return false
}

// DefaultFlow returns the flow pre-highlighted on the flow screen. It never bypasses an
// explicit selection.
func DefaultFlow(ct models.CompanyType, cs models.CompanyStage) models.FlowType {
	flows := EligibleFlows(ct, cs)
	switch {
	case len(flows) == 1:
		return flows[0]
	case ct == models.CompanyTypeSMB && cs == models.StageSmb2to5:
		return models.FlowTypeEstrategico
	case ct == models.CompanyTypeEnterprise:
		return models.FlowTypeEstrategico
	default:
		return models.FlowTypeCompleto
	}
}

// AvailablePlans returns the plans offered to a company type. Enterprise never sees Entry.
func AvailablePlans(ct models.CompanyType) []models.PlanType {
	plans := models.AllPlanTypes()
	if ct != models.CompanyTypeEnterprise {
		return plans
	}
	out := plans[:0]
	for _, p := range plans {
		if p != models.PlanTypeEntry {
			out = append(out, p)
		}
	}
	return out
}

// PlanAllowed reports whether pt may be selected by a company of type ct.
func PlanAllowed(ct models.CompanyType, pt models.PlanType) bool {
	if !pt.Valid() {
		return false
	}
	return !(ct == models.CompanyTypeEnterprise && pt == models.PlanTypeEntry)
}

// DefaultPlan is the plan highlighted when the plan screen opens.
func DefaultPlan(models.CompanyType) models.PlanType {
	return models.PlanTypeEnterprise
}
