package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/BTreeMap/BrandOS/internal/flow"
	"github.com/BTreeMap/BrandOS/internal/models"
)

// option is one selectable card on a wizard screen.
type option struct {
	label  string
	detail string
	event  flow.Event
}

// options lists the cards of the current wizard screen in display order.
func (m Model) options() []option {
	var opts []option
	switch m.snap.Phase {
	case models.PhaseCompanyTypeSelect:
		for _, c := range m.catalog.Companies {
			opts = append(opts, option{label: c.Title, detail: c.Subtitle, event: flow.SelectCompanyType{Type: c.Type}})
		}
	case models.PhaseStageSelect:
		for _, s := range m.catalog.StagesFor(m.snap.CompanyType) {
			opts = append(opts, option{label: s.Title, detail: s.Description, event: flow.SelectCompanyStage{Stage: s.Stage}})
		}
	case models.PhaseFlowSelect:
		for _, ft := range m.snap.EligibleFlows {
			o := option{label: string(ft), event: flow.SelectFlow{Flow: ft}}
			if f, ok := m.catalog.Flow(ft); ok {
				o.label, o.detail = f.Title, f.Description
			}
			opts = append(opts, o)
		}
	case models.PhasePlanSelect:
		for _, pt := range m.snap.AvailablePlans {
			o := option{label: string(pt), event: flow.SelectPlan{Plan: pt}}
			if p, ok := m.catalog.Plan(pt); ok {
				o.label = fmt.Sprintf("%s  %s%d/%s", p.Name, p.Price, p.Amount, p.Period)
				if p.Tag != "" {
					o.label += "  [" + p.Tag + "]"
				}
				o.detail = strings.Join(p.Features, " · ")
			}
			opts = append(opts, o)
		}
	}
	return opts
}

// defaultCursor pre-highlights the recommended flow or plan.
func (m Model) defaultCursor() int {
	switch m.snap.Phase {
	case models.PhaseFlowSelect:
		for i, ft := range m.snap.EligibleFlows {
			if ft == m.snap.DefaultFlow {
				return i
			}
		}
	case models.PhasePlanSelect:
		def := flow.DefaultPlan(m.snap.CompanyType)
		for i, pt := range m.snap.AvailablePlans {
			if pt == def {
				return i
			}
		}
	}
	return 0
}

func (m Model) handleWizardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "enter", " ":
		opts := m.options()
		if m.cursor < len(opts) {
			m.status = ""
			m.dispatch(opts[m.cursor].event)
		}
	case "esc", "backspace":
		m.status = ""
		m.dispatch(flow.GoBack{})
	}
	return m, nil
}

func wizardTitle(p models.Phase) string {
	switch p {
	case models.PhaseCompanyTypeSelect:
		return "¿Qué tipo de empresa tienes?"
	case models.PhaseStageSelect:
		return "¿En qué etapa está tu empresa?"
	case models.PhaseFlowSelect:
		return "Elige cómo quieres trabajar"
	case models.PhasePlanSelect:
		return "Elige tu plan"
	default:
		return p.String()
	}
}

func (m Model) renderWizard() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("BrandOS"))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("Paso %d de %d", m.snap.ProgressStep, m.snap.ProgressTotal)))
	b.WriteString("\n\n")
	b.WriteString(selectedStyle.Render(wizardTitle(m.snap.Phase)))
	b.WriteString("\n\n")

	for i, o := range m.options() {
		cursor, label := "  ", o.label
		if i == m.cursor {
			cursor, label = "> ", selectedStyle.Render(o.label)
		}
		b.WriteString(cursor + label + "\n")
		if o.detail != "" {
			b.WriteString("    " + subtitleStyle.Render(o.detail) + "\n")
		}
	}

	b.WriteString(helpStyle.Render("↑/↓ mover · enter elegir · esc volver · q salir"))
	return b.String()
}
