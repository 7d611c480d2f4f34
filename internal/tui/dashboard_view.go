package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BTreeMap/BrandOS/internal/catalog"
	"github.com/BTreeMap/BrandOS/internal/flow"
	"github.com/BTreeMap/BrandOS/internal/models"
)

var viewKeys = map[string]models.ActiveView{
	"1": models.ViewChat,
	"2": models.ViewInsight,
	"3": models.ViewReport,
	"4": models.ViewDraft,
}

func (m Model) handleDashboardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.focus {
	case focusChat:
		return m.handleChatKeys(msg)
	case focusField:
		return m.handleFieldKeys(msg)
	}

	key := msg.String()
	if v, ok := viewKeys[key]; ok {
		m.dispatch(flow.SetActiveView{View: v})
		return m, nil
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "n":
		m.dispatch(flow.SetNotificationFilter{Filter: nextFilter(m.snap.NotificationFilter)})
		m.cursor = 0
	case "o", "enter":
		visible := models.FilterNotifications(m.snap.Notifications, m.snap.NotificationFilter)
		if m.cursor < len(visible) {
			m.dispatch(flow.OpenNotification{Notification: visible[m.cursor]})
		}
	case "tab":
		m.dispatch(flow.AdvanceQuestionnaire{})
		m.fieldIndex = 0
	case "shift+tab":
		m.dispatch(flow.RetreatQuestionnaire{})
		m.fieldIndex = 0
	case "left", "h":
		m.moveField(-1)
	case "right", "l":
		m.moveField(1)
	case "p":
		m.dispatch(flow.PurchaseDocumentAddon{})
		if m.err == nil {
			m.status = "Add-on de documentos activado"
		}
	case "u":
		if err := m.manager.UploadDocument(m.ctx, m.sessionID, MockDocumentName); err != nil {
			m.err = err
		} else {
			m.err = nil
			m.status = "Analizando " + MockDocumentName + "..."
		}
	case "c", "i":
		m.focus = focusChat
		return m, m.chatInput.Focus()
	case "e":
		f, ok := m.currentField()
		if !ok {
			return m, nil
		}
		m.focus = focusField
		m.fieldInput.Placeholder = f.Label
		m.fieldInput.SetValue(m.snap.QuestionnaireData[f.Name])
		return m, m.fieldInput.Focus()
	case "R":
		m.dispatch(flow.Reset{})
		m.status = "Sesión reiniciada"
		m.refreshTranscript()
	case "esc", "backspace":
		m.status = ""
		m.dispatch(flow.GoBack{})
	}
	return m, nil
}

func (m Model) handleChatKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.focus = focusNav
		m.chatInput.Blur()
		return m, nil
	case "enter":
		if _, err := m.manager.SendChat(m.ctx, m.sessionID, m.chatInput.Value()); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.chatInput.SetValue("")
		m.refreshTranscript()
		return m, nil
	}
	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

func (m Model) handleFieldKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.focus = focusNav
		m.fieldInput.Blur()
		return m, nil
	case "enter":
		if f, ok := m.currentField(); ok {
			m.dispatch(flow.UpdateAnswers{Answers: map[string]string{f.Name: m.fieldInput.Value()}})
		}
		m.focus = focusNav
		m.fieldInput.Blur()
		m.moveField(1)
		return m, nil
	}
	var cmd tea.Cmd
	m.fieldInput, cmd = m.fieldInput.Update(msg)
	return m, cmd
}

func nextFilter(f models.NotificationFilter) models.NotificationFilter {
	all := models.AllNotificationFilters()
	for i, cand := range all {
		if cand == f {
			return all[(i+1)%len(all)]
		}
	}
	return models.FilterAll
}

func (m Model) currentStep() (catalog.Step, bool) {
	if m.snap.QuestionnaireCompleted {
		return catalog.Step{}, false
	}
	return m.catalog.Step(m.snap.FlowType, m.snap.QuestionnaireStep)
}

func (m Model) currentField() (catalog.Field, bool) {
	step, ok := m.currentStep()
	if !ok || m.fieldIndex >= len(step.Fields) {
		return catalog.Field{}, false
	}
	return step.Fields[m.fieldIndex], true
}

func (m *Model) moveField(delta int) {
	step, ok := m.currentStep()
	if !ok || len(step.Fields) == 0 {
		m.fieldIndex = 0
		return
	}
	n := len(step.Fields)
	m.fieldIndex = (m.fieldIndex + delta + n) % n
}

func viewLabel(v models.ActiveView) string {
	switch v {
	case models.ViewInsight:
		return "Insight"
	case models.ViewReport:
		return "Reporte"
	case models.ViewDraft:
		return "Borrador"
	default:
		return "Chat"
	}
}

func (m Model) renderDashboard() string {
	var tabs []string
	for i, v := range models.AllActiveViews() {
		label := fmt.Sprintf("%d %s", i+1, viewLabel(v))
		if v == m.snap.ActiveView {
			tabs = append(tabs, tabActiveStyle.Render(label))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(label))
		}
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top, titleStyle.Render("BrandOS"), "  ", m.planBadge())
	var main string
	if m.snap.ActiveView == models.ViewChat {
		main = m.renderChat()
	} else {
		main = m.renderNotificationDetail()
	}

	help := "1-4 vistas · ↑/↓ notificaciones · o abrir · n filtro · c chat · e editar campo · ←/→ campo · tab/shift+tab cuestionario · p add-on · u subir documento · esc volver · q salir"
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinHorizontal(lipgloss.Top, tabs...),
		panelStyle.Render(main),
		panelStyle.Render(m.renderNotifications()),
		helpStyle.Render(help),
	)
}

func (m Model) planBadge() string {
	label := string(m.snap.PlanType)
	if p, ok := m.catalog.Plan(m.snap.PlanType); ok {
		label = p.Name
	}
	addon := "sin add-on de documentos"
	if m.snap.HasDocumentAddon {
		addon = "add-on de documentos activo"
	}
	company := m.catalog.CompanyLabel(m.snap.CompanyType)
	if stage := m.catalog.StageLabel(m.snap.CompanyStage); stage != "" && m.snap.CompanyType != models.CompanyTypeEnterprise {
		company += " " + stage
	}
	return subtitleStyle.Render(fmt.Sprintf("%s · Plan %s · %s", company, label, addon))
}

func (m Model) renderChat() string {
	var b strings.Builder
	for _, msg := range m.transcript {
		switch msg.Role {
		case models.ChatRoleAI:
			b.WriteString(aiStyle.Render("BrandOS: "+msg.Content) + "\n")
		case models.ChatRoleUser:
			b.WriteString(userStyle.Render("Tú: "+msg.Content) + "\n")
		case models.ChatRoleWidget:
			b.WriteString(m.renderQuestionnaire() + "\n")
		}
	}
	b.WriteString("\n")
	if m.focus == focusChat {
		b.WriteString(m.chatInput.View())
	} else {
		b.WriteString(subtitleStyle.Render("c para escribir en el chat"))
	}
	return b.String()
}

func (m Model) renderQuestionnaire() string {
	if m.snap.QuestionnaireCompleted {
		return selectedStyle.Render("✓ Cuestionario completado")
	}
	step, ok := m.currentStep()
	if !ok {
		return subtitleStyle.Render("Cuestionario no disponible")
	}

	answered := 0
	names := m.catalog.FieldNames(m.snap.FlowType)
	for _, name := range names {
		if m.snap.QuestionnaireData[name] != "" {
			answered++
		}
	}

	var b strings.Builder
	b.WriteString(selectedStyle.Render(fmt.Sprintf("Paso %d de %d · %s", m.snap.QuestionnaireStep, m.snap.QuestionnaireTotalSteps, step.Title)))
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("  %d/%d respondidas", answered, len(names))))
	b.WriteString("\n")
	for i, f := range step.Fields {
		marker := "  "
		if i == m.fieldIndex {
			marker = "> "
		}
		value := m.snap.QuestionnaireData[f.Name]
		if i == m.fieldIndex && m.focus == focusField {
			value = m.fieldInput.View()
		} else if value == "" {
			value = subtitleStyle.Render("(vacío)")
		}
		b.WriteString(fmt.Sprintf("%s%s: %s\n", marker, f.Label, value))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderNotificationDetail() string {
	n := m.snap.SelectedNotification
	if n == nil {
		return subtitleStyle.Render("Abre una notificación para ver su contenido")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		selectedStyle.Render(n.Title),
		n.Description,
		subtitleStyle.Render(n.Timestamp.Format("2006-01-02 15:04")),
	)
}

func (m Model) renderNotifications() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Notificaciones · filtro: %s\n", m.snap.NotificationFilter))
	for i, n := range models.FilterNotifications(m.snap.Notifications, m.snap.NotificationFilter) {
		cursor, title := "  ", n.Title
		if i == m.cursor {
			cursor, title = "> ", selectedStyle.Render(n.Title)
		}
		b.WriteString(fmt.Sprintf("%s%s [%s]\n", cursor, title, n.Status))
	}
	return strings.TrimRight(b.String(), "\n")
}
