// Package tui renders a flow in the terminal and forwards key presses to it
// as renderer events.
package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BTreeMap/ReelPipe/internal/flow"
	"github.com/BTreeMap/ReelPipe/internal/models"
)

// ChangedMsg tells the model that the flow moved on its own (a reel tick or
// a settle completion).
type ChangedMsg struct{}

// Forwarder bridges flow change notifications into a running program.
type Forwarder struct {
	mu sync.Mutex
	p  *tea.Program
}

// Attach sets the program that receives change notifications.
func (f *Forwarder) Attach(p *tea.Program) {
	f.mu.Lock()
	f.p = p
	f.mu.Unlock()
}

// OnChange is suitable for flow.WithOnChange. The send is asynchronous
// because the flow may notify from inside Update.
func (f *Forwarder) OnChange(flow.Snapshot) {
	f.mu.Lock()
	p := f.p
	f.mu.Unlock()
	if p != nil {
		go p.Send(ChangedMsg{})
	}
}

// Finish is the copy shown on the final screen.
type Finish struct {
	Title string
	Body  string
}

const (
	fieldName = iota
	fieldPhone
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	subtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	buttonStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 2).Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	barStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
)

// Model is the bubbletea model for one flow.
type Model struct {
	flow   *flow.Flow
	finish Finish
	snap   flow.Snapshot

	stepKey string
	cursor  int
	text    textinput.Model
	name    textinput.Model
	phone   textinput.Model
	focus   int
	notice  string
	width   int
	quit    bool
}

// New builds a model for f.
func New(f *flow.Flow, finish Finish) Model {
	text := textinput.New()
	text.CharLimit = models.MaxTextAnswerLength
	text.Width = 50
	name := textinput.New()
	name.Placeholder = "Nombre"
	name.CharLimit = models.MaxContactFieldLength
	name.Width = 30
	phone := textinput.New()
	phone.Placeholder = "Teléfono"
	phone.CharLimit = models.MaxContactFieldLength
	phone.Width = 30

	m := Model{
		flow:   f,
		finish: finish,
		text:   text,
		name:   name,
		phone:  phone,
		width:  60,
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Snapshot returns the last view the model rendered from.
func (m Model) Snapshot() flow.Snapshot {
	return m.snap
}

// Submitted reports whether the flow reached its final mode.
func (m Model) Submitted() bool {
	return m.snap.Mode == models.ModeSubmitted
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ChangedMsg:
		m.refresh()
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quit = true
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch m.snap.Mode {
	case models.ModeTimeline:
		if key == "enter" || key == " " {
			m.apply(m.flow.TapContinue())
		}
		return m, nil
	case models.ModeSubmitted:
		if key == "enter" || key == "q" {
			m.quit = true
			return m, tea.Quit
		}
		return m, nil
	}

	def := m.snap.Definition
	if def == nil {
		return m, nil
	}
	switch def.Kind {
	case flow.KindSingleChoice:
		return m.handleChoice(key, *def)
	case flow.KindFreeText:
		return m.handleText(msg)
	case flow.KindContact:
		return m.handleContact(msg)
	default:
		if key == "enter" || key == " " {
			m.apply(m.flow.TapContinue())
		}
		return m, nil
	}
}

func (m Model) handleChoice(key string, def flow.Definition) (tea.Model, tea.Cmd) {
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(def.Options)-1 {
			m.cursor++
		}
	case "enter", " ":
		if m.cursor < len(def.Options) {
			m.apply(m.flow.Select(def.ID, def.Options[m.cursor]))
		}
	default:
		if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(def.Options) {
			m.cursor = n - 1
			m.apply(m.flow.Select(def.ID, def.Options[n-1]))
		}
	}
	return m, nil
}

func (m Model) handleText(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "enter" {
		m.apply(m.flow.SubmitText(m.text.Value()))
		return m, nil
	}
	var cmd tea.Cmd
	m.text, cmd = m.text.Update(msg)
	m.draft(m.flow.SetDraftText(m.text.Value()))
	return m, cmd
}

func (m Model) handleContact(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab", "up", "down":
		m.setFocus(1 - m.focus)
		return m, nil
	case "enter":
		if m.focus == fieldName {
			m.setFocus(fieldPhone)
			return m, nil
		}
		m.apply(m.flow.SubmitContact(m.name.Value(), m.phone.Value()))
		return m, nil
	}
	var cmd tea.Cmd
	if m.focus == fieldName {
		m.name, cmd = m.name.Update(msg)
	} else {
		m.phone, cmd = m.phone.Update(msg)
	}
	m.draft(m.flow.SetDraftContact(m.name.Value(), m.phone.Value()))
	return m, cmd
}

func (m *Model) setFocus(field int) {
	m.focus = field
	if field == fieldName {
		m.name.Focus()
		m.phone.Blur()
		return
	}
	m.name.Blur()
	m.phone.Focus()
}

// apply records the outcome of a renderer event and redraws from the flow.
func (m *Model) apply(err error) {
	m.refresh()
	m.notice = ""
	switch {
	case err == nil:
	case errors.Is(err, flow.ErrInvalidAdvance):
		m.notice = "Respuesta no válida"
		if m.snap.Transitioning {
			m.notice = "Un momento..."
		}
	default:
		m.notice = err.Error()
	}
}

// draft keeps the cached view in step with typed input.
func (m *Model) draft(err error) {
	if err != nil && !errors.Is(err, flow.ErrInvalidAdvance) {
		m.notice = err.Error()
		return
	}
	m.refresh()
}

// refresh pulls the current view and resets per-step widgets when the
// position changed.
func (m *Model) refresh() {
	m.snap = m.flow.View()
	key := fmt.Sprintf("%s/%d", m.snap.Mode, m.snap.Index)
	if key == m.stepKey {
		return
	}
	m.stepKey = key
	m.cursor = 0
	m.notice = ""
	m.text.SetValue(m.snap.Draft.Text)
	m.name.SetValue(m.snap.Draft.Name)
	m.phone.SetValue(m.snap.Draft.Phone)
	m.text.Blur()
	m.name.Blur()
	m.phone.Blur()
	if m.snap.Mode != models.ModeWizard || m.snap.Definition == nil {
		return
	}
	switch m.snap.Definition.Kind {
	case flow.KindFreeText:
		m.text.Placeholder = m.snap.Definition.InputHint
		m.text.Focus()
	case flow.KindContact:
		m.setFocus(fieldName)
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quit {
		return ""
	}
	var b strings.Builder
	switch m.snap.Mode {
	case models.ModeTimeline:
		m.viewScene(&b)
	case models.ModeWizard:
		m.viewStep(&b)
	default:
		m.viewFinish(&b)
	}
	if m.notice != "" {
		b.WriteString("\n" + noticeStyle.Render(m.notice) + "\n")
	}
	return b.String()
}

func (m Model) viewScene(b *strings.Builder) {
	b.WriteString(progressBar(m.snap.Progress, m.barWidth()) + "\n\n")
	if def := m.snap.Definition; def != nil {
		b.WriteString(titleStyle.Render(def.Prompt) + "\n")
		if def.Subtitle != "" {
			b.WriteString(subtitleStyle.Render(def.Subtitle) + "\n")
		}
		if def.ButtonText != "" {
			b.WriteString("\n" + buttonStyle.Render(def.ButtonText) + "\n")
		}
	}
	b.WriteString("\n" + helpStyle.Render("enter: continuar • esc: salir") + "\n")
}

func (m Model) viewStep(b *strings.Builder) {
	def := m.snap.Definition
	if def == nil {
		return
	}
	fmt.Fprintf(b, "%s %s\n\n", progressBar(m.snap.Progress, m.barWidth()), subtitleStyle.Render(fmt.Sprintf("%d/%d", m.snap.Index+1, m.snap.Total)))
	b.WriteString(titleStyle.Render(def.Prompt) + "\n")
	if def.Subtitle != "" {
		b.WriteString(subtitleStyle.Render(def.Subtitle) + "\n")
	}
	b.WriteString("\n")

	help := "enter: continuar"
	switch def.Kind {
	case flow.KindSingleChoice:
		chosen := m.snap.Answers[def.ID]
		for i, opt := range def.Options {
			line := fmt.Sprintf("  %d. %s", i+1, opt)
			if i == m.cursor || chosen.Value == opt {
				line = selectedStyle.Render(fmt.Sprintf("> %d. %s", i+1, opt))
			}
			b.WriteString(line + "\n")
		}
		help = "↑/↓ o 1-9: elegir • enter: confirmar"
	case flow.KindFreeText:
		b.WriteString(m.text.View() + "\n")
		help = "enter: enviar"
	case flow.KindContact:
		b.WriteString(m.name.View() + "\n" + m.phone.View() + "\n")
		help = "tab: cambiar campo • enter: enviar"
	default:
		if def.ButtonText != "" {
			b.WriteString(buttonStyle.Render(def.ButtonText) + "\n")
		}
	}
	b.WriteString("\n" + helpStyle.Render(help+" • esc: salir") + "\n")
}

func (m Model) viewFinish(b *strings.Builder) {
	b.WriteString(titleStyle.Render(m.finish.Title) + "\n")
	if m.finish.Body != "" {
		b.WriteString(subtitleStyle.Render(m.finish.Body) + "\n")
	}
	if m.snap.SubmitError != "" {
		b.WriteString("\n" + noticeStyle.Render(m.snap.SubmitError) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("enter: salir") + "\n")
}

func (m Model) barWidth() int {
	w := m.width - 10
	if w < 10 {
		w = 10
	}
	if w > 50 {
		w = 50
	}
	return w
}

func progressBar(p float64, width int) string {
	filled := int(p * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return barStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("░", width-filled)
}
