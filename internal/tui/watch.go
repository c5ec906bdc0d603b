// Package tui provides the terminal user interface for watching a
// deliberation as it runs.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quorumhq/quorum/internal/deliberation"
	"github.com/quorumhq/quorum/pkg/models"
)

// EventMsg wraps a deliberation event for the TUI.
type EventMsg struct {
	Event deliberation.Event
}

// DoneMsg signals that the deliberation has finished.
type DoneMsg struct {
	Record *models.DecisionRecord
	Err    error
}

// participantState tracks one participant's latest status.
type participantState struct {
	id        string
	round     int
	responded bool
	failed    bool
	errClass  models.ErrorClass
}

// App is the bubbletea model for the deliberation watch view.
type App struct {
	question     string
	spinner      spinner.Model
	participants []*participantState
	round        int
	scores       []models.RoundScore
	logs         []string
	record       *models.DecisionRecord
	err          error
	done         bool
	quitting     bool
	width        int

	titleStyle  lipgloss.Style
	roundStyle  lipgloss.Style
	okStyle     lipgloss.Style
	failStyle   lipgloss.Style
	dimStyle    lipgloss.Style
	resultStyle lipgloss.Style
}

// New creates a watch App for the given question.
func New(question string) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	return &App{
		question: question,
		spinner:  sp,
		width:    80,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")),
		roundStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")),
		okStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")),
		failStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		resultStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("42")).
			Padding(0, 1),
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case EventMsg:
		a.handleEvent(msg.Event)

	case DoneMsg:
		a.done = true
		a.record = msg.Record
		a.err = msg.Err
		return a, nil
	}

	return a, nil
}

// handleEvent updates state from a deliberation event.
func (a *App) handleEvent(ev deliberation.Event) {
	switch ev.Type {
	case deliberation.EventStarted:
		a.round = 1
		a.logs = append(a.logs, fmt.Sprintf("deliberation %s started", ev.DeliberationID))

	case deliberation.EventResponseReceived:
		st := a.findOrCreateParticipant(ev.ParticipantID)
		st.round = ev.Round
		st.responded = true
		st.failed = ev.Err != ""
		st.errClass = ev.Err
		if ev.Err != "" {
			a.logs = append(a.logs, fmt.Sprintf("round %d: %s failed (%s)", ev.Round, ev.ParticipantID, ev.Err))
		}

	case deliberation.EventRoundCompleted:
		a.round = ev.Round + 1
		if ev.ScoreComputed {
			a.scores = append(a.scores, models.RoundScore{Round: ev.Round, Score: ev.Score})
			a.logs = append(a.logs, fmt.Sprintf("round %d complete, convergence %.2f", ev.Round, ev.Score))
		} else {
			a.logs = append(a.logs, fmt.Sprintf("round %d complete", ev.Round))
		}
		for _, st := range a.participants {
			st.responded = false
			st.failed = false
		}

	case deliberation.EventError:
		a.logs = append(a.logs, fmt.Sprintf("error: %s", ev.Message))

	case deliberation.EventCompleted:
		if ev.Record != nil {
			a.record = ev.Record
		}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(a.titleStyle.Render("Quorum"))
	b.WriteString("  ")
	b.WriteString(a.question)
	b.WriteString("\n\n")

	if !a.done {
		b.WriteString(a.roundStyle.Render(fmt.Sprintf("Round %d", a.round)))
		b.WriteString(" ")
		b.WriteString(a.spinner.View())
		b.WriteString("\n")
	}

	for _, st := range a.participants {
		b.WriteString("  ")
		switch {
		case st.failed:
			b.WriteString(a.failStyle.Render("x " + st.id + " (" + string(st.errClass) + ")"))
		case st.responded:
			b.WriteString(a.okStyle.Render("+ " + st.id))
		default:
			b.WriteString(a.dimStyle.Render(". " + st.id))
		}
		b.WriteString("\n")
	}

	if len(a.scores) > 0 {
		b.WriteString("\n")
		for _, rs := range a.scores {
			b.WriteString(a.dimStyle.Render(fmt.Sprintf("  round %d convergence %.2f", rs.Round, rs.Score)))
			b.WriteString("\n")
		}
	}

	if a.done {
		b.WriteString("\n")
		b.WriteString(a.viewResult())
		b.WriteString("\n")
		b.WriteString(a.dimStyle.Render("Press q to exit"))
	} else {
		b.WriteString("\n")
		b.WriteString(a.dimStyle.Render("Press q to abort watching"))
	}
	b.WriteString("\n")

	return b.String()
}

// viewResult renders the final decision panel.
func (a *App) viewResult() string {
	if a.err != nil {
		return a.failStyle.Render(fmt.Sprintf("deliberation failed: %v", a.err))
	}
	if a.record == nil {
		return a.dimStyle.Render("no decision recorded")
	}

	var b strings.Builder
	switch a.record.Outcome {
	case models.OutcomeDecided:
		b.WriteString(fmt.Sprintf("Decision: %s (confidence %.2f)", a.record.Choice, a.record.Confidence))
	default:
		b.WriteString("No consensus reached")
	}
	b.WriteString(fmt.Sprintf("\nRounds: %d  Votes: %d", a.record.Rounds, len(a.record.Votes)))
	if a.record.Incomplete {
		b.WriteString("\n")
		b.WriteString(a.failStyle.Render("Incomplete: deadline expired mid-round"))
	}
	return a.resultStyle.Render(b.String())
}

// findOrCreateParticipant returns the state entry for a participant.
func (a *App) findOrCreateParticipant(id string) *participantState {
	for _, st := range a.participants {
		if st.id == id {
			return st
		}
	}
	st := &participantState{id: id}
	a.participants = append(a.participants, st)
	return st
}

// Record returns the final decision record, if any.
func (a *App) Record() *models.DecisionRecord {
	return a.record
}

// NewProgram creates a bubbletea program for the watch view. Events can be
// forwarded to it via Send.
func NewProgram(question string) (*tea.Program, *App) {
	app := New(question)
	p := tea.NewProgram(app, tea.WithAltScreen())
	return p, app
}

// Forward pumps deliberation events into the program until the channel
// closes, then sends the final DoneMsg.
func Forward(p *tea.Program, events <-chan deliberation.Event, done func() (*models.DecisionRecord, error)) {
	for ev := range events {
		p.Send(EventMsg{Event: ev})
	}
	record, err := done()
	p.Send(DoneMsg{Record: record, Err: err})
}
