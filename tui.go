package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"earshot/assist"
	"earshot/audio"
	"earshot/session"
	"earshot/transcript"
)

// TUI message types
type StatusMsg struct{ Text string }
type SessionStateMsg struct{ State session.State }
type SourceMsg struct{ Source audio.Source }
type TranscriptMsg struct{ Update transcript.Update }
type FragmentMsg struct{ Text string }
type ResponseDoneMsg struct{ Text string }
type TurnSavedMsg struct{ Saved assist.SavedTurn }
type LevelMsg struct {
	Source audio.Source
	Level  float64
}
type QuietMsg struct{ On bool }
type tickMsg time.Time

const transcriptLines = 12

type tuiModel struct {
	app *App

	width, height int
	frame         int

	status     string
	state      session.State
	active     audio.Source
	quiet      bool
	micOn      bool
	copied     bool
	generating bool
	turns      int

	levels  map[audio.Source]float64
	history []transcript.Entry

	response string
	lastDone string
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var (
	styleTitle    = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	styleStatus   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleWarn     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleActive   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	styleIdle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleQuestion = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleAnswer   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	styleHelp     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleCopied   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

func NewTUIProgram(app *App) *tea.Program {
	m := tuiModel{
		app:    app,
		status: "Starting...",
		micOn:  true,
		levels: map[audio.Source]float64{},
	}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter":
			m.response = ""
			m.lastDone = ""
			m.copied = false
			m.generating = true
			go m.app.TriggerAssist()
		case "i":
			m.micOn = m.app.ToggleMic()
		case "r":
			m.history = nil
			m.response = ""
			m.lastDone = ""
			m.turns = 0
			go m.app.Reset()
		case "c":
			if m.lastDone != "" {
				if err := clipboard.WriteAll(m.lastDone); err == nil {
					m.copied = true
				}
			}
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case StatusMsg:
		m.status = msg.Text

	case SessionStateMsg:
		m.state = msg.State

	case SourceMsg:
		m.active = msg.Source

	case TranscriptMsg:
		m.history = msg.Update.History

	case FragmentMsg:
		m.response += msg.Text

	case ResponseDoneMsg:
		m.lastDone = msg.Text
		m.generating = false

	case TurnSavedMsg:
		m.turns++

	case LevelMsg:
		prev := m.levels[msg.Source]
		m.levels[msg.Source] = prev*0.6 + msg.Level*0.4

	case QuietMsg:
		m.quiet = msg.On
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const sideWidth = 34
	var side []string

	side = append(side, styleTitle.Render("earshot"))
	side = append(side, "")
	side = append(side, stateLine(m.state))
	side = append(side, styleStatus.Render(m.status))
	side = append(side, "")
	side = append(side, m.sourceLine(audio.SourceInterviewer))
	side = append(side, m.sourceLine(audio.SourceInterviewee))
	if !m.micOn {
		side = append(side, styleWarn.Render("  mic muted"))
	}
	if m.quiet {
		side = append(side, styleWarn.Render("  no voice detected"))
	}
	if m.turns > 0 {
		side = append(side, styleIdle.Render(fmt.Sprintf("  %d answers this session", m.turns)))
	}
	side = append(side, "")
	side = append(side, styleHelp.Render("enter  suggest answer"))
	side = append(side, styleHelp.Render("c      copy answer"))
	side = append(side, styleHelp.Render("i      toggle mic"))
	side = append(side, styleHelp.Render("r      reset conversation"))
	side = append(side, styleHelp.Render("q      quit"))

	mainWidth := m.width - sideWidth - 1
	if mainWidth < 20 {
		mainWidth = 20
	}
	wrapWidth := mainWidth - 2

	var body strings.Builder
	body.WriteString(styleTitle.Render("Conversation") + "\n")
	start := 0
	if len(m.history) > transcriptLines {
		start = len(m.history) - transcriptLines
	}
	if len(m.history) == 0 {
		body.WriteString(styleIdle.Render("Listening...") + "\n")
	}
	for _, e := range m.history[start:] {
		line := transcript.Speaker(e.Source) + ": " + e.Text
		for _, w := range wrapText(line, wrapWidth) {
			body.WriteString(styleQuestion.Render(w) + "\n")
		}
	}

	body.WriteString("\n" + styleTitle.Render("Suggested answer") + "\n")
	resp := m.response
	switch {
	case resp != "":
		for _, w := range wrapText(resp, wrapWidth) {
			body.WriteString(styleAnswer.Render(w) + "\n")
		}
		if m.copied {
			body.WriteString(styleCopied.Render("[copied]") + "\n")
		}
	case m.generating:
		body.WriteString(styleIdle.Render(spinner(m.frame)+" generating...") + "\n")
	default:
		body.WriteString(styleIdle.Render("Press enter to suggest an answer") + "\n")
	}

	sidePanel := lipgloss.NewStyle().
		Width(sideWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(strings.Join(side, "\n"))

	mainPanel := lipgloss.NewStyle().
		Width(mainWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(body.String())

	return lipgloss.JoinHorizontal(lipgloss.Top, sidePanel, mainPanel)
}

func stateLine(s session.State) string {
	switch s {
	case session.StateConnected:
		return styleActive.Render("● " + s.String())
	case session.StateReconnecting, session.StateInitializing:
		return styleWarn.Render("● " + s.String())
	default:
		return styleIdle.Render("○ " + s.String())
	}
}

func (m tuiModel) sourceLine(src audio.Source) string {
	bar := levelBar(m.levels[src])
	label := fmt.Sprintf("%-11s %s", src.Label(), bar)
	if m.active == src {
		return styleActive.Render("▶ " + label)
	}
	return styleIdle.Render("  " + label)
}

func levelBar(level float64) string {
	const width = 12
	n := int(level * 10 * width)
	if n > width {
		n = width
	}
	return strings.Repeat("█", n) + strings.Repeat("░", width-n)
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func spinner(frame int) string {
	return spinnerFrames[frame%len(spinnerFrames)]
}

func wrapText(text string, width int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(runes) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(runes[:splitAt]))
		runes = runes[splitAt:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// tuiSink adapts pipeline events into Bubble Tea messages.
type tuiSink struct{}

func (tuiSink) Status(text string)                     { tuiSend(StatusMsg{Text: text}) }
func (tuiSink) SessionState(state session.State)       { tuiSend(SessionStateMsg{State: state}) }
func (tuiSink) SourceChanged(source audio.Source)      { tuiSend(SourceMsg{Source: source}) }
func (tuiSink) TranscriptUpdate(u transcript.Update)   { tuiSend(TranscriptMsg{Update: u}) }
func (tuiSink) ResponseFragment(text string)           { tuiSend(FragmentMsg{Text: text}) }
func (tuiSink) ResponseComplete(text string)           { tuiSend(ResponseDoneMsg{Text: text}) }
func (tuiSink) TurnSaved(saved assist.SavedTurn)       { tuiSend(TurnSavedMsg{Saved: saved}) }
func (tuiSink) AudioLevel(s audio.Source, lvl float64) { tuiSend(LevelMsg{Source: s, Level: lvl}) }
func (tuiSink) QuietWarning(on bool)                   { tuiSend(QuietMsg{On: on}) }
