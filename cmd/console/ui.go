package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/village-mystery/pkg/chat"
)

const (
	AgentName       = "Alex"
	PlaceHolderText = "What do you do?"
)

type line struct {
	speaker string // empty for system notes
	text    string
	isError bool
}

// sidePanel is the world as the API last reported it.
type sidePanel struct {
	location  string
	inventory []string
	win       string
}

// ConsoleUI is the BubbleTea model that runs the UI.
type ConsoleUI struct {
	config       *ConsoleConfig
	api          *APIClient
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	lines        []line
	panel        sidePanel
	lastReply    string
	ready        bool
	width        int
	height       int
	loading      bool

	showQuitModal bool
	progressTick  int
}

type chatResponseMsg struct {
	response *chat.ChatResponse
	err      error
}

type worldMsg struct {
	panel sidePanel
	obs   string
	err   error
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	winStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")). // yellow
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

const helpText = `Commands:
• /help - Show this help
• /look - Describe where you are
• /inv - List what you carry
• /copy - Copy the last reply to the clipboard
• /reset - Start the story over
• Ctrl+C - Quit

Find out what happened in the village and bring the sheriff
what he needs. Talk to people, ask what you remember, act.`

func NewConsoleUI(cfg *ConsoleConfig, api *APIClient) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	return ConsoleUI{
		config:       cfg,
		api:          api,
		textarea:     ta,
		chatViewport: chatVp,
		metaViewport: viewport.New(20, 20),
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.fetchWorld(true))
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chatWidth, metaWidth := m.panelWidths()
		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(chatWidth - 4)
		m.ready = true
		m.render()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}

			m.lines = append(m.lines, line{speaker: "You", text: input})
			m.loading = true
			m.progressTick = 0
			m.render()
			return m, tea.Batch(m.sendChatMessage(input), progressTick())
		}

	case chatResponseMsg:
		m.loading = false
		if msg.err != nil {
			m.lines = append(m.lines, line{text: "Error: " + msg.err.Error(), isError: true})
		} else {
			m.lastReply = msg.response.Message
			m.lines = append(m.lines, line{speaker: AgentName, text: msg.response.Message})
			m.panel.location = msg.response.Location
			m.panel.win = msg.response.Win
		}
		m.render()
		return m, m.fetchWorld(false)

	case worldMsg:
		if msg.err != nil {
			m.lines = append(m.lines, line{text: "Error: " + msg.err.Error(), isError: true})
		} else {
			win := m.panel.win
			m.panel = msg.panel
			if m.panel.win == "" {
				m.panel.win = win
			}
			if msg.obs != "" {
				m.lines = append(m.lines, line{text: msg.obs})
			}
		}
		m.render()

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.render()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "/help":
		m.lines = append(m.lines, line{text: helpText})
	case "/look":
		return m, m.fetchWorld(true)
	case "/inv":
		inv := "You carry nothing."
		if len(m.panel.inventory) > 0 {
			inv = "You carry: " + strings.Join(m.panel.inventory, ", ") + "."
		}
		m.lines = append(m.lines, line{text: inv})
	case "/copy":
		if err := clipboard.WriteAll(m.lastReply); err != nil {
			m.lines = append(m.lines, line{text: "Copy failed: " + err.Error(), isError: true})
		} else {
			m.lines = append(m.lines, line{text: "Copied the last reply."})
		}
	case "/reset":
		m.lines = nil
		m.lastReply = ""
		m.panel = sidePanel{}
		m.loading = true
		m.render()
		return m, tea.Batch(m.resetSession(), progressTick())
	default:
		m.lines = append(m.lines, line{text: fmt.Sprintf("Unknown command %s. Try /help.", input), isError: true})
	}
	m.render()
	return m, nil
}

func (m ConsoleUI) sendChatMessage(input string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.api.Chat(m.config.SessionID, input)
		return chatResponseMsg{resp, err}
	}
}

func (m ConsoleUI) resetSession() tea.Cmd {
	return func() tea.Msg {
		resp, err := m.api.Reset(m.config.SessionID)
		if err != nil {
			return worldMsg{err: err}
		}
		return worldMsg{panel: sidePanel{location: resp.Location}, obs: resp.Obs}
	}
}

// fetchWorld refreshes the side panel, and the room description when look
// is set.
func (m ConsoleUI) fetchWorld(look bool) tea.Cmd {
	return func() tea.Msg {
		var out worldMsg
		var err error
		if out.panel.location, err = m.api.Location(m.config.SessionID); err != nil {
			return worldMsg{err: err}
		}
		if out.panel.inventory, err = m.api.Inventory(m.config.SessionID); err != nil {
			return worldMsg{err: err}
		}
		if look {
			if out.obs, err = m.api.Observation(m.config.SessionID); err != nil {
				return worldMsg{err: err}
			}
		}
		return out
	}
}

func (m *ConsoleUI) panelWidths() (int, int) {
	chatWidth := int(float64(m.width)*0.75) - 4
	return chatWidth, m.width - chatWidth - 6
}

func (m *ConsoleUI) render() {
	if !m.ready {
		return
	}
	width := m.chatViewport.Width - 6
	if width < 20 {
		width = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("VILLAGE MYSTERY") + "\n\n")
	content.WriteString("Type what you do or say. /help lists commands.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")
	for _, l := range m.lines {
		content.WriteString(formatLine(l, width) + "\n\n")
	}
	if m.loading {
		content.WriteString(m.renderProgressBar())
	}
	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
	m.metaViewport.SetContent(writeMetadata(m.config.SessionID, m.panel))
}

// formatLine wraps a line and colours its speaker. NPC replies carry their
// own "Name: " prefix and keep it.
func formatLine(l line, width int) string {
	switch {
	case l.isError:
		return errorStyle.Render(wordwrap.String(l.text, width))
	case l.speaker == "":
		return wordwrap.String(l.text, width)
	case l.speaker == "You":
		return userStyle.Render("You: ") + wordwrap.String(l.text, width-5)
	}

	text := chat.FormatWithSpeaker(l.text, l.speaker)
	idx := strings.Index(text, ":")
	speaker, rest := text[:idx], strings.TrimSpace(text[idx+1:])
	style := speakerStyle
	if speaker == AgentName {
		style = narratorStyle
	}
	return style.Render(speaker+": ") + wordwrap.String(rest, width-len(speaker)-2)
}

func writeMetadata(sessionID string, p sidePanel) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("WORLD") + "\n\n")

	id := sessionID
	if len(id) > 8 {
		id = id[:8] + "..."
	}
	content.WriteString("Session:\n" + id + "\n\n")

	location := p.location
	if location == "" {
		location = "?"
	}
	content.WriteString("Location:\n" + location + "\n\n")

	content.WriteString("Inventory:\n")
	if len(p.inventory) == 0 {
		content.WriteString("Nothing\n")
	}
	for _, item := range p.inventory {
		content.WriteString("• " + item + "\n")
	}

	if p.win != "" {
		content.WriteString("\nProgress:\n" + winStyle.Render(p.win) + "\n")
	}
	return content.String()
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		}
		switch msg.String() {
		case "y", "Y":
			return m, tea.Quit
		case "n", "N":
			m.showQuitModal = false
			m.textarea.Focus()
			return m, textarea.Blink
		}
	}
	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Your session is kept. Resume it with:\n")
	content.WriteString("-session " + m.config.SessionID)
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue"))

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	chatWidth, metaWidth := m.panelWidths()
	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", chatWidth-4)),
			m.textarea.View(),
		),
	)
	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(m.metaViewport.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar draws an animated bar while a turn is in flight.
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && frame%4 < 2:
			bar.WriteString("▓")
		default:
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
