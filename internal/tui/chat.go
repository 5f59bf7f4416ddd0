// Package tui is the terminal presentation layer. It renders snapshots of
// the orchestrator's conversation and never mutates generation state
// directly; every action goes through the orchestrator.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/heartguard/heartguard/internal/events"
	"github.com/heartguard/heartguard/internal/history"
	"github.com/heartguard/heartguard/internal/markdown"
	"github.com/heartguard/heartguard/internal/notifications"
	"github.com/heartguard/heartguard/internal/session"
	"github.com/heartguard/heartguard/internal/voice"
)

type keyMap struct {
	Send        key.Binding
	Save        key.Binding
	Clear       key.Binding
	History     key.Binding
	Voice       key.Binding
	NextTab     key.Binding
	Quit        key.Binding
	CloseDialog key.Binding
}

var keys = keyMap{
	Send:        key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "发送")),
	Save:        key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "保存对话")),
	Clear:       key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "清空对话")),
	History:     key.NewBinding(key.WithKeys("ctrl+h"), key.WithHelp("ctrl+h", "历史记录")),
	Voice:       key.NewBinding(key.WithKeys("ctrl+v"), key.WithHelp("ctrl+v", "语音输入")),
	NextTab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "切换问题")),
	Quit:        key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "退出")),
	CloseDialog: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "关闭")),
}

// Internal tea messages carrying orchestrator events into the update loop.
type (
	messageEventMsg      events.Event[session.Message]
	notificationEventMsg events.Event[notifications.Notification]
	streamClosedMsg      struct{}
)

var suggestionTabs = []session.QuestionTab{
	session.TabKids,
	session.TabTeens,
	session.TabLeftBehind,
}

// Model is the chat screen.
type Model struct {
	orchestrator *session.Orchestrator
	voice        *voice.Controller
	renderer     *markdown.Renderer

	ctx       context.Context
	msgEvents <-chan events.Event[session.Message]
	ntfEvents <-chan events.Event[notifications.Notification]

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	width  int
	height int

	historyOpen    bool
	historyQuery   string
	historyResults []history.Record[session.Session]

	suggestionTab int

	toast string
	alert string
}

// New builds the chat screen over a running orchestrator.
func New(ctx context.Context, orch *session.Orchestrator, vc *voice.Controller, renderer *markdown.Renderer) *Model {
	ta := textarea.New()
	ta.Placeholder = "想说什么都可以告诉康康老师哦..."
	ta.CharLimit = 2000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		orchestrator: orch,
		voice:        vc,
		renderer:     renderer,
		ctx:          ctx,
		msgEvents:    orch.Subscribe(ctx),
		textarea:     ta,
		spinner:      sp,
	}
}

// SetNotifications wires a notification stream into the status area.
func (m *Model) SetNotifications(ch <-chan events.Event[notifications.Notification]) {
	m.ntfEvents = ch
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.spinner.Tick, m.awaitMessage()}
	if m.ntfEvents != nil {
		cmds = append(cmds, m.awaitNotification())
	}
	return tea.Batch(cmds...)
}

func (m *Model) awaitMessage() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.msgEvents
		if !ok {
			return streamClosedMsg{}
		}
		return messageEventMsg(ev)
	}
}

func (m *Model) awaitNotification() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.ntfEvents
		if !ok {
			return streamClosedMsg{}
		}
		return notificationEventMsg(ev)
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textarea.SetWidth(m.width - 4)
		m.viewport = viewport.New(m.width-2, m.chatHeight())
		m.refreshConversation()

	case messageEventMsg:
		m.refreshConversation()
		return m, tea.Batch(m.awaitMessage(), m.spinner.Tick)

	case notificationEventMsg:
		n := msg.Payload
		if n.Blocking {
			m.alert = n.Message
		} else {
			m.toast = n.Message
		}
		return m, m.awaitNotification()

	case streamClosedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.alert != "" {
			// A blocking alert swallows input until acknowledged.
			m.alert = ""
			return m, nil
		}
		if m.historyOpen {
			return m.updateHistory(msg)
		}
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, keys.Send):
			text := strings.TrimSpace(m.textarea.Value())
			if text != "" {
				if err := m.orchestrator.SendChatMessage(m.ctx, text); err == nil {
					m.textarea.Reset()
				}
			}
			return m, nil

		case key.Matches(msg, keys.Save):
			// Outcome surfaces through the notification stream.
			_, _ = m.orchestrator.SaveSession()
			return m, nil

		case key.Matches(msg, keys.Clear):
			m.orchestrator.ClearConversation()
			return m, nil

		case key.Matches(msg, keys.History):
			m.historyOpen = true
			m.historyQuery = ""
			m.historyResults = m.orchestrator.Sessions()
			return m, nil

		case key.Matches(msg, keys.Voice):
			m.voice.Toggle()
			return m, nil

		case key.Matches(msg, keys.NextTab):
			if m.orchestrator.ShouldOfferSuggestions() {
				m.suggestionTab = (m.suggestionTab + 1) % len(suggestionTabs)
				return m, nil
			}
		}

		// Digit keys pick a suggested question while suggestions show.
		if m.orchestrator.ShouldOfferSuggestions() && len(msg.String()) == 1 && m.textarea.Value() == "" {
			if q, ok := m.pickSuggestion(msg.String()); ok {
				_ = m.orchestrator.SendChatMessage(m.ctx, q)
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// updateHistory handles input while the saved-session overlay is open.
// Typing filters by fuzzy title match; enter loads the top result.
func (m *Model) updateHistory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.CloseDialog):
		m.historyOpen = false
		return m, nil

	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case msg.Type == tea.KeyEnter:
		if len(m.historyResults) > 0 {
			_ = m.orchestrator.LoadSession(m.historyResults[0].ID)
			m.historyOpen = false
		}
		return m, nil

	case msg.Type == tea.KeyCtrlX:
		if len(m.historyResults) > 0 {
			m.orchestrator.DeleteSession(m.historyResults[0].ID)
			m.historyResults = m.orchestrator.SearchSessions(m.historyQuery)
		}
		return m, nil

	case msg.Type == tea.KeyBackspace:
		if m.historyQuery != "" {
			runes := []rune(m.historyQuery)
			m.historyQuery = string(runes[:len(runes)-1])
			m.historyResults = m.orchestrator.SearchSessions(m.historyQuery)
		}
		return m, nil

	case msg.Type == tea.KeyRunes:
		m.historyQuery += string(msg.Runes)
		m.historyResults = m.orchestrator.SearchSessions(m.historyQuery)
		return m, nil
	}
	return m, nil
}

func (m *Model) pickSuggestion(k string) (string, bool) {
	questions := session.SuggestedQuestions(suggestionTabs[m.suggestionTab])
	idx := int(k[0] - '1')
	if k[0] < '1' || idx >= len(questions) {
		return "", false
	}
	return questions[idx], true
}

func (m *Model) chatHeight() int {
	h := m.height - 9
	if h < 3 {
		h = 3
	}
	return h
}

// refreshConversation re-renders the viewport from the current snapshot.
func (m *Model) refreshConversation() {
	var b strings.Builder
	for _, msg := range m.orchestrator.Messages() {
		switch msg.Role {
		case session.RoleUser:
			b.WriteString(userStyle.Render("你： " + msg.Content))
		case session.RoleAssistant:
			content := msg.Content
			if rendered, err := m.renderer.Render(content); err == nil && rendered != "" {
				content = rendered
			}
			b.WriteString(assistantStyle.Render("康康老师：") + "\n" + content)
		}
		b.WriteString("\n\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("205")).
			Foreground(lipgloss.Color("230")).
			Padding(0, 2)

	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Padding(0, 2)

	alertStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("203")).
			Padding(1, 2)
)

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "加载中..."
	}
	if m.alert != "" {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			alertStyle.Render(m.alert+"\n\n按任意键继续"))
	}
	if m.historyOpen {
		return m.historyView()
	}

	var sections []string

	sections = append(sections, headerStyle.Width(m.width).Render("心灵守护 · 康康老师"))
	sections = append(sections, borderStyle.Width(m.width-2).Render(m.viewport.View()))

	if m.orchestrator.ShouldOfferSuggestions() {
		sections = append(sections, m.suggestionsView())
	}

	sections = append(sections, borderStyle.Width(m.width-2).Render(m.textarea.View()))

	status := "ctrl+d 发送 · ctrl+s 保存 · ctrl+h 历史 · ctrl+v 语音 · ctrl+c 退出"
	if m.orchestrator.ChatBusy() {
		status = m.spinner.View() + " 康康老师正在思考..."
	}
	if m.toast != "" {
		status = m.toast + "  " + status
	}
	sections = append(sections, statusStyle.Width(m.width).Render(status))

	return strings.Join(sections, "\n")
}

func (m *Model) suggestionsView() string {
	questions := session.SuggestedQuestions(suggestionTabs[m.suggestionTab])
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] tab 切换 · 按数字直接提问\n", suggestionTabs[m.suggestionTab]))
	for i, q := range questions {
		fmt.Fprintf(&b, "%d. %s   ", i+1, q)
		if i%2 == 1 {
			b.WriteString("\n")
		}
	}
	return statusStyle.Render(strings.TrimRight(b.String(), "\n "))
}

func (m *Model) historyView() string {
	var b strings.Builder
	b.WriteString("历史对话（输入筛选，enter 打开第一条，ctrl+x 删除，esc 返回）\n")
	b.WriteString("筛选: " + m.historyQuery + "\n\n")
	if len(m.historyResults) == 0 {
		b.WriteString("还没有保存的对话。")
	}
	for _, rec := range m.historyResults {
		fmt.Fprintf(&b, "%s  %s（%d 条消息）\n", rec.Payload.Date, rec.Payload.Title, len(rec.Payload.Messages))
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		borderStyle.Padding(1, 2).Render(b.String()))
}
