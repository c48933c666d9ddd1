// Package tui is the Bubble Tea interface: a library of ingested books, a
// per-book chapter view and a chat view scoped to an optional book. All
// backend calls run as commands so the event loop never blocks on the
// network.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"bookchat/internal/catalog"
	"bookchat/internal/chat"
	"bookchat/internal/domain"
	"bookchat/internal/ingest"
)

type view int

const (
	viewLibrary view = iota
	viewDetail
	viewChat
	viewUpload
)

// Model is the Bubble Tea model for the application.
type Model struct {
	lib     *catalog.Library
	orch    *ingest.Orchestrator
	session *chat.Session
	userID  string
	log     *zap.Logger

	view     view
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	collections []domain.Collection
	cursor      int
	detail      *domain.ProcessedBook
	chapterIdx  int

	busy        bool
	status      string
	lastPartial string // book name of the last partial ingestion, retryable
	ready       bool
	width       int
	height      int
}

// New creates the TUI model.
func New(lib *catalog.Library, orch *ingest.Orchestrator, session *chat.Session, userID string, log *zap.Logger) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	if log == nil {
		log = zap.NewNop()
	}
	return Model{
		lib:      lib,
		orch:     orch,
		session:  session,
		userID:   userID,
		log:      log,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Loading library...",
	}
}

// Init triggers the first catalog refresh.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.spinner.Tick)
}

// Messages produced by backend commands.
type (
	collectionsMsg []domain.Collection
	detailMsg      domain.ProcessedBook
	chapterMsg     domain.ChapterContent
	ingestedMsg    string
	deletedMsg     string
	chatDoneMsg    struct{ err error }
	clearedMsg     struct{ err error }
	errMsg         struct{ err error }
)

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		cols, err := m.lib.Refresh(context.Background())
		if err != nil {
			return errMsg{err}
		}
		return collectionsMsg(cols)
	}
}

func (m Model) detailCmd(book string) tea.Cmd {
	return func() tea.Msg {
		b, err := m.lib.Detail(context.Background(), book, m.userID)
		if err != nil {
			return errMsg{err}
		}
		return detailMsg(b)
	}
}

func (m Model) chapterCmd(book string, id int) tea.Cmd {
	return func() tea.Msg {
		ch, err := m.lib.Chapter(context.Background(), book, id, m.userID)
		if err != nil {
			return errMsg{err}
		}
		return chapterMsg(ch)
	}
}

func (m Model) ingestCmd(path string) tea.Cmd {
	return func() tea.Msg {
		book, err := m.orch.Ingest(context.Background(), path, m.userID)
		if err != nil {
			return errMsg{err}
		}
		return ingestedMsg(book)
	}
}

func (m Model) reindexCmd(book string) tea.Cmd {
	return func() tea.Msg {
		if err := m.orch.Reindex(context.Background(), book, m.userID, false); err != nil {
			return errMsg{err}
		}
		return ingestedMsg(book)
	}
}

func (m Model) deleteCmd(book string) tea.Cmd {
	return func() tea.Msg {
		if err := m.orch.Delete(context.Background(), book, m.userID); err != nil {
			return errMsg{err}
		}
		return deletedMsg(book)
	}
}

func (m Model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		err := m.session.Send(context.Background(), text)
		if errors.Is(err, domain.ErrEmptyMessage) {
			err = nil
		}
		// On failure the session already appended a system note; the
		// transcript is re-rendered either way.
		return chatDoneMsg{err: err}
	}
}

func (m Model) clearCmd() tea.Cmd {
	return func() tea.Msg {
		return clearedMsg{err: m.session.Clear(context.Background())}
	}
}

// Update handles key, window and backend-completion events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case collectionsMsg:
		m.busy = false
		m.collections = msg
		if m.cursor >= len(m.collections) {
			m.cursor = max(0, len(m.collections)-1)
		}
		m.status = fmt.Sprintf("%d book(s) in the library.", len(m.collections))
		return m, nil

	case detailMsg:
		m.busy = false
		b := domain.ProcessedBook(msg)
		m.detail = &b
		m.chapterIdx = 0
		m.view = viewDetail
		m.viewport.SetContent(m.renderChapterList())
		m.status = fmt.Sprintf("%s: %d chapters, %d images.", b.BookName, b.TotalChapters, b.TotalImages)
		return m, nil

	case chapterMsg:
		m.busy = false
		m.viewport.SetContent(m.renderChapter(domain.ChapterContent(msg)))
		m.viewport.GotoTop()
		return m, nil

	case ingestedMsg:
		m.busy = true
		m.lastPartial = ""
		m.status = fmt.Sprintf("Ingested %q.", string(msg))
		return m, tea.Batch(m.refreshCmd(), m.spinner.Tick)

	case deletedMsg:
		m.busy = true
		m.status = fmt.Sprintf("Deleted %q.", string(msg))
		return m, tea.Batch(m.refreshCmd(), m.spinner.Tick)

	case chatDoneMsg:
		m.busy = false
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		if msg.err != nil {
			m.status = "No answer arrived; your question stays in the transcript."
		} else {
			m.status = "Ready."
		}
		return m, nil

	case clearedMsg:
		m.busy = false
		m.viewport.SetContent(m.renderTranscript())
		if msg.err != nil {
			m.status = "Transcript cleared locally, but the server-side clear failed: stale history may remain."
		} else {
			m.status = "Session cleared."
		}
		return m, nil

	case errMsg:
		m.busy = false
		m.log.Warn("operation failed", zap.Error(msg.err))
		m.status = m.describeError(msg.err)
		if m.view == viewChat {
			m.viewport.SetContent(m.renderTranscript())
			m.viewport.GotoBottom()
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.view {
	case viewLibrary:
		return m.handleLibraryKey(msg)
	case viewDetail:
		return m.handleDetailKey(msg)
	case viewChat:
		return m.handleChatKey(msg)
	case viewUpload:
		return m.handleUploadKey(msg)
	}
	return m, nil
}

func (m Model) handleLibraryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "down", "j":
		if len(m.collections) > 0 {
			m.cursor = (m.cursor + 1) % len(m.collections)
		}
	case "up", "k":
		if len(m.collections) > 0 {
			m.cursor = (m.cursor - 1 + len(m.collections)) % len(m.collections)
		}
	case "enter":
		if len(m.collections) > 0 {
			m.busy = true
			m.status = "Loading book detail..."
			return m, tea.Batch(m.detailCmd(m.collections[m.cursor].Name), m.spinner.Tick)
		}
	case "c":
		if len(m.collections) > 0 {
			m.session.SetCollection(m.collections[m.cursor].Name)
			return m.enterChat()
		}
	case "a":
		m.session.ClearCollection()
		return m.enterChat()
	case "d":
		if len(m.collections) > 0 {
			m.busy = true
			m.status = fmt.Sprintf("Deleting %q...", m.collections[m.cursor].Name)
			return m, tea.Batch(m.deleteCmd(m.collections[m.cursor].Name), m.spinner.Tick)
		}
	case "u":
		m.view = viewUpload
		m.input.Placeholder = "Path to a PDF file"
		m.input.SetValue("")
		m.input.Focus()
		m.status = "Enter a file path, or Esc to cancel."
		return m, textinput.Blink
	case "r":
		m.busy = true
		m.status = "Refreshing..."
		return m, tea.Batch(m.refreshCmd(), m.spinner.Tick)
	case "R":
		if m.lastPartial != "" {
			m.busy = true
			m.status = fmt.Sprintf("Retrying indexing for %q...", m.lastPartial)
			return m, tea.Batch(m.reindexCmd(m.lastPartial), m.spinner.Tick)
		}
	}
	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.view = viewLibrary
		m.detail = nil
		return m, nil
	case "down", "j":
		if m.detail != nil && len(m.detail.Chapters) > 0 {
			m.chapterIdx = (m.chapterIdx + 1) % len(m.detail.Chapters)
			m.viewport.SetContent(m.renderChapterList())
		}
	case "up", "k":
		if m.detail != nil && len(m.detail.Chapters) > 0 {
			m.chapterIdx = (m.chapterIdx - 1 + len(m.detail.Chapters)) % len(m.detail.Chapters)
			m.viewport.SetContent(m.renderChapterList())
		}
	case "enter":
		if m.detail != nil && len(m.detail.Chapters) > 0 {
			ch := m.detail.Chapters[m.chapterIdx]
			m.busy = true
			m.status = fmt.Sprintf("Loading chapter %d...", ch.ChapterID)
			return m, tea.Batch(m.chapterCmd(m.detail.BookName, ch.ChapterID), m.spinner.Tick)
		}
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view = viewLibrary
		m.input.Blur()
		m.status = libraryHelp
		return m, nil
	case "ctrl+l":
		m.busy = true
		m.status = "Clearing session..."
		return m, tea.Batch(m.clearCmd(), m.spinner.Tick)
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.busy {
			return m, nil
		}
		m.input.SetValue("")
		m.busy = true
		m.status = "Waiting for the assistant..."
		// Show the outgoing message before the request resolves.
		base := ""
		if len(m.session.Messages()) > 0 {
			base = m.renderTranscript()
		}
		m.viewport.SetContent(base + userStyle.Render("You: ") + text + "\n")
		m.viewport.GotoBottom()
		return m, tea.Batch(m.sendCmd(text), m.spinner.Tick)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleUploadKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view = viewLibrary
		m.input.Blur()
		m.status = libraryHelp
		return m, nil
	case "enter":
		path := strings.TrimSpace(m.input.Value())
		if path == "" {
			return m, nil
		}
		m.view = viewLibrary
		m.input.Blur()
		m.busy = true
		m.status = fmt.Sprintf("Uploading and indexing %s ...", path)
		return m, tea.Batch(m.ingestCmd(path), m.spinner.Tick)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) enterChat() (tea.Model, tea.Cmd) {
	m.view = viewChat
	m.input.Placeholder = "Ask a question"
	m.input.SetValue("")
	m.input.Focus()
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
	if scope := m.session.Collection(); scope != "" {
		m.status = fmt.Sprintf("Chatting about %q. Esc to go back, Ctrl+L to clear.", scope)
	} else {
		m.status = "Chatting across all books. Esc to go back, Ctrl+L to clear."
	}
	return *m, textinput.Blink
}

// describeError words partial states distinctly from total failures so
// the user knows which half to retry.
func (m *Model) describeError(err error) string {
	var pi *domain.PartialIngestionError
	if errors.As(err, &pi) {
		m.lastPartial = pi.BookName
		return fmt.Sprintf("%q was processed but indexing failed; press R to retry indexing.", pi.BookName)
	}
	var pd *domain.PartialDeletionError
	if errors.As(err, &pd) {
		return fmt.Sprintf("%q is gone from the library, but its processed data could not be deleted; delete again to retry.", pd.BookName)
	}
	if errors.Is(err, domain.ErrEmptyFile) {
		return "That file is missing or empty."
	}
	return "Error: " + err.Error()
}

func (m *Model) resizeViewport() {
	_, fh := boxStyle.GetFrameSize()
	reserved := 3 + fh // header + input + status
	vh := m.height - reserved
	if vh < 3 {
		vh = 3
	}
	m.viewport.Width = max(20, m.width-2)
	m.viewport.Height = vh
	m.input.Width = max(20, m.width-6)
}

// View renders the current screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	var body string
	switch m.view {
	case viewLibrary:
		body = m.renderLibrary()
	case viewDetail:
		body = boxStyle.Render(m.viewport.View())
	case viewChat:
		body = boxStyle.Render(m.viewport.View()) + "\n" + inputStyle.Render(m.input.View())
	case viewUpload:
		body = m.renderLibrary() + "\n" + inputStyle.Render(m.input.View())
	}
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return titleStyle.Render("bookchat") + "\n" + body + "\n" + statusStyle.Render(status)
}

func (m Model) renderLibrary() string {
	if len(m.collections) == 0 {
		return boxStyle.Render("The library is empty.\n\nPress u to upload a document.")
	}
	var b strings.Builder
	for i, col := range m.collections {
		line := fmt.Sprintf("%s  (%d chunks)", col.Name, col.PointsCount)
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + helpStyle.Render(libraryHelp))
	return boxStyle.Render(b.String())
}

func (m Model) renderChapterList() string {
	if m.detail == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s: %d chapters, %d images\n\n", m.detail.BookName, m.detail.TotalChapters, m.detail.TotalImages))
	for i, ch := range m.detail.Chapters {
		title := ch.Title
		if title == "" {
			title = fmt.Sprintf("Chapter %d", ch.ChapterID+1)
		}
		line := fmt.Sprintf("%2d. %s (%d images)", ch.ChapterID, title, ch.ImageCount)
		if i == m.chapterIdx {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("Enter to open a chapter, Esc to go back."))
	return b.String()
}

func (m Model) renderChapter(ch domain.ChapterContent) string {
	title := ch.Title
	if title == "" {
		title = fmt.Sprintf("Chapter %d", ch.ChapterID+1)
	}
	return titleStyle.Render(title) + "\n\n" + ch.Content
}

func (m Model) renderTranscript() string {
	msgs := m.session.Messages()
	if len(msgs) == 0 {
		return helpStyle.Render("No messages yet. Ask something.")
	}
	var b strings.Builder
	for _, msg := range msgs {
		switch msg.Role {
		case domain.RoleUser:
			b.WriteString(userStyle.Render("You: ") + msg.Content + "\n")
		case domain.RoleAssistant:
			b.WriteString(assistantStyle.Render("Assistant: ") + msg.Content + "\n")
			if n := len(msg.Artifacts); n > 0 {
				b.WriteString(helpStyle.Render(fmt.Sprintf("  [%d supporting artifact(s)]", n)) + "\n")
			}
		case domain.RoleSystem:
			b.WriteString(systemStyle.Render(msg.Content) + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

const libraryHelp = "Enter: detail  c: chat about book  a: chat (all)  u: upload  d: delete  r: refresh  q: quit"

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Italic(true)
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
