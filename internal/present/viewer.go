package present

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/snapfind/internal/logging"
	"github.com/fyrsmithlabs/snapfind/internal/ranking"
)

const (
	scoreBarWidth   = 30
	sparklineWidth  = 30
	sparklineHeight = 2
	infoLines       = 5

	// title + sparkline + blank line
	headerHeight = 1 + sparklineHeight + 1
	// status + keys
	footerHeight = 2

	defaultThumbCols = 32
	defaultThumbRows = 16
)

// ViewerConfig configures the interactive viewer.
type ViewerConfig struct {
	// Query is shown in the header.
	Query string
	// ThumbnailWidth and ThumbnailHeight bound each thumbnail in terminal cells.
	ThumbnailWidth  int
	ThumbnailHeight int
	// Opener reveals directories; defaults to the platform file browser.
	Opener Opener
	Logger *logging.Logger
}

type entry struct {
	match ranking.Match
	thumb *Thumbnail // nil when no preview could be made
}

// Model represents the BubbleTea result viewer model.
type Model struct {
	query    string
	entries  []entry
	selected int
	thumbW   int
	thumbH   int
	status   string
	statusOK bool
	quitting bool

	viewport viewport.Model
	scoreBar progress.Model
	keys     keyMap
	opener   Opener
	logger   *logging.Logger
}

// openResultMsg reports the outcome of opening an entry's directory.
type openResultMsg struct {
	dir string
	err error
}

// NewModel builds a viewer over results and loads their thumbnails. The
// model owns the thumbnails; call Release when done.
func NewModel(results []ranking.Match, cfg ViewerConfig) Model {
	if cfg.ThumbnailWidth <= 0 {
		cfg.ThumbnailWidth = defaultThumbCols
	}
	if cfg.ThumbnailHeight <= 0 {
		cfg.ThumbnailHeight = defaultThumbRows
	}
	if cfg.Opener == nil {
		cfg.Opener = NewDirOpener()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}

	entries := make([]entry, 0, len(results))
	for _, r := range results {
		thumb, err := LoadThumbnail(r.Path, cfg.ThumbnailWidth, cfg.ThumbnailHeight)
		if err != nil {
			cfg.Logger.Debug(context.Background(), "thumbnail unavailable",
				zap.String("path", r.Path),
				zap.Error(err),
			)
			thumb = nil
		}
		entries = append(entries, entry{match: r, thumb: thumb})
	}

	m := Model{
		query:    cfg.Query,
		entries:  entries,
		thumbW:   cfg.ThumbnailWidth,
		thumbH:   cfg.ThumbnailHeight,
		viewport: viewport.New(80, 20),
		scoreBar: progress.New(
			progress.WithGradient("#ff0000", "#00ff00"),
			progress.WithWidth(scoreBarWidth),
		),
		keys:   defaultKeys,
		opener: cfg.Opener,
		logger: cfg.Logger,
	}
	m.syncViewport()
	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-headerHeight-footerHeight)
		m.syncViewport()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			m.selectEntry(m.selected - 1)
		case key.Matches(msg, m.keys.Down):
			m.selectEntry(m.selected + 1)
		case key.Matches(msg, m.keys.PageUp):
			m.selectEntry(m.selected - m.entriesPerPage())
		case key.Matches(msg, m.keys.PageDown):
			m.selectEntry(m.selected + m.entriesPerPage())
		case key.Matches(msg, m.keys.Open):
			if len(m.entries) == 0 {
				return m, nil
			}
			return m, openDir(m.opener, filepath.Dir(m.entries[m.selected].match.Path))
		}
		return m, nil

	case openResultMsg:
		if msg.err != nil {
			// The alt screen owns the terminal; the status line reports it.
			m.logger.Debug(context.Background(), "cannot open directory",
				zap.String("dir", msg.dir),
				zap.Error(msg.err),
			)
			m.status = msg.err.Error()
			m.statusOK = false
		} else {
			m.status = "Opened " + msg.dir
			m.statusOK = true
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// openDir opens dir off the update loop.
func openDir(opener Opener, dir string) tea.Cmd {
	return func() tea.Msg {
		return openResultMsg{dir: dir, err: opener.Open(dir)}
	}
}

func (m *Model) selectEntry(i int) {
	if len(m.entries) == 0 {
		return
	}
	m.selected = max(0, min(i, len(m.entries)-1))
	m.syncViewport()
}

func (m Model) blockHeight() int {
	return max(m.thumbH, infoLines) + 1
}

func (m Model) entriesPerPage() int {
	return max(1, m.viewport.Height/m.blockHeight())
}

// syncViewport re-renders the entries and scrolls the selection into view.
func (m *Model) syncViewport() {
	m.viewport.SetContent(m.renderEntries())

	top := m.selected * m.blockHeight()
	bottom := top + m.blockHeight() - 1
	switch {
	case top < m.viewport.YOffset:
		m.viewport.SetYOffset(top)
	case bottom >= m.viewport.YOffset+m.viewport.Height:
		m.viewport.SetYOffset(bottom - m.viewport.Height + 1)
	}
}

// View renders the viewer.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader() + "\n")
	b.WriteString(m.renderSparkline() + "\n\n")
	b.WriteString(m.viewport.View() + "\n")
	b.WriteString(m.renderStatus() + "\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	header := headerStyle.Render(" snapfind ")
	query := labelStyle.Render("Query: ") + valueStyle.Render(m.query)
	count := dimStyle.Render(fmt.Sprintf("%d matches", len(m.entries)))
	return header + "   " + query + "   " + count
}

// renderSparkline plots the ranked scores, best first.
func (m Model) renderSparkline() string {
	if len(m.entries) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, e := range m.entries {
		spark.Push(max(0, e.match.Percent()))
	}
	spark.Draw()
	return sparklineStyle.Render(spark.View())
}

func (m Model) renderEntries() string {
	if len(m.entries) == 0 {
		return dimStyle.Render(NoResultsMessage)
	}

	blocks := make([]string, len(m.entries))
	for i := range m.entries {
		blocks[i] = m.renderEntry(i)
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderEntry(i int) string {
	e := m.entries[i]
	selected := i == m.selected

	marker := "  "
	if selected {
		marker = selectedStyle.Render("▶ ")
	}

	thumb := placeholder(m.thumbW, m.thumbH)
	if e.thumb != nil && !e.thumb.Released() {
		thumb = e.thumb.View()
	}

	info := []string{
		valueStyle.Render(fmt.Sprintf("%d. %s", i+1, filepath.Base(e.match.Path))),
		labelStyle.Render("Score: ") + valueStyle.Render(FormatScore(e.match)),
		m.scoreBar.ViewAs(max(0, min(1, e.match.Score))),
		dimStyle.Render(filepath.Dir(e.match.Path)),
	}
	if selected {
		info = append(info, footerKeyStyle.Render("[enter]")+footerStyle.Render(" open directory"))
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top, marker, thumb, "  ", strings.Join(info, "\n"))
	return lipgloss.NewStyle().Height(m.blockHeight() - 1).Render(row)
}

func (m Model) renderStatus() string {
	switch {
	case m.status == "":
		if len(m.entries) == 0 {
			return dimStyle.Render("0/0")
		}
		return dimStyle.Render(fmt.Sprintf("%d/%d", m.selected+1, len(m.entries)))
	case m.statusOK:
		return healthyStyle.Render("✓ ") + dimStyle.Render(m.status)
	default:
		return errorStyle.Render("✗ " + m.status)
	}
}

func (m Model) renderFooter() string {
	var parts []string
	for _, b := range m.keys.footer() {
		h := b.Help()
		parts = append(parts, footerKeyStyle.Render("["+h.Key+"]")+footerStyle.Render(" "+h.Desc))
	}
	return strings.Join(parts, "  ")
}

// Release frees every thumbnail held by the model.
func (m Model) Release() {
	for _, e := range m.entries {
		if e.thumb != nil {
			e.thumb.Release()
		}
	}
}

// ViewerSink shows results in a full-screen interactive viewer.
type ViewerSink struct {
	cfg  ViewerConfig
	opts []tea.ProgramOption
}

// NewViewerSink creates a viewer sink. opts are passed to the program after
// the defaults (alt screen, context).
func NewViewerSink(cfg ViewerConfig, opts ...tea.ProgramOption) *ViewerSink {
	return &ViewerSink{cfg: cfg, opts: opts}
}

// Render blocks until the user quits or ctx is cancelled.
func (s *ViewerSink) Render(ctx context.Context, results []ranking.Match) error {
	m := NewModel(results, s.cfg)
	defer m.Release()

	opts := append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, s.opts...)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		if ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
			return ctx.Err()
		}
		return fmt.Errorf("running viewer: %w", err)
	}
	return nil
}
