// Package ui drives the interactive session: one bubbletea model owning the
// candidate registry, the active scan and the delete queue.
package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/entro314-labs/modelkill/internal/deleter"
	"github.com/entro314-labs/modelkill/internal/registry"
	"github.com/entro314-labs/modelkill/internal/scan"
)

type sortMode int

const (
	sortByFound sortMode = iota
	sortBySizeDesc
	sortBySizeAsc
)

func (m sortMode) String() string {
	switch m {
	case sortBySizeDesc:
		return "size ↓"
	case sortBySizeAsc:
		return "size ↑"
	default:
		return "found"
	}
}

func nextSortMode(current sortMode) sortMode {
	switch current {
	case sortByFound:
		return sortBySizeDesc
	case sortBySizeDesc:
		return sortBySizeAsc
	default:
		return sortByFound
	}
}

type confirmState struct {
	active bool
	paths  []string
	bytes  int64
}

type scanStreamMsg struct {
	ID int
	Ch <-chan scan.Event
}

type scanFoundMsg struct {
	ID        int
	Candidate registry.Candidate
}

type scanProgressMsg struct {
	ID       int
	Progress scan.Progress
}

type scanDoneMsg struct {
	ID   int
	Done scan.Done
	Err  error
}

type scanPulseMsg struct{}

// scanClosedMsg means the event channel closed without delivering a Done,
// which only happens when a cancelled scan dropped it.
type scanClosedMsg struct {
	ID int
}

type deleteResultMsg struct {
	Path string
	Err  error
}

type deleteOutcome struct {
	Path string
	Err  error
}

type deleteBatchMsg struct {
	Results []deleteOutcome
}

type keyMap struct {
	Toggle     key.Binding
	SelectAll  key.Binding
	SelectNone key.Binding
	Delete     key.Binding
	Dismiss    key.Binding
	Sort       key.Binding
	Rescan     key.Binding
	CancelScan key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Toggle: key.NewBinding(
			key.WithKeys("space"),
			key.WithHelp("space", "select"),
		),
		SelectAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "select all"),
		),
		SelectNone: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "select none"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d", "enter"),
			key.WithHelp("d", "delete selected"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "dismiss failed"),
		),
		Sort: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sort"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		CancelScan: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop scan"),
		),
		Help: key.NewBinding(
			key.WithKeys("?", "h"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.SelectAll, k.Delete, k.Sort, k.Rescan, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.SelectAll, k.SelectNone, k.Delete, k.Dismiss},
		{k.Sort, k.Rescan, k.CancelScan, k.Help, k.Quit},
	}
}

type styles struct {
	base      lipgloss.Style
	header    lipgloss.Style
	title     lipgloss.Style
	subtitle  lipgloss.Style
	status    lipgloss.Style
	muted     lipgloss.Style
	accent    lipgloss.Style
	danger    lipgloss.Style
	warning   lipgloss.Style
	confirm   lipgloss.Style
	chip      lipgloss.Style
	container lipgloss.Style
}

var ui = styles{
	base: lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("238")),
	container: lipgloss.NewStyle().Padding(0, 1),
	header:    lipgloss.NewStyle().Padding(0, 1),
	title:     lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true),
	subtitle:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	status:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
	muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	accent:    lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true),
	danger:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
	warning:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
	confirm:   lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Background(lipgloss.Color("203")).Bold(true).Padding(0, 1),
	chip:      lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Background(lipgloss.Color("62")).Padding(0, 1),
}

// Options configures a session.
type Options struct {
	Scan           scan.Options
	Executor       *deleter.Executor
	ConfirmDeletes bool
}

type Model struct {
	table   table.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	reg  *registry.Registry
	view []registry.Candidate

	opts           Options
	confirmDeletes bool
	confirm        confirmState
	sortMode       sortMode

	loading   bool
	cancelled bool
	lastScan  time.Duration
	lastEvent string
	warnings  []string

	width  int
	height int

	scanID       int
	baseCtx      context.Context
	baseCancel   context.CancelFunc
	scanCtx      context.Context
	scanCancel   context.CancelFunc
	scanStream   <-chan scan.Event
	scanVisited  int
	scanErrors   int
	scanStart    time.Time
	scanPulse    float64
	scanPulseDir float64
	scanProgress progress.Model

	deleteProgress progress.Model
	deleting       bool
	deleteQueue    []string
	deleteTotal    int
	deleteDone     int
	deleteErrors   int
	quitPending    bool
}

func New(ctx context.Context, opts Options) Model {
	baseCtx, baseCancel := context.WithCancel(ctx)
	scanCtx, scanCancel := context.WithCancel(baseCtx)

	columns := []table.Column{
		{Title: "Path", Width: 52},
		{Title: "Size", Width: 10},
		{Title: "Modified", Width: 16},
		{Title: "Kind", Width: 10},
		{Title: "Status", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
	)

	tableStyles := table.DefaultStyles()
	tableStyles.Header = tableStyles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("238")).
		BorderBottom(true).
		Bold(true)
	tableStyles.Selected = tableStyles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(true)
	t.SetStyles(tableStyles)

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))

	scanBar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithoutPercentage(),
	)
	deleteBar := progress.New(progress.WithDefaultGradient())

	return Model{
		table:          t,
		spinner:        sp,
		help:           help.New(),
		keys:           newKeyMap(),
		reg:            registry.New(),
		opts:           opts,
		confirmDeletes: opts.ConfirmDeletes,
		loading:        true,
		scanID:         1,
		baseCtx:        baseCtx,
		baseCancel:     baseCancel,
		scanCtx:        scanCtx,
		scanCancel:     scanCancel,
		scanStart:      time.Now(),
		scanPulseDir:   1,
		scanProgress:   scanBar,
		deleteProgress: deleteBar,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, scanStartCmd(m.scanCtx, m.opts.Scan, m.scanID), scanPulseCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.updateLayout(msg.Width, msg.Height)
	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	case progress.FrameMsg:
		updated, cmd := m.deleteProgress.Update(msg)
		if next, ok := updated.(progress.Model); ok {
			m.deleteProgress = next
		}
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	case scanStreamMsg:
		if msg.ID != m.scanID {
			break
		}
		m.scanStream = msg.Ch
		cmds = append(cmds, waitScanMsg(msg.ID, msg.Ch))
	case scanFoundMsg:
		if msg.ID != m.scanID {
			break
		}
		m.reg.Add(msg.Candidate)
		m.refreshRows()
		m.lastEvent = fmt.Sprintf("Found: %s", msg.Candidate.Rel)
		if m.scanStream != nil {
			cmds = append(cmds, waitScanMsg(msg.ID, m.scanStream))
		}
	case scanProgressMsg:
		if msg.ID != m.scanID {
			break
		}
		m.scanVisited = msg.Progress.Visited
		m.scanErrors = msg.Progress.Errors
		if m.scanStream != nil {
			cmds = append(cmds, waitScanMsg(msg.ID, m.scanStream))
		}
	case scanDoneMsg:
		if msg.ID != m.scanID {
			break
		}
		m.loading = false
		m.cancelled = msg.Done.Cancelled
		m.warnings = msg.Done.Warnings
		m.lastScan = msg.Done.Elapsed
		m.scanVisited = msg.Done.Visited
		m.scanErrors = msg.Done.Errors
		m.scanStream = nil
		m.refreshRows()
		switch {
		case msg.Err != nil:
			m.lastEvent = fmt.Sprintf("Scan failed: %v", msg.Err)
		case msg.Done.Cancelled:
			m.lastEvent = fmt.Sprintf("Scan stopped: %d file(s) so far", m.reg.Count())
		case msg.Done.Errors > 0:
			m.lastEvent = fmt.Sprintf("Scan complete: %d file(s), %d skipped due to errors", m.reg.Count(), msg.Done.Errors)
		default:
			m.lastEvent = fmt.Sprintf("Scan complete: %d file(s)", m.reg.Count())
		}
	case scanClosedMsg:
		if msg.ID != m.scanID {
			break
		}
		m.loading = false
		m.cancelled = true
		m.lastScan = time.Since(m.scanStart)
		m.scanStream = nil
		m.refreshRows()
		m.lastEvent = fmt.Sprintf("Scan stopped: %d file(s) so far", m.reg.Count())
	case scanPulseMsg:
		if m.loading {
			m.scanPulse += 0.06 * m.scanPulseDir
			if m.scanPulse >= 1 {
				m.scanPulse = 1
				m.scanPulseDir = -1
			} else if m.scanPulse <= 0 {
				m.scanPulse = 0
				m.scanPulseDir = 1
			}
			cmds = append(cmds, scanPulseCmd())
		}
	case deleteResultMsg:
		if cmd := m.applyDeleteResult(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
		m.refreshRows()
	case deleteBatchMsg:
		if cmd := m.applyDeleteBatch(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
		m.refreshRows()
	case tea.KeyMsg:
		if m.confirm.active {
			switch msg.String() {
			case "y", "Y":
				paths := append([]string{}, m.confirm.paths...)
				m.confirm = confirmState{}
				if cmd := m.startDelete(paths); cmd != nil {
					cmds = append(cmds, cmd)
				}
			case "n", "N", "esc":
				m.confirm = confirmState{}
				m.lastEvent = "Deletion cancelled"
			}
			break
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.deleting {
				m.quitPending = true
				m.lastEvent = "Quitting once deletes finish…"
				break
			}
			if m.baseCancel != nil {
				m.baseCancel()
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.CancelScan):
			if m.loading && m.scanCancel != nil {
				m.scanCancel()
				m.lastEvent = "Stopping scan…"
			}
		case key.Matches(msg, m.keys.Rescan):
			if !m.deleting {
				var scanCmds []tea.Cmd
				m, scanCmds = m.startScan()
				cmds = append(cmds, scanCmds...)
			}
		case key.Matches(msg, m.keys.Sort):
			m.sortMode = nextSortMode(m.sortMode)
			m.refreshRows()
			m.lastEvent = fmt.Sprintf("Sorted by %s", m.sortMode.String())
		case key.Matches(msg, m.keys.Toggle):
			m.toggleSelected()
		case key.Matches(msg, m.keys.SelectAll):
			m.reg.SelectAll()
			m.refreshRows()
			m.lastEvent = fmt.Sprintf("Selected %d file(s)", m.reg.SelectedCount())
		case key.Matches(msg, m.keys.SelectNone):
			m.reg.SelectNone()
			m.refreshRows()
			m.lastEvent = "Selection cleared"
		case key.Matches(msg, m.keys.Delete):
			if m.loading {
				m.lastEvent = "Scan in progress, deletion unavailable"
				break
			}
			if cmd := m.requestDeleteSelected(); cmd != nil {
				cmds = append(cmds, cmd)
			}
		case key.Matches(msg, m.keys.Dismiss):
			m.dismissSelected()
		}
	}

	if !m.confirm.active {
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading…"
	}

	content := ui.base.Render(m.table.View())
	view := lipgloss.JoinVertical(
		lipgloss.Left,
		m.headerView(),
		content,
		m.statusView(),
		m.footerView(),
	)
	return ui.container.Render(view)
}

func (m *Model) updateLayout(width, height int) {
	if width == 0 || height == 0 {
		return
	}
	if width < 60 {
		width = 60
	}
	if height < 12 {
		height = 12
	}
	if m.width == width && m.height == height {
		return
	}
	m.width = width
	m.height = height

	sizeWidth := 10
	modifiedWidth := 16
	kindWidth := 10
	statusWidth := 10
	pathWidth := max(width-sizeWidth-modifiedWidth-kindWidth-statusWidth-12, 20)

	m.table.SetColumns([]table.Column{
		{Title: "Path", Width: pathWidth},
		{Title: "Size", Width: sizeWidth},
		{Title: "Modified", Width: modifiedWidth},
		{Title: "Kind", Width: kindWidth},
		{Title: "Status", Width: statusWidth},
	})

	headerHeight := lipgloss.Height(m.headerView())
	statusHeight := lipgloss.Height(m.statusView())
	footerHeight := lipgloss.Height(m.footerView())
	available := max(height-headerHeight-statusHeight-footerHeight-4, 5)
	m.table.SetHeight(available)
	m.table.SetWidth(width - 4)
	progressWidth := max(width-28, 20)
	m.scanProgress.Width = progressWidth
	m.deleteProgress.Width = progressWidth
}

func (m Model) startScan() (Model, []tea.Cmd) {
	if m.scanCancel != nil {
		m.scanCancel()
	}
	ctx, cancel := context.WithCancel(m.baseCtx)
	m.scanCtx = ctx
	m.scanCancel = cancel
	m.scanID++
	m.loading = true
	m.cancelled = false
	m.warnings = nil
	m.reg = registry.New()
	m.scanVisited = 0
	m.scanErrors = 0
	m.lastScan = 0
	m.scanStart = time.Now()
	m.scanPulse = 0
	m.scanPulseDir = 1
	m.scanStream = nil
	m.lastEvent = "Scanning…"
	m.refreshRows()

	cmds := []tea.Cmd{m.spinner.Tick, scanStartCmd(ctx, m.opts.Scan, m.scanID), scanPulseCmd()}
	return m, cmds
}

func (m Model) headerView() string {
	title := ui.title.Render("modelkill")
	subtitle := ui.subtitle.Render("Find and delete model weights by signature, not extension")
	root := ui.muted.Render(fmt.Sprintf("Root: %s", m.opts.Scan.Root))
	kinds := ui.chip.Render(fmt.Sprintf("signatures: %d", len(m.opts.Scan.Table.Kinds())))
	line := lipgloss.JoinHorizontal(lipgloss.Left, title, " ", kinds)
	return ui.header.Render(lipgloss.JoinVertical(lipgloss.Left, line, lipgloss.JoinHorizontal(lipgloss.Left, subtitle, " · ", root)))
}

func (m Model) statusView() string {
	if m.loading {
		elapsed := time.Since(m.scanStart).Truncate(100 * time.Millisecond)
		line := fmt.Sprintf("%s Scanning… visited %d · found %d · reclaimable %s · %s",
			m.spinner.View(), m.scanVisited, m.reg.Count(), humanize.IBytes(uint64(m.reg.TotalBytes())), elapsed)
		if m.scanErrors > 0 {
			line += ui.warning.Render(fmt.Sprintf(" · %d skipped", m.scanErrors))
		}
		bar := m.scanProgress.ViewAs(m.scanPulse)
		return lipgloss.JoinVertical(lipgloss.Left, ui.status.Render(line), ui.muted.Render(bar))
	}

	parts := []string{
		fmt.Sprintf("Files: %d", m.reg.Count()),
		fmt.Sprintf("Reclaimable: %s", humanize.IBytes(uint64(m.reg.TotalBytes()))),
		fmt.Sprintf("Selected: %d (%s)", m.reg.SelectedCount(), humanize.IBytes(uint64(m.reg.SelectedBytes()))),
		fmt.Sprintf("Sort: %s", m.sortMode.String()),
	}
	if m.reg.DeletedCount() > 0 {
		parts = append(parts, fmt.Sprintf("Deleted: %d", m.reg.DeletedCount()))
	}
	if m.lastScan > 0 {
		parts = append(parts, fmt.Sprintf("Scan: %s", m.lastScan.Truncate(10*time.Millisecond)))
	}
	if m.cancelled {
		parts = append(parts, ui.warning.Render("partial scan"))
	}
	if m.scanErrors > 0 {
		parts = append(parts, ui.warning.Render(fmt.Sprintf("%d skipped due to errors", m.scanErrors)))
	}
	status := strings.Join(parts, " · ")
	lines := []string{ui.status.Render(status)}
	if m.deleting {
		progressLine := fmt.Sprintf("Deleting %d/%d", m.deleteDone, m.deleteTotal)
		bar := m.deleteProgress.View()
		lines = append(lines, ui.muted.Render(progressLine), ui.muted.Render(bar))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) footerView() string {
	if m.confirm.active {
		label := fmt.Sprintf("Delete %d file(s), %s? (y/n)", len(m.confirm.paths), humanize.IBytes(uint64(m.confirm.bytes)))
		return ui.confirm.Render(label)
	}
	var lines []string
	if reason := m.highlightedFailReason(); reason != "" {
		lines = append(lines, ui.danger.Render(fmt.Sprintf("Delete failed: %s", reason)))
	}
	if m.lastEvent != "" {
		lines = append(lines, ui.muted.Render(m.lastEvent))
	}
	lines = append(lines, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) highlightedFailReason() string {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.view) {
		return ""
	}
	c := m.view[idx]
	if c.Status != registry.StatusFailed {
		return ""
	}
	reason := c.FailReason
	if len(reason) > 80 {
		reason = reason[:77] + "…"
	}
	return reason
}

// refreshRows snapshots the registry into the display order and rebuilds the
// table. Discovery order is the default; sorting is a view concern only.
func (m *Model) refreshRows() {
	m.view = m.reg.Visible()
	switch m.sortMode {
	case sortBySizeDesc:
		sort.SliceStable(m.view, func(i, j int) bool { return m.view[i].Size > m.view[j].Size })
	case sortBySizeAsc:
		sort.SliceStable(m.view, func(i, j int) bool { return m.view[i].Size < m.view[j].Size })
	}

	rows := make([]table.Row, 0, len(m.view))
	for _, c := range m.view {
		status := ui.muted.Render("ready")
		switch {
		case c.Status == registry.StatusFailed:
			status = ui.danger.Render("failed")
		case c.Selected:
			status = ui.accent.Render("selected")
		}
		rows = append(rows, table.Row{
			c.Rel,
			humanize.IBytes(uint64(c.Size)),
			c.ModTime.Format("2006-01-02 15:04"),
			c.Kind,
			status,
		})
	}
	m.table.SetRows(rows)
	if cursor := m.table.Cursor(); cursor >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

func (m *Model) toggleSelected() {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.view) {
		return
	}
	c := m.view[idx]
	m.reg.Toggle(c.Path)
	m.refreshRows()
	if updated, ok := m.reg.Get(c.Path); ok && updated.Selected {
		m.lastEvent = fmt.Sprintf("Selected %s", c.Rel)
	} else {
		m.lastEvent = fmt.Sprintf("Deselected %s", c.Rel)
	}
}

// dismissSelected drops the highlighted candidate from the session when its
// last delete failed, so the list can be cleared without retrying.
func (m *Model) dismissSelected() {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.view) {
		return
	}
	c := m.view[idx]
	if c.Status != registry.StatusFailed {
		m.lastEvent = "Only failed entries can be dismissed"
		return
	}
	m.reg.Remove(c.Path)
	m.refreshRows()
	m.lastEvent = fmt.Sprintf("Dismissed %s", c.Rel)
}

func (m *Model) requestDeleteSelected() tea.Cmd {
	paths := m.reg.SelectedPaths()
	if len(paths) == 0 {
		m.lastEvent = "Nothing selected"
		return nil
	}
	if m.confirmDeletes {
		m.confirm = confirmState{active: true, paths: paths, bytes: m.reg.SelectedBytes()}
		return nil
	}
	return m.startDelete(paths)
}

func (m *Model) startDelete(paths []string) tea.Cmd {
	if len(paths) == 0 || m.deleting {
		return nil
	}
	m.deleting = true
	m.deleteQueue = paths
	m.deleteTotal = len(paths)
	m.deleteDone = 0
	m.deleteErrors = 0
	m.lastEvent = fmt.Sprintf("Deleting %d file(s)…", len(paths))
	progressCmd := m.deleteProgress.SetPercent(0)
	if len(paths) == 1 {
		// No chain to drive a progress bar for a single file.
		return tea.Batch(progressCmd, m.deleteAllCmd(paths))
	}
	return tea.Batch(progressCmd, m.deleteCmdFor(paths[0]))
}

func (m *Model) applyDeleteResult(msg deleteResultMsg) tea.Cmd {
	if deleter.Succeeded(msg.Err) {
		m.reg.MarkDeleted(msg.Path)
	} else {
		m.reg.MarkFailed(msg.Path, msg.Err.Error())
		m.deleteErrors++
	}

	if !m.deleting {
		return nil
	}
	m.deleteDone++
	percent := 1.0
	if m.deleteTotal > 0 {
		percent = float64(m.deleteDone) / float64(m.deleteTotal)
	}
	progressCmd := m.deleteProgress.SetPercent(percent)
	if m.deleteDone >= m.deleteTotal {
		return m.finishDelete(progressCmd)
	}
	return tea.Batch(progressCmd, m.deleteCmdFor(m.deleteQueue[m.deleteDone]))
}

func (m *Model) applyDeleteBatch(msg deleteBatchMsg) tea.Cmd {
	for _, r := range msg.Results {
		if deleter.Succeeded(r.Err) {
			m.reg.MarkDeleted(r.Path)
		} else {
			m.reg.MarkFailed(r.Path, r.Err.Error())
			m.deleteErrors++
		}
	}
	if !m.deleting {
		return nil
	}
	m.deleteDone = m.deleteTotal
	return m.finishDelete(m.deleteProgress.SetPercent(1))
}

// finishDelete closes out an active batch and honours a quit requested while
// it was running.
func (m *Model) finishDelete(progressCmd tea.Cmd) tea.Cmd {
	m.deleting = false
	m.deleteQueue = nil
	if m.deleteErrors > 0 {
		m.lastEvent = fmt.Sprintf("Deleted %d file(s), %d failed", m.deleteTotal-m.deleteErrors, m.deleteErrors)
	} else {
		m.lastEvent = fmt.Sprintf("Deleted %d file(s), reclaimed %s", m.deleteTotal, humanize.IBytes(uint64(m.reclaimedBytes())))
	}
	if m.quitPending {
		if m.baseCancel != nil {
			m.baseCancel()
		}
		return tea.Quit
	}
	return progressCmd
}

func (m Model) reclaimedBytes() int64 {
	var total int64
	for _, c := range m.reg.All() {
		if c.Status == registry.StatusDeleted {
			total += c.Size
		}
	}
	return total
}

func (m Model) deleteCmdFor(path string) tea.Cmd {
	rel := path
	if c, ok := m.reg.Get(path); ok {
		rel = c.Rel
	}
	executor := m.opts.Executor
	return func() tea.Msg {
		return deleteResultMsg{Path: path, Err: executor.Delete(rel)}
	}
}

func (m Model) deleteAllCmd(paths []string) tea.Cmd {
	rels := make([]string, len(paths))
	for i, p := range paths {
		rels[i] = p
		if c, ok := m.reg.Get(p); ok {
			rels[i] = c.Rel
		}
	}
	executor := m.opts.Executor
	return func() tea.Msg {
		errs := executor.DeleteAll(rels)
		results := make([]deleteOutcome, len(paths))
		for i, p := range paths {
			results[i] = deleteOutcome{Path: p, Err: errs[rels[i]]}
		}
		return deleteBatchMsg{Results: results}
	}
}

func scanStartCmd(ctx context.Context, opts scan.Options, id int) tea.Cmd {
	return func() tea.Msg {
		ch, err := scan.Run(ctx, opts)
		if err != nil {
			return scanDoneMsg{ID: id, Err: err}
		}
		return scanStreamMsg{ID: id, Ch: ch}
	}
}

func waitScanMsg(id int, ch <-chan scan.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return scanClosedMsg{ID: id}
		}
		switch ev := ev.(type) {
		case scan.Found:
			return scanFoundMsg{ID: id, Candidate: ev.Candidate}
		case scan.Progress:
			return scanProgressMsg{ID: id, Progress: ev}
		case scan.Done:
			return scanDoneMsg{ID: id, Done: ev}
		}
		return nil
	}
}

func scanPulseCmd() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg {
		return scanPulseMsg{}
	})
}
