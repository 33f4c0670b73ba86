package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ptx/internal/models"
	"github.com/desertthunder/ptx/internal/services"
	"github.com/desertthunder/ptx/internal/shared"
	"github.com/desertthunder/ptx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
	ConfirmView
	TransferView
	ResultView
)

// ModelOpts configures a [Model].
type ModelOpts struct {
	Destination  string                          // Destination catalog name shown in prompts
	AuditPath    func(playlistID string) string // Audit log path per run; nil skips the audit
	SummaryLimit int                             // Unmatched tracks listed in the result view
}

// Model represents the TUI application state.
type Model struct {
	ctx              context.Context
	view             ViewState
	source           services.Catalog
	engine           *tasks.PlaylistEngine
	opts             ModelOpts
	width            int
	height           int
	playlistList     list.Model
	trackList        list.Model
	selectedPlaylist *models.Playlist
	progressChan     chan tasks.ProgressUpdate
	doneChan         chan Msg
	progress         tasks.ProgressUpdate
	resolved         int
	result           *tasks.TransferRunResult
	err              error
	spinner          spinner.Model
	help             help.Model
	keys             keyMap
}

// NewModel creates a new TUI model that lists playlists from source and transfers them with engine.
func NewModel(ctx context.Context, source services.Catalog, engine *tasks.PlaylistEngine, opts ModelOpts) *Model {
	if opts.SummaryLimit <= 0 {
		opts.SummaryLimit = 10
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()

	return &Model{
		ctx:          ctx,
		view:         PlaylistListView,
		source:       source,
		engine:       engine,
		opts:         opts,
		playlistList: newList(nil, "Loading playlists..."),
		trackList:    newList(nil, ""),
		spinner:      s,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

func newList(items []list.Item, title string) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	return l
}

// View returns the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" + m.help.ShortHelpView([]key.Binding{m.keys.quit})
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case TrackListView:
		return m.renderTrackList()
	case ConfirmView:
		return m.renderConfirm()
	case TransferView:
		return m.renderTransfer()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// Init authenticates the source catalog and fetches its playlists.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-4)
		m.trackList.SetSize(msg.Width-4, msg.Height-4)
		return m, nil
	case tea.KeyMsg:
		if m.err != nil && m.view != ResultView {
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		}
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case TransferView:
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}
	case spinner.TickMsg:
		if m.view != TransferView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case Msg:
		return m.handleMsg(msg)
	}
	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.playlistList.Title = fmt.Sprintf("%s playlists", m.source.Name())
		return m, m.playlistList.SetItems(playlistItems(data.playlists))
	case MsgTracksFetched:
		data := msg.data.(tracksFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.selectedPlaylist = data.playlist
		m.trackList.Title = fmt.Sprintf("Tracks in %q", data.playlist.Name)
		m.trackList.ResetSelected()
		m.view = TrackListView
		return m, m.trackList.SetItems(trackItems(data.playlist.Tracks))
	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.progress = update
		if update.State == tasks.StateResolve {
			m.resolved = update.Step
		}
		return m, m.waitForProgress()
	case MsgTransferComplete:
		data := msg.data.(transferComplete)
		m.result = data.result
		m.err = data.err
		m.progressChan = nil
		m.doneChan = nil
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.enter):
			if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
				return m, m.fetchTracks(pl.playlist.ID)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.trackList.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.back):
			m.view = PlaylistListView
			return m, nil
		case key.Matches(msg, m.keys.transfer):
			m.view = ConfirmView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = TransferView
		return m, tea.Batch(m.spinner.Tick, m.startTransfer())
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = TrackListView
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = PlaylistListView
		m.selectedPlaylist = nil
		m.result = nil
		m.err = nil
		m.progress = tasks.ProgressUpdate{}
		m.resolved = 0
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchPlaylists() tea.Cmd {
	ctx, source := m.ctx, m.source
	return func() tea.Msg {
		lister, ok := source.(services.PlaylistLister)
		if !ok {
			return playlistsFetchedMsg(nil, fmt.Errorf("%w: %s cannot list playlists", shared.ErrInvalidArgument, source.Name()))
		}
		if err := source.Authenticate(ctx); err != nil {
			return playlistsFetchedMsg(nil, err)
		}
		playlists, err := lister.Playlists(ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) fetchTracks(playlistID string) tea.Cmd {
	ctx, source := m.ctx, m.source
	return func() tea.Msg {
		playlist, err := source.FetchPlaylist(ctx, playlistID)
		return tracksFetchedMsg(playlist, err)
	}
}

// startTransfer runs the engine in the background. Progress and completion arrive on channels
// owned by this run, so a restarted model never reads a stale transfer.
func (m *Model) startTransfer() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 64)
	m.doneChan = make(chan Msg, 1)
	m.progress = tasks.ProgressUpdate{}
	m.resolved = 0

	req := tasks.TransferRequest{SourcePlaylistID: m.selectedPlaylist.ID}
	if m.opts.AuditPath != nil {
		req.AuditPath = m.opts.AuditPath(m.selectedPlaylist.ID)
	}

	ctx, engine, progress, done := m.ctx, m.engine, m.progressChan, m.doneChan
	go func() {
		result, err := engine.Run(ctx, progress, req)
		done <- transferCompleteMsg(result, err)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case update := <-progress:
			return progressUpdateMsg(update)
		case msg := <-done:
			return msg
		}
	}
}

func (m *Model) helpView() string {
	return m.help.ShortHelpView(m.keys.bindings(m.view))
}

func (m *Model) renderPlaylistList() string {
	return fmt.Sprintf("%s\n%s", m.playlistList.View(), m.helpView())
}

func (m *Model) renderTrackList() string {
	return fmt.Sprintf("%s\n%s", m.trackList.View(), m.helpView())
}

func (m *Model) renderConfirm() string {
	pl := m.selectedPlaylist
	title := styles.title.Render(fmt.Sprintf("Transfer %q to %s?", pl.Name, m.opts.Destination))
	info := styles.box.Render(fmt.Sprintf("Playlist: %s\nTracks:   %d\nCreates:  %s",
		pl.Name, len(pl.Tracks), m.engine.DestinationName(pl, "")))
	return fmt.Sprintf("%s\n%s\n\n%s", title, info, m.helpView())
}

func (m *Model) renderTransfer() string {
	title := styles.title.Render("Transferring Playlist")

	var phase string
	switch m.progress.State {
	case tasks.StateResolve:
		phase = fmt.Sprintf("Matching tracks (%d/%d)", m.resolved, m.progress.Total)
	case tasks.StateInit:
		phase = "Starting..."
	default:
		phase = m.progress.Message
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s %s", title, m.spinner.View(), phase)
	if m.progress.State == tasks.StateResolve {
		fmt.Fprintf(&b, "\n%s", styles.help.Render(m.progress.Message))
	}
	return b.String()
}

func (m *Model) renderResult() string {
	helpView := m.helpView()
	if m.result == nil {
		msg := "No result available"
		if m.err != nil {
			msg = fmt.Sprintf("Transfer failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	var b strings.Builder
	if m.result.Success() {
		b.WriteString(styles.ok.Render("✓ Transfer Complete!"))
	} else {
		b.WriteString(styles.err.Render(fmt.Sprintf("✗ Transfer failed during %s: %v", m.result.FailedAt, m.result.Err)))
	}
	b.WriteString("\n\n")

	if src := m.result.SourcePlaylist; src != nil {
		fmt.Fprintf(&b, "Source:      %s (%d tracks)\n", src.Name, len(src.Tracks))
	}
	if dst := m.result.DestPlaylist; dst != nil {
		fmt.Fprintf(&b, "Destination: %s\n", dst.Name)
		if dst.URL != "" {
			fmt.Fprintf(&b, "URL:         %s\n", dst.URL)
		}
	}
	fmt.Fprintf(&b, "Match rate:  %.1f%%\n\n", m.result.MatchPercentage())

	summary := m.result.Summary(m.opts.SummaryLimit).String()
	if m.result.Matched() < m.result.Total() {
		b.WriteString(styles.warn.Render(summary))
	} else {
		b.WriteString(summary)
	}

	if m.result.AuditPath != "" {
		fmt.Fprintf(&b, "\n\nAudit log: %s", m.result.AuditPath)
	}
	if m.result.AuditErr != nil {
		fmt.Fprintf(&b, "\n\n%s", styles.warn.Render(fmt.Sprintf("Warning: %v", m.result.AuditErr)))
	}

	return fmt.Sprintf("%s\n\n%s", b.String(), helpView)
}
