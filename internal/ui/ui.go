package ui

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/goose/internal/formatter"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/shared"
	"github.com/desertthunder/goose/internal/tasks"
	"github.com/desertthunder/goose/internal/workspace"
)

// ViewState represents the current view in the console.
type ViewState int

const (
	PlaylistListView ViewState = iota
	WorkspaceView
	InputView
	BusyView
)

// prompt is what the [InputView] is asking for.
type prompt int

const (
	promptAdd prompt = iota
	promptSave
	promptExport
)

func (p prompt) String() string {
	switch p {
	case promptAdd:
		return "Add tracks: search, link or playlist name"
	case promptSave:
		return "Save workspace as"
	case promptExport:
		return "Export workspace as"
	default:
		return ""
	}
}

// Acquirer turns a request into tracks, typically a tasks.Pool.
type Acquirer interface {
	Submit(ctx context.Context, input string) ([]models.Track, error)
}

// Library lists saved playlists.
type Library interface {
	ListPlaylists(ctx context.Context) ([]string, error)
}

// Options are the collaborators of a [Model].
type Options struct {
	Acquire   Acquirer
	Library   Library
	Workspace *workspace.Workspace
	Progress  <-chan tasks.ProgressUpdate // Optional, usually the pool's progress sink
	ExportDir string                      // Markdown exports go to {ExportDir}/{name}
}

// Model represents the console application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	acquire      Acquirer
	library      Library
	ws           *workspace.Workspace
	progress     <-chan tasks.ProgressUpdate
	exportDir    string
	width        int
	height       int
	playlistList list.Model
	trackList    list.Model
	input        textinput.Model
	prompt       prompt
	insertAt     int
	loaded       string
	status       string
	err          error
	help         help.Model
	keys         keyMap
}

func newList(items []list.Item, title string) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.DisableQuitKeybindings()
	return l
}

// NewModel creates a new console model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	in := textinput.New()
	in.CharLimit = 200

	m := &Model{
		ctx:          ctx,
		view:         WorkspaceView,
		acquire:      opts.Acquire,
		library:      opts.Library,
		ws:           opts.Workspace,
		progress:     opts.Progress,
		exportDir:    opts.ExportDir,
		playlistList: newList(nil, "Saved Playlists"),
		trackList:    newList(nil, "Workspace"),
		input:        in,
		help:         help.New(),
		keys:         newKeyMap(),
	}
	if m.exportDir == "" {
		m.exportDir = "."
	}
	m.refreshWorkspace()
	return m
}

// Init fetches saved playlists and starts listening for pool progress.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchPlaylists(), m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-6)
		m.trackList.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case WorkspaceView:
			return m.handleWorkspaceKeys(msg)
		case InputView:
			return m.handleInputKeys(msg)
		case BusyView:
			if msg.Type == tea.KeyCtrlC {
				return m, tea.Quit
			}
			return m, nil
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		d := msg.data.(playlistsFetched)
		if d.err != nil {
			m.err = d.err
			return m, nil
		}
		cmd := m.playlistList.SetItems(playlistItems(d.names))
		return m, cmd

	case MsgTracksAcquired:
		d := msg.data.(tracksAcquired)
		m.view = WorkspaceView
		if d.err != nil {
			m.err = d.err
			return m, nil
		}
		at := m.ws.AddTracks(d.tracks, m.insertAt)
		m.refreshWorkspace()
		m.trackList.Select(at)
		m.err = nil
		m.status = fmt.Sprintf("Added %d tracks at position %d", len(d.tracks), at+1)
		return m, nil

	case MsgProgressUpdate:
		m.status = msg.data.(tasks.ProgressUpdate).Message
		return m, m.waitForProgress()

	case MsgDone:
		d := msg.data.(done)
		m.view = WorkspaceView
		m.err = d.err
		if d.err == nil {
			m.status = d.status
			if d.loaded != "" {
				m.loaded = d.loaded
			}
		}
		m.refreshWorkspace()
		return m, m.fetchPlaylists()
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case PlaylistListView:
		return m.renderList(m.playlistList, m.keys.enter, m.keys.switchTo, m.keys.quit)
	case WorkspaceView:
		return m.renderList(m.trackList,
			m.keys.add, m.keys.remove, m.keys.moveUp, m.keys.moveDown,
			m.keys.save, m.keys.export, m.keys.clear, m.keys.switchTo, m.keys.quit)
	case InputView:
		return m.renderInput()
	case BusyView:
		return m.renderBusy()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.switchTo), key.Matches(msg, m.keys.back):
		m.view = WorkspaceView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			m.view = BusyView
			m.status = fmt.Sprintf("Loading %s...", pl.name)
			return m, m.load(pl.name)
		}
		return m, nil
	}
	return m.updateLists(msg)
}

// selected returns the workspace index of the highlighted track.
func (m *Model) selected() (int, bool) {
	if it, ok := m.trackList.SelectedItem().(trackItem); ok {
		return it.index, true
	}
	return 0, false
}

func (m *Model) handleWorkspaceKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.trackList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.switchTo):
		m.view = PlaylistListView
		return m, nil
	case key.Matches(msg, m.keys.add):
		m.insertAt = m.ws.Len()
		if i, ok := m.selected(); ok {
			m.insertAt = i + 1
		}
		return m, m.ask(promptAdd, "")
	case key.Matches(msg, m.keys.save):
		return m, m.ask(promptSave, m.loaded)
	case key.Matches(msg, m.keys.export):
		return m, m.ask(promptExport, m.loaded)
	case key.Matches(msg, m.keys.clear):
		n := m.ws.Len()
		m.ws.EmptyList()
		m.refreshWorkspace()
		m.status = fmt.Sprintf("Removed %d tracks", n)
		return m, nil
	case key.Matches(msg, m.keys.remove):
		i, ok := m.selected()
		if !ok {
			return m, nil
		}
		t, err := m.ws.RemoveTrack(i)
		m.setResult(err, "Removed %s", formatter.TrackLine(t))
		m.refreshWorkspace()
		m.trackList.Select(min(i, max(m.ws.Len()-1, 0)))
		return m, nil
	case key.Matches(msg, m.keys.moveUp), key.Matches(msg, m.keys.moveDown):
		i, ok := m.selected()
		if !ok {
			return m, nil
		}
		to := i + 1
		if key.Matches(msg, m.keys.moveUp) {
			to = i - 1
		}
		if _, err := m.ws.MoveTrack(i, to); err != nil {
			return m, nil
		}
		m.refreshWorkspace()
		m.trackList.Select(to)
		return m, nil
	}
	return m.updateLists(msg)
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.view = WorkspaceView
		m.input.Blur()
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEnter:
		value := m.input.Value()
		m.input.Blur()
		if value == "" {
			m.view = WorkspaceView
			return m, nil
		}
		m.view = BusyView
		switch m.prompt {
		case promptAdd:
			m.status = fmt.Sprintf("Fetching %q...", value)
			return m, m.fetchTracks(value)
		case promptSave:
			return m, m.save(value)
		case promptExport:
			return m, m.export(value)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) ask(p prompt, value string) tea.Cmd {
	m.prompt = p
	m.view = InputView
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) setResult(err error, format string, args ...any) {
	m.err = err
	if err == nil {
		m.status = fmt.Sprintf(format, args...)
	}
}

func (m *Model) refreshWorkspace() {
	m.trackList.SetItems(trackItems(m.ws.Tracks()))
	m.trackList.Title = fmt.Sprintf("Workspace (%d tracks)", m.ws.Len())
	if m.loaded != "" {
		m.trackList.Title = fmt.Sprintf("Workspace: %s (%d tracks)", m.loaded, m.ws.Len())
	}
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case WorkspaceView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		if m.library == nil {
			return playlistsFetchedMsg(nil, nil)
		}
		names, err := m.library.ListPlaylists(m.ctx)
		return playlistsFetchedMsg(names, err)
	}
}

func (m *Model) fetchTracks(input string) tea.Cmd {
	return func() tea.Msg {
		if m.acquire == nil {
			return tracksAcquiredMsg(nil, fmt.Errorf("%w: no acquisition pool", shared.ErrServiceUnavailable))
		}
		tracks, err := m.acquire.Submit(m.ctx, input)
		return tracksAcquiredMsg(tracks, err)
	}
}

func (m *Model) load(name string) tea.Cmd {
	return func() tea.Msg {
		n, err := m.ws.Load(m.ctx, name)
		return doneMsg(fmt.Sprintf("Loaded %d tracks from %s", n, name), name, err)
	}
}

func (m *Model) save(name string) tea.Cmd {
	return func() tea.Msg {
		name = shared.SanitizePlaylist(name)
		n, err := m.ws.Save(m.ctx, name)
		return doneMsg(fmt.Sprintf("Saved %d tracks as %s", n, name), name, err)
	}
}

func (m *Model) export(name string) tea.Cmd {
	return func() tea.Msg {
		name = shared.SanitizePlaylist(name)
		if name == "" {
			return doneMsg("", "", fmt.Errorf("%w: export name", shared.ErrMissingArgument))
		}
		e := &formatter.Export{Name: name, Tracks: m.ws.Tracks()}
		res, err := formatter.WriteMarkdownExport(e, filepath.Join(m.exportDir, name))
		if err != nil {
			return doneMsg("", "", err)
		}
		return doneMsg(fmt.Sprintf("Exported %d tracks to %s", len(e.Tracks), res.Directory), "", nil)
	}
}

// waitForProgress relays one pool update. A nil or closed channel stops listening.
func (m *Model) waitForProgress() tea.Cmd {
	if m.progress == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-m.progress
		if !ok {
			return nil
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) statusLine() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}
	if m.status == "" {
		return ""
	}
	return styles.status.Render(m.status)
}

func (m *Model) renderList(l list.Model, keys ...key.Binding) string {
	return fmt.Sprintf("%s\n%s\n%s", l.View(), m.statusLine(), m.help.ShortHelpView(keys))
}

func (m *Model) renderInput() string {
	title := styles.title.Render(m.prompt.String())
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.back})
	return fmt.Sprintf("%s\n%s\n\n%s", title, m.input.View(), helpView)
}

func (m *Model) renderBusy() string {
	title := styles.title.Render("Working")
	return fmt.Sprintf("%s\n%s", title, m.statusLine())
}
