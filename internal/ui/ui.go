package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sonatura/ytms/internal/models"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SongListView ViewState = iota
	StreamView
)

// Streamer resolves a playable URL for a selected song.
type Streamer interface {
	URL(ctx context.Context, videoID string) (string, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	streamer Streamer
	width    int
	height   int
	songList list.Model
	selected *models.Song
	url      string
	err      error
	help     help.Model
	keys     keyMap
}

// keyMap defines the key bindings for the TUI.
type keyMap struct {
	up    key.Binding
	down  key.Binding
	enter key.Binding
	back  key.Binding
	quit  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "play"),
		),
		back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter},
		{k.back, k.quit},
	}
}

// songItem wraps [models.Song] to implement list.Item.
type songItem struct {
	song models.Song
}

func (i songItem) FilterValue() string { return i.song.Title }
func (i songItem) Title() string       { return i.song.Title }
func (i songItem) Description() string {
	desc := i.song.Artist
	if i.song.Duration != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.song.Duration)
	}
	return desc
}

type streamResolvedMsg struct {
	url string
	err error
}

// NewModel creates a new TUI model over a set of search results.
func NewModel(ctx context.Context, songs []models.Song, streamer Streamer, query string) *Model {
	items := make([]list.Item, len(songs))
	for i, song := range songs {
		items[i] = songItem{song: song}
	}

	songList := list.New(items, list.NewDefaultDelegate(), 0, 0)
	songList.Title = fmt.Sprintf("Results for '%s'", query)

	return &Model{
		ctx:      ctx,
		view:     SongListView,
		streamer: streamer,
		songList: songList,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init implements tea.Model; the song list arrives pre-populated.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.songList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case SongListView:
			return m.handleSongListKeys(msg)
		case StreamView:
			return m.handleStreamKeys(msg)
		}

	case streamResolvedMsg:
		m.url = msg.url
		m.err = msg.err
		m.view = StreamView
		return m, nil
	}

	var cmd tea.Cmd
	m.songList, cmd = m.songList.Update(msg)
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case SongListView:
		return m.renderSongList()
	case StreamView:
		return m.renderStream()
	default:
		return ""
	}
}

// Selected returns the song chosen before quit, if any.
func (m *Model) Selected() *models.Song {
	return m.selected
}

// URL returns the resolved stream URL for the selection, if any.
func (m *Model) URL() string {
	return m.url
}

func (m *Model) handleSongListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		selected := m.songList.SelectedItem()
		if selected != nil {
			if item, ok := selected.(songItem); ok {
				m.selected = &item.song
				return m, m.resolveStream(item.song.ID)
			}
		}
	}

	var cmd tea.Cmd
	m.songList, cmd = m.songList.Update(msg)
	return m, cmd
}

func (m *Model) handleStreamKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "enter":
		return m, tea.Quit
	case "esc":
		m.view = SongListView
		m.selected = nil
		m.url = ""
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) resolveStream(videoID string) tea.Cmd {
	return func() tea.Msg {
		url, err := m.streamer.URL(m.ctx, videoID)
		return streamResolvedMsg{url: url, err: err}
	}
}

func (m *Model) renderSongList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.songList.View(), helpView)
}

func (m *Model) renderStream() string {
	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	if m.err != nil {
		body := styles.err.Render(fmt.Sprintf("Stream resolution failed: %v", m.err))
		return fmt.Sprintf("%s\n\n%s", body, helpView)
	}

	title := styles.title.Render(fmt.Sprintf("%s • %s", m.selected.Title, m.selected.Artist))
	body := fmt.Sprintf("%s\n%s", styles.ok.Render("Stream ready"), m.url)
	return fmt.Sprintf("%s\n%s\n\n%s", title, body, helpView)
}
