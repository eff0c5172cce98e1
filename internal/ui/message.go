package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the console (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgTracksAcquired
	MsgProgressUpdate
	MsgDone
)

type playlistsFetched struct {
	names []string
	err   error
}

type tracksAcquired struct {
	tracks []models.Track
	err    error
}

// done reports the outcome of a store or file operation. loaded names the playlist the
// workspace now mirrors, if any.
type done struct {
	status string
	loaded string
	err    error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(names []string, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsFetched{names, err}}
}

// tracksAcquiredMsg is the constructor for [MsgTracksAcquired]
func tracksAcquiredMsg(tracks []models.Track, err error) Msg {
	return Msg{kind: MsgTracksAcquired, data: tracksAcquired{tracks, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// doneMsg is the constructor for [MsgDone]
func doneMsg(status, loaded string, err error) Msg {
	return Msg{kind: MsgDone, data: done{status, loaded, err}}
}
