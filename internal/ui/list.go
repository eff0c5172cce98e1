package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/goose/internal/formatter"
	"github.com/desertthunder/goose/internal/models"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = trackItem{}
)

// playlistItem wraps a saved playlist name to implement [list.Item].
type playlistItem struct {
	name string
}

func (i playlistItem) FilterValue() string { return i.name }
func (i playlistItem) Title() string       { return i.name }
func (i playlistItem) Description() string { return "saved playlist" }

// trackItem wraps [models.Track] with its workspace position to implement [list.Item].
type trackItem struct {
	index int
	track models.Track
}

func (i trackItem) FilterValue() string { return i.track.Goose.Track.Name }
func (i trackItem) Title() string {
	return fmt.Sprintf("%3d. %s", i.index+1, formatter.TrackLine(i.track))
}
func (i trackItem) Description() string {
	desc := i.track.Goose.Album.Name
	if u := formatter.TrackURL(i.track); u != "" {
		if desc != "" {
			desc += " • "
		}
		desc += u
	}
	if i.track.Pending() {
		desc = "not saved • " + desc
	}
	return desc
}

func trackItems(tracks []models.Track) []list.Item {
	items := make([]list.Item, len(tracks))
	for i, t := range tracks {
		items[i] = trackItem{index: i, track: t}
	}
	return items
}

func playlistItems(names []string) []list.Item {
	items := make([]list.Item, len(names))
	for i, n := range names {
		items[i] = playlistItem{name: n}
	}
	return items
}
