// Package ui implements the playlist console, a terminal workspace editor using bubbletea's Elm architecture.
//
// The console offers the same editing as /playlist in Discord without a gateway:
//  1. [PlaylistListView] : Browse saved playlists and load one into the workspace
//  2. [WorkspaceView] : Reorder, remove and add tracks, then save or export
//  3. [InputView] : Prompt for a query, playlist name or export name
//  4. [BusyView] : Wait on the acquisition pool, showing its progress updates
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the task pool, providing non-blocking status reporting during acquisition.
//
// Keyboard navigation uses vim-style bindings (j/k, J/K, enter, esc, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
