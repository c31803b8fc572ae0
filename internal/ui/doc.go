// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a two-view workflow for finding something to play:
//  1. [SongListView] : Browse catalog search results
//  2. [StreamView] : Show the resolved stream URL and format for a selection
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Stream resolution runs inside a tea.Cmd so the list stays responsive while the
// resolver negotiates with the provider.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with contextual
// help displayed via charmbracelet/bubbles/help.
package ui
