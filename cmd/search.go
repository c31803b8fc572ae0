package main

import (
	"context"
	"fmt"

	"github.com/sonatura/ytms/internal/shared"
	"github.com/urfave/cli/v3"
)

// Search queries the music catalog and prints the results.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	r.logger.Infof("searching for %q", query)

	songs, err := r.client.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(songs, cmd.Bool("pretty"))
	}

	if len(songs) == 0 {
		return r.writePlain("No results for %q\n", query)
	}

	for i, song := range songs {
		duration := song.Duration
		if duration == "" {
			duration = "--:--"
		}
		r.writePlain("%2d. %s • %s (%s)  [%s]\n", i+1, song.Title, song.Artist, duration, song.ID)
	}
	return nil
}

// Playlist fetches a playlist and prints its tracks.
func (r *Runner) Playlist(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.StringArg("id")
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	playlist, err := r.client.Playlist(ctx, playlistID, r.authHeaders(ctx))
	if err != nil {
		return fmt.Errorf("failed to fetch playlist: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlist, true)
	}

	r.writePlain("%s (%d tracks)\n", playlist.Title, playlist.TrackCount)
	if playlist.Description != "" {
		r.writePlain("%s\n", playlist.Description)
	}
	for i, song := range playlist.Tracks {
		duration := song.Duration
		if duration == "" {
			duration = "--:--"
		}
		r.writePlain("%2d. %s • %s (%s)  [%s]\n", i+1, song.Title, song.Artist, duration, song.ID)
	}
	return nil
}

// Home prints the home feed shelves.
func (r *Runner) Home(ctx context.Context, cmd *cli.Command) error {
	shelves, err := r.client.HomeFeed(ctx, r.authHeaders(ctx))
	if err != nil {
		return fmt.Errorf("failed to fetch home feed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(shelves, true)
	}

	if len(shelves) == 0 {
		return r.writePlain("Home feed is empty\n")
	}

	for _, shelf := range shelves {
		if shelf.Title != "" {
			r.writePlain("%s\n", shelf.Title)
		}
		for _, song := range shelf.Songs {
			r.writePlain("  %s • %s  [%s]\n", song.Title, song.Artist, song.ID)
		}
	}
	return nil
}

// Suggest prints search suggestions for a partial query.
func (r *Runner) Suggest(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	suggestions, err := r.client.Suggestions(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to fetch suggestions: %w", err)
	}

	for _, s := range suggestions {
		r.writePlain("%s\n", s)
	}
	return nil
}

// Related prints songs related to a video id.
func (r *Runner) Related(ctx context.Context, cmd *cli.Command) error {
	videoID := cmd.StringArg("id")
	if videoID == "" {
		return fmt.Errorf("%w: video id", shared.ErrMissingArgument)
	}

	songs, err := r.client.Related(ctx, videoID, nil)
	if err != nil {
		return fmt.Errorf("failed to fetch related songs: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(songs, true)
	}

	for i, song := range songs {
		r.writePlain("%2d. %s • %s  [%s]\n", i+1, song.Title, song.Artist, song.ID)
	}
	return nil
}
