package main

import (
	"context"
	"fmt"

	"github.com/sonatura/ytms/internal/models"
	"github.com/sonatura/ytms/internal/shared"
	"github.com/urfave/cli/v3"
)

// Stream resolves a playable audio stream URL for a video id.
//
// The default path goes through the cache; --no-cache and --ios talk to the
// resolver directly. iOS results never enter the cache since that
// personality is a manual escape hatch.
func (r *Runner) Stream(ctx context.Context, cmd *cli.Command) error {
	videoID := cmd.StringArg("id")
	if videoID == "" {
		return fmt.Errorf("%w: video id", shared.ErrMissingArgument)
	}

	r.logger.Infof("resolving stream for %s", videoID)

	var resp *models.StreamResponse
	var err error

	switch {
	case cmd.Bool("ios"):
		resp, err = r.resolver.ResolveIOS(ctx, videoID)
	case cmd.Bool("no-cache") || r.cache == nil:
		resp, err = r.resolver.Resolve(ctx, videoID)
	default:
		var url string
		url, err = r.cache.URL(ctx, videoID)
		if err == nil {
			resp = &models.StreamResponse{URL: url}
		}
	}

	if err != nil {
		return fmt.Errorf("failed to resolve stream: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(resp, true)
	}

	if resp.Format.Itag != 0 {
		r.writePlain("itag %d  %s  %d bps  %s\n", resp.Format.Itag, resp.Format.MimeType, resp.Format.Bitrate, resp.Format.AudioQuality)
	}
	return r.writePlain("%s\n", resp.URL)
}

// Info fetches and prints metadata for a video id.
func (r *Runner) Info(ctx context.Context, cmd *cli.Command) error {
	videoID := cmd.StringArg("id")
	if videoID == "" {
		return fmt.Errorf("%w: video id", shared.ErrMissingArgument)
	}

	info, err := r.client.VideoInfo(ctx, videoID, r.authHeaders(ctx))
	if err != nil {
		return fmt.Errorf("failed to fetch video info: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(info, cmd.Bool("pretty"))
	}

	r.writePlain("%s\n", info.Title)
	r.writePlain("  by %s\n", info.Author)
	r.writePlain("  %ds, %s views\n", info.Duration, info.ViewCount)
	return nil
}
