package main

import (
	"context"
	"fmt"

	"github.com/sonatura/ytms/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheInvalidate drops the cached stream URL for one video id.
func (r *Runner) CacheInvalidate(ctx context.Context, cmd *cli.Command) error {
	videoID := cmd.StringArg("id")
	if videoID == "" {
		return fmt.Errorf("%w: video id", shared.ErrMissingArgument)
	}

	if r.cache == nil {
		return fmt.Errorf("%w: no storage configured", shared.ErrMissingConfig)
	}

	if err := r.cache.Invalidate(ctx, videoID); err != nil {
		return err
	}

	r.logger.Infof("invalidated cached stream for %s", videoID)
	return r.writePlain("✓ Dropped cached stream for %s\n", videoID)
}

// CacheClear drops everything in local storage.
//
// The store also holds credentials and the catalog session artifact, so this
// is a full reset, not just a cache flush.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	if r.store == nil {
		return fmt.Errorf("%w: no storage configured", shared.ErrMissingConfig)
	}

	if err := r.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear storage: %w", err)
	}

	if r.sessions != nil {
		r.sessions.Reset(ctx)
	}

	r.logger.Info("local storage cleared")
	return r.writePlain("✓ Local storage cleared\n")
}
