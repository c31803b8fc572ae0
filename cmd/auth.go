package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sonatura/ytms/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin starts a device-code login and waits for approval.
//
// The code and verification URL print immediately; the command then blocks on
// the background poll until the user approves, the poll fails terminally, or
// the optional --wait deadline passes.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if r.auth == nil {
		return fmt.Errorf("%w: authentication is not configured", shared.ErrMissingConfig)
	}

	login, err := r.auth.Login(ctx)
	if err != nil {
		return fmt.Errorf("failed to start login: %w", err)
	}

	r.writePlain("Visit %s\n", login.VerificationURL)
	r.writePlain("Enter code: %s\n", login.Code)
	r.writePlainln("Waiting for approval...")

	var deadline <-chan time.Time
	if wait := cmd.Duration("wait"); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case err := <-login.Done():
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
	case <-deadline:
		login.Cancel()
		<-login.Done()
		return fmt.Errorf("%w: approval did not arrive in time", shared.ErrTimeout)
	case <-ctx.Done():
		login.Cancel()
		<-login.Done()
		return ctx.Err()
	}

	r.logger.Info("authentication successful")
	return r.writePlain("✓ Signed in\n")
}

// AuthLogout discards stored credentials.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if r.auth == nil {
		return fmt.Errorf("%w: authentication is not configured", shared.ErrMissingConfig)
	}

	r.auth.Logout(ctx)
	return r.writePlain("✓ Signed out\n")
}

// AuthStatus reports whether usable credentials are present.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if r.auth == nil {
		return fmt.Errorf("%w: authentication is not configured", shared.ErrMissingConfig)
	}

	if r.auth.IsLoggedIn() {
		return r.writePlain("Authentication: ✓ Signed in\n")
	}
	return r.writePlain("Authentication: ✗ Not signed in\n")
}

// AuthRefresh forces an access token refresh.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	if r.auth == nil {
		return fmt.Errorf("%w: authentication is not configured", shared.ErrMissingConfig)
	}

	if err := r.auth.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	r.logger.Info("access token refreshed")
	return r.writePlain("✓ Token refreshed\n")
}
