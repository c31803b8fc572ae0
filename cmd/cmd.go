// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles first-run setup for config and storage.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and local storage",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with a device code at google.com/device",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "wait",
						Usage: "How long to wait for approval before giving up",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Discard stored credentials",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Check current authentication state",
				Action: r.AuthStatus,
			},
			{
				Name:   "refresh",
				Usage:  "Force an access token refresh",
				Action: r.AuthRefresh,
			},
		},
	}
}

// searchCommand handles catalog search.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search the music catalog",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Search,
	}
}

// streamCommand resolves a playable stream URL for a video id.
func streamCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "Resolve a playable audio stream URL",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "id",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "ios",
				Usage: "Use the anonymous iOS personality instead of the normal chain",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Bypass the stream URL cache",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Stream,
	}
}

// infoCommand fetches video metadata.
func infoCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show metadata for a video id",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "id",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Info,
	}
}

// playlistCommand fetches a playlist and its tracks.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Show a playlist and its tracks",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "id",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Playlist,
	}
}

// homeCommand fetches the home feed shelves.
func homeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "home",
		Usage: "Show the home feed",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Home,
	}
}

// suggestCommand fetches search suggestions.
func suggestCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "suggest",
		Usage: "Show search suggestions for a partial query",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Action: r.Suggest,
	}
}

// relatedCommand fetches related songs for a video id.
func relatedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "related",
		Usage: "Show songs related to a video id",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "id",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Related,
	}
}

// cacheCommand manages stored stream URLs.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the stream URL cache",
		Commands: []*cli.Command{
			{
				Name:  "invalidate",
				Usage: "Drop the cached stream URL for one video id",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Action: r.CacheInvalidate,
			},
			{
				Name:   "clear",
				Usage:  "Drop all stored data, including credentials",
				Action: r.CacheClear,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive playback picks.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Search interactively and resolve a stream for the selection",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Action: r.TUI,
	}
}
