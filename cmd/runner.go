package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/sonatura/ytms/internal/auth"
	"github.com/sonatura/ytms/internal/cache"
	"github.com/sonatura/ytms/internal/innertube"
	"github.com/sonatura/ytms/internal/resolver"
	"github.com/sonatura/ytms/internal/session"
	"github.com/sonatura/ytms/internal/shared"
	"github.com/sonatura/ytms/internal/store"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	store      store.Store
	auth       *auth.Manager
	client     *innertube.Client
	sessions   *session.Manager
	resolver   *resolver.Resolver
	cache      *cache.StreamCache
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Store      store.Store
	Auth       *auth.Manager
	Client     *innertube.Client
	Sessions   *session.Manager
	Resolver   *resolver.Resolver
	Cache      *cache.StreamCache
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Client == nil {
		opts.Client = innertube.NewClient(innertube.ClientOpts{
			HTTPClient: opts.HTTPClient,
			Logger:     opts.Logger,
			Provider:   opts.Config.Provider,
		})
	}
	if opts.Resolver == nil {
		// Typed nils must not become non-nil interfaces.
		ropts := resolver.ResolverOpts{Client: opts.Client, Logger: opts.Logger}
		if opts.Auth != nil {
			ropts.Auth = opts.Auth
		}
		if opts.Sessions != nil {
			ropts.Sessions = opts.Sessions
		}
		opts.Resolver = resolver.NewResolver(ropts)
	}
	if opts.Cache == nil && opts.Store != nil {
		opts.Cache = cache.NewStreamCache(cache.StreamCacheOpts{
			Store:    opts.Store,
			Resolver: opts.Resolver,
			TTL:      opts.Config.Cache.TTL(),
			Logger:   opts.Logger,
		})
	}

	return &Runner{
		config:     opts.Config,
		store:      opts.Store,
		auth:       opts.Auth,
		client:     opts.Client,
		sessions:   opts.Sessions,
		resolver:   opts.Resolver,
		cache:      opts.Cache,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger swaps the runner's logger, used when the TUI owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// authHeaders returns credential headers best-effort; unauthenticated or
// failed lookups fall back to anonymous.
func (r *Runner) authHeaders(ctx context.Context) map[string]string {
	if r.auth == nil {
		return nil
	}
	headers, err := r.auth.AuthHeaders(ctx)
	if err != nil {
		r.logger.Warnf("continuing anonymously: %v", err)
		return nil
	}
	return headers
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, searchCommand, streamCommand, infoCommand, playlistCommand, homeCommand, suggestCommand, relatedCommand, cacheCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
