package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/castwell/airchive/internal/archive"
	"github.com/castwell/airchive/internal/feed"
	"github.com/castwell/airchive/internal/repositories"
	"github.com/castwell/airchive/internal/shared"
	"github.com/castwell/airchive/internal/spotify"
	"github.com/castwell/airchive/internal/store"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	feed    archive.Feed
	remote  archive.PlaylistService
	oauth   *spotify.Client
	logger  *log.Logger
	output  io.Writer
	journal archive.Journal
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config  *shared.Config
	Feed    archive.Feed
	Spotify *spotify.Client
	Remote  archive.PlaylistService
	Journal archive.Journal
	Logger  *log.Logger
	Output  io.Writer
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
	if opts.Feed == nil {
		opts.Feed = feed.NewClient(opts.Config.Feed.BaseURL, nil)
	}
	if opts.Remote == nil && opts.Spotify != nil {
		opts.Remote = opts.Spotify
	}

	return &Runner{
		config:  opts.Config,
		feed:    opts.Feed,
		remote:  opts.Remote,
		oauth:   opts.Spotify,
		logger:  opts.Logger,
		output:  opts.Output,
		journal: opts.Journal,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, archiveCommand, spotifyCommand, feedCommand, historyCommand, statusCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// newArchiver builds the cycle engine from the runner's dependencies.
func (r *Runner) newArchiver() (*archive.Archiver, func(), error) {
	if r.remote == nil {
		return nil, nil, fmt.Errorf("%w: configure Spotify credentials first (see airchive spotify auth)", shared.ErrMissingCredentials)
	}

	ledger := store.NewFileLedger(r.config.Archive.LedgerPath, r.logger)
	state := store.NewFileState(r.config.Archive.StatePath, r.logger)

	journal := r.journal
	cleanup := func() {}
	if journal == nil {
		if db, err := r.openJournalDB(); err != nil {
			r.logger.Warn("journal database unavailable, continuing without journal", "error", err)
		} else {
			journal = repositories.NewJournalRepository(db)
			cleanup = func() { db.Close() }
		}
	}

	archiver := archive.NewArchiver(r.feed, r.remote, ledger, state, journal, r.logger, archive.Opts{
		Channel:        r.config.Feed.Channel,
		PlaylistPrefix: r.config.Archive.PlaylistPrefix,
		MaxCapacity:    r.config.Archive.MaxCapacity,
		RotationMargin: r.config.Archive.RotationMargin,
		Public:         r.config.Archive.Public,
	})

	return archiver, cleanup, nil
}

// openJournalDB opens the sqlite journal, running migrations if needed.
func (r *Runner) openJournalDB() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
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
