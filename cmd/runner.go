package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/formatter"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/shared"
	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
)

var (
	titleColor = color.New(color.FgHiMagenta, color.Bold)
	mutedColor = color.New(color.FgHiBlack)
	warnColor  = color.New(color.FgHiYellow)
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	tracks     models.TrackStore
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Tracks     models.TrackStore // Used instead of connecting to the document store
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
	if opts.ConfigPath == "" {
		opts.ConfigPath = "config.toml"
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		tracks:     opts.Tracks,
	}
}

// SetLogger replaces the logger, e.g. to keep log lines out of a full-screen UI.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, botCommand, serveCommand, acquireCommand, migrateCommand, playlistCommand, statsCommand, consoleCommand,
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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", titleColor.Sprint(title))
	r.writePlain("═══════════════════════════════════════\n")
}

// writeTracks lists tracks one per line, numbered from 1. Placeholders are flagged.
func (r *Runner) writeTracks(tracks []models.Track) {
	for i, t := range tracks {
		if t.Status.Failed && t.Goose.ID == "" {
			r.writePlain("%3d. %s\n", i+1, warnColor.Sprintf("not found: %s", t.Status.Reason))
			continue
		}
		r.writePlain("%3d. %s\n", i+1, formatter.TrackLine(t))
		if url := formatter.TrackURL(t); url != "" {
			r.writePlain("     %s\n", mutedColor.Sprint(url))
		}
	}
}
