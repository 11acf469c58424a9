package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"bicho/config"
	"bicho/models"

	log "github.com/sirupsen/logrus"
)

// ErrUsage is returned when the command line cannot be dispatched
var ErrUsage = errors.New("usage error")

type command struct {
	summary string
	run     func(ctx context.Context, app *App, args []string, out io.Writer) error
}

var commands = map[string]command{
	"houses":       {"list the houses published by the provider", runHouses},
	"registered":   {"list the houses that have local tables", runRegistered},
	"info":         {"show row count and last update of a house", runInfo},
	"sync":         {"fetch recent draws of a lottery into a house", runSync},
	"ingest":       {"load a snapshot file into a house", runIngest},
	"export":       {"write every draw of a house as CSV", runExport},
	"groups":       {"list the groups of a house", runGroups},
	"group-add":    {"register a group for an hour and place", runGroupAdd},
	"group-edit":   {"overwrite a group", runGroupEdit},
	"group-delete": {"remove a group", runGroupDelete},
	"hours":        {"list the hours stored for a house", runHours},
	"places":       {"list the places stored for a house", runPlaces},
	"loss":         {"compute the loss sequence of every group", runLoss},
	"history":      {"list recent ingestions of a house", runHistory},
}

// Run configures logging, wires the application and dispatches one subcommand.
// Results are written to out as JSON, except export which writes CSV.
func Run(ctx context.Context, args []string, out io.Writer) error {
	cfg := config.Get()
	configureLogging(cfg)

	if len(args) == 0 {
		return fmt.Errorf("%w: missing command\n%s", ErrUsage, usage())
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q\n%s", ErrUsage, args[0], usage())
	}

	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.WithError(err).Warn("Error closing database")
		}
	}()

	log.WithFields(log.Fields{
		"command":     args[0],
		"environment": cfg.Environment,
	}).Debug("Running command")

	return cmd.run(ctx, app, args[1:], out)
}

func configureLogging(cfg *config.Config) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func usage() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("usage: bicho <command> [flags]\n\ncommands:\n")
	for _, name := range names {
		fmt.Fprintf(&sb, "  %-13s %s\n", name, commands[name].summary)
	}
	sb.WriteString("  migrate       up | down [N] | status\n")
	return sb.String()
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUsage, fs.Name(), err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: %s: unexpected arguments %v", ErrUsage, fs.Name(), fs.Args())
	}
	return nil
}

// parseHouseFlags parses fs and requires a non-blank -house
func parseHouseFlags(fs *flag.FlagSet, args []string, house *string) error {
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*house) == "" {
		return &models.ValidationError{Field: "house", Message: "-house is required"}
	}
	return nil
}
