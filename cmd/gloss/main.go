// Package main provides the gloss command line tool.
// It highlights glossary terms in HTML pages, previews highlighted text in
// the terminal, manages bookmarked sites and serves the highlight API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/entrhq/gloss/pkg/config"
	"github.com/entrhq/gloss/pkg/logging"
)

const version = "0.1.0" // Version of the gloss tool

// errUsage is returned after a subcommand printed its own usage.
var errUsage = errors.New("invalid usage")

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string) error
}

var commands = []command{
	{"highlight", "Highlight glossary terms in HTML files or live pages", runHighlight},
	{"preview", "Show highlighted text in the terminal", runPreview},
	{"bookmark", "List, add, remove or toggle bookmarked sites", runBookmark},
	{"serve", "Serve the highlight API over HTTP", runServe},
}

func main() {
	flag.Usage = usage
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	// Show version if requested
	if *showVersion {
		fmt.Printf("gloss v%s\n", version)
		return
	}
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	name := flag.Arg(0)
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", name)
		usage()
		os.Exit(2)
	}

	// Create context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
		cancel()
	}()

	if err := cmd.run(ctx, flag.Args()[1:]); err != nil {
		cancel()
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		log.Printf("%s failed: %v", cmd.name, err)
		os.Exit(1)
	}
	cancel()
}

func usage() {
	fmt.Fprintf(os.Stderr, "gloss - Glossary term highlighter\n\n")
	fmt.Fprintf(os.Stderr, "Usage: gloss [options] <command> [command options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  gloss highlight -in page.html -url https://www.linkedin.com/jobs/1 -out out.html\n")
	fmt.Fprintf(os.Stderr, "  gloss highlight -dir site -glob '**/*.html' -out highlighted\n")
	fmt.Fprintf(os.Stderr, "  gloss highlight -render -url example.com\n")
	fmt.Fprintf(os.Stderr, "  gloss preview \"Our REST API runs on Kubernetes\"\n")
	fmt.Fprintf(os.Stderr, "  gloss bookmark toggle https://www.linkedin.com\n")
	fmt.Fprintf(os.Stderr, "  gloss serve -config gloss.yaml\n")
}

// newFlagSet creates a subcommand flag set with the shared -config flag.
func newFlagSet(name, synopsis string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file (YAML)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gloss %s %s\n\nOptions:\n", name, synopsis)
		fs.PrintDefaults()
	}
	return fs, configPath
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	// The flag set has already printed the error and usage.
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

// loadConfig reads the configuration file and applies its log verbosity to
// the loggers created afterwards. The returned logger is shared by the
// command's components.
func loadConfig(path, component string) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.SetDefaultLevel(cfg.LogLevel())

	logger, err := logging.NewLogger(component)
	if err != nil {
		logger.Warnf("Failed to initialize %s logger, using stderr fallback: %v", component, err)
	}
	logger.SetLevel(cfg.LogLevel())
	return cfg, logger, nil
}

// normalizeURL adds an https scheme to bare hostnames.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	return "https://" + raw
}
