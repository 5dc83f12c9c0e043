// projindex writes a dense signature index of a project to PROJECT_INDEX.json.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/phobologic/projindex/internal/config"
	"github.com/phobologic/projindex/internal/indexer"
	"github.com/phobologic/projindex/internal/lang"
	"github.com/phobologic/projindex/internal/project"
	"github.com/phobologic/projindex/internal/toon"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "init" {
		return runInit(args[1:], stdout, stderr)
	}

	fs := flag.NewFlagSet("projindex", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		force       bool
		langs       string
		maxFileSize int64
		targetSizeK int
		emit        string
		verbose     bool
		quiet       bool
		showVersion bool
	)

	fs.BoolVar(&force, "f", false, "rebuild even if the index is up to date")
	fs.BoolVar(&force, "force", false, "rebuild even if the index is up to date")
	fs.StringVar(&langs, "l", "", "comma-separated languages to parse")
	fs.StringVar(&langs, "langs", "", "comma-separated languages to parse")
	fs.Int64Var(&maxFileSize, "max-file-size", 0, "list files larger than this many bytes without parsing")
	fs.IntVar(&targetSizeK, "target-size-k", 0, "index size budget in thousands of tokens (also $"+config.TargetSizeEnv+")")
	fs.StringVar(&emit, "emit", "none", "also print the index to stdout: none, json or toon")
	fs.BoolVar(&verbose, "v", false, "log debug output")
	fs.BoolVar(&verbose, "verbose", false, "log debug output")
	fs.BoolVar(&quiet, "q", false, "log warnings and errors only")
	fs.BoolVar(&quiet, "quiet", false, "log warnings and errors only")
	fs.BoolVar(&showVersion, "V", false, "show version and exit")
	fs.BoolVar(&showVersion, "version", false, "show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: projindex [flags] [root]
       projindex init [--dry-run] [path-to-CLAUDE.md]

Index the project at root (default: the enclosing project of the current
directory) into %s. The index is rebuilt only when files changed.

Flags:
`, indexer.OutputName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	if showVersion {
		_, _ = fmt.Fprintf(stdout, "projindex %s\n", version)
		return nil
	}
	if emit != "none" && emit != "json" && emit != "toon" {
		return fmt.Errorf("invalid --emit %q (want none, json or toon)", emit)
	}

	logger := newLogger(stderr, verbose, quiet)

	var root string
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving root: %w", err)
		}
		if root, err = project.FindRoot(cwd); err != nil {
			return fmt.Errorf("resolving root: %w", err)
		}
	}

	cfg, err := config.Load(root)
	if err != nil {
		logger.Warn().Err(err).Msg("using default configuration")
	}

	reg := lang.Default()
	if langs != "" {
		cfg.Languages = nil
		for _, name := range strings.Split(langs, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if _, ok := reg.Lookup(name); !ok {
				return fmt.Errorf("unsupported language %q (supported: %s)", name, strings.Join(reg.Names(), ", "))
			}
			cfg.Languages = append(cfg.Languages, name)
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max-file-size":
			cfg.MaxFileSize = maxFileSize
		case "target-size-k":
			cfg.MaxIndexSize = targetSizeK * config.BytesPerKToken
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	ix := indexer.New(cfg, indexer.WithLogger(logger), indexer.WithRegistry(reg))
	res, err := ix.BuildOrReuse(ctx, root, force)
	if err != nil {
		return err
	}
	if !res.Rebuilt {
		logger.Info().Str("path", res.Path).Msg("index up to date")
	}

	switch emit {
	case "json":
		data, err := indexer.Serialize(res.Doc)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, string(data))
	case "toon":
		_, _ = fmt.Fprintln(stdout, toon.Encode(res.Doc))
	}
	return nil
}

// newLogger writes human-readable logs to w, in colour when w is a terminal.
func newLogger(w io.Writer, verbose, quiet bool) zerolog.Logger {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	level := zerolog.InfoLevel
	switch {
	case verbose:
		level = zerolog.DebugLevel
	case quiet:
		level = zerolog.WarnLevel
	}
	out := zerolog.ConsoleWriter{Out: w, NoColor: !color, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-l": true, "--l": true,
	"-langs": true, "--langs": true,
	"-max-file-size": true, "--max-file-size": true,
	"-target-size-k": true, "--target-size-k": true,
	"-emit": true, "--emit": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag package
// can parse them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional, rest []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			rest = append([]string{"--"}, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	// Arguments after "--" stay behind it so they are never read as flags.
	return append(append(flags, positional...), rest...)
}
