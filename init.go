package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/phobologic/projindex/internal/cache"
	"github.com/phobologic/projindex/internal/indexer"
)

const (
	sentinelStart = "<!-- projindex:start -->"
	sentinelEnd   = "<!-- projindex:end -->"
)

// runInit implements the `projindex init` subcommand, which writes (or
// updates) a section in CLAUDE.md pointing the agent at the project index.
func runInit(args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("projindex init", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var dryRun bool
	flags.BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")

	flags.Usage = func() {
		fmt.Fprintf(stderr, `Usage: projindex init [flags] [path-to-CLAUDE.md]

Write a projindex section to a CLAUDE.md file. The section is wrapped in
sentinel comments so it can be updated in place on subsequent runs without
touching surrounding content. Creates the file if it does not exist.

path-to-CLAUDE.md defaults to ./CLAUDE.md.

Flags:
`)
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return err
	}

	section := generateSection()

	// --dry-run with no path: just print the section itself.
	if dryRun && flags.NArg() == 0 {
		_, _ = fmt.Fprintln(stdout, section)
		return nil
	}

	path := "CLAUDE.md"
	if flags.NArg() > 0 {
		path = flags.Arg(0)
	}

	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	updated := applySection(string(existing), section)

	if dryRun {
		_, _ = fmt.Fprint(stdout, updated)
		return nil
	}

	if err := cache.WriteAtomic(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote projindex section to %s\n", path)
	return nil
}

// generateSection returns the full sentinel-wrapped projindex block.
func generateSection() string {
	body := `## Project index

@` + indexer.OutputName + `

` + "`" + indexer.OutputName + "`" + ` is a dense map of this project, rebuilt by ` + "`projindex`" + `
whenever files change. Run ` + "`projindex`" + ` via the Bash tool if it is missing or
you suspect it is stale; an unchanged tree is detected and left alone.

**Run it:**
` + "```" + `bash
projindex                       # index the project root
projindex -f                    # rebuild even if nothing changed
projindex -l python,go          # parse only these languages
projindex --emit toon           # also print the index as tables
` + "```" + `

**All flags:** ` + "`projindex --help`" + `

**Reading the index:**

- ` + "`f`" + ` maps each file to ` + "`[lang, functions, classes]`" + `. Functions are
  ` + "`name:line:signature:calls:doc`" + ` strings; ` + "`\\:`" + ` is a literal colon.
  A file given only as a letter was listed without parsing.
- ` + "`g`" + ` holds ` + "`[caller, callee]`" + ` edges; ` + "`deps`" + ` holds each file's imports.
- ` + "`d`" + ` lists Markdown section headers; ` + "`dir_purposes`" + ` describes directories.

Check the index before searching for a definition, and read files it names
before exploring the tree.`

	return sentinelStart + "\n" + body + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	// Append, ensuring a blank line separator.
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
