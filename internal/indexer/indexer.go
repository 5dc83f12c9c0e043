// Package indexer builds a project index, or reuses the stored one when
// nothing under the root has changed.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/phobologic/projindex/internal/cache"
	"github.com/phobologic/projindex/internal/config"
	"github.com/phobologic/projindex/internal/dense"
	"github.com/phobologic/projindex/internal/discover"
	"github.com/phobologic/projindex/internal/graph"
	"github.com/phobologic/projindex/internal/lang"
	"github.com/phobologic/projindex/internal/model"
	"github.com/phobologic/projindex/internal/parse"
	"github.com/phobologic/projindex/internal/project"
	"github.com/phobologic/projindex/internal/purpose"
	"github.com/phobologic/projindex/internal/ranking"
)

// OutputName is the index file written at the project root.
const OutputName = "PROJECT_INDEX.json"

const progressEvery = 100

// Indexer builds indexes with a fixed configuration.
type Indexer struct {
	cfg    config.Config
	log    zerolog.Logger
	reg    *lang.Registry
	now    func() time.Time
	output string
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(ix *Indexer) { ix.log = l }
}

// WithRegistry replaces the built-in language registry.
func WithRegistry(r *lang.Registry) Option {
	return func(ix *Indexer) { ix.reg = r }
}

// WithClock sets the time source for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(ix *Indexer) { ix.now = now }
}

// WithOutput changes the index file name under the root.
func WithOutput(name string) Option {
	return func(ix *Indexer) { ix.output = name }
}

// New returns an Indexer for cfg.
func New(cfg config.Config, opts ...Option) *Indexer {
	ix := &Indexer{
		cfg:    cfg,
		log:    zerolog.Nop(),
		reg:    lang.Default(),
		now:    time.Now,
		output: OutputName,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Result describes one BuildOrReuse call.
type Result struct {
	Doc     *model.IndexDocument
	Rebuilt bool
	Reason  cache.Reason
	// Path is the index file; Bytes is its size.
	Path  string
	Bytes int
	// Fit reports the size-budget steps applied to a rebuilt index.
	Fit ranking.Report
}

// BuildOrReuse returns the index for root. The stored index is returned
// unchanged, without being rewritten, when force is false and its
// fingerprint matches the current tree and settings. Otherwise a new index
// is built and written atomically; a failed write is returned as an error
// wrapping cache.ErrWriteFailure. Problems with individual files never fail
// the build.
func (ix *Indexer) BuildOrReuse(ctx context.Context, root string, force bool) (*Result, error) {
	listing, err := discover.Walk(ctx, root, discover.Options{
		IgnoreDirs:      ix.cfg.IgnoreDirs,
		ExcludePatterns: ix.cfg.ExcludePatterns,
		MaxFiles:        ix.cfg.MaxFiles,
		MaxTreeDepth:    ix.cfg.MaxTreeDepth,
		MaxTreeEntries:  ix.cfg.MaxTreeEntries,
		Artifacts:       []string{ix.output},
	})
	if err != nil {
		return nil, fmt.Errorf("walking project: %w", err)
	}
	ix.log.Debug().
		Int("files", len(listing.Entries)).
		Int("dirs", listing.DirCount).
		Int("skipped", listing.Skipped).
		Msg("walked project")
	if listing.Dropped > 0 {
		ix.log.Warn().Int("dropped", listing.Dropped).Int("max_files", ix.cfg.MaxFiles).Msg("file limit reached")
	}

	outPath := filepath.Join(listing.Root, ix.output)
	settings := append(ix.cfg.Settings(), "registry="+strings.Join(ix.reg.Names(), ","))
	fp := cache.Fingerprint(listing.Entries, settings, config.Path(listing.Root))

	decision := cache.Decide(outPath, fp, force)
	if decision.Err != nil {
		ix.log.Warn().Err(decision.Err).Msg("ignoring existing index")
	}
	if !decision.Rebuild {
		res := &Result{Doc: decision.Doc, Reason: decision.Reason, Path: outPath}
		if info, err := os.Stat(outPath); err == nil {
			res.Bytes = int(info.Size())
		}
		ix.log.Debug().Str("path", outPath).Msg("index up to date")
		return res, nil
	}
	ix.log.Info().Str("reason", string(decision.Reason)).Int("files", len(listing.Entries)).Msg("building index")

	doc, err := ix.Build(ctx, listing, fp)
	if err != nil {
		return nil, err
	}

	report, err := ranking.Fit(doc, ix.cfg.MaxIndexSize, dense.Encode, ix.reg.NameForPath)
	if err != nil {
		return nil, err
	}
	if len(report.Steps) > 0 {
		ix.log.Warn().
			Str("from", humanize.Bytes(uint64(report.InitialSize))).
			Str("to", humanize.Bytes(uint64(report.FinalSize))).
			Strs("steps", report.Steps).
			Int("omitted", report.Omitted).
			Msg("index compressed to fit size limit")
	}

	data, err := Serialize(doc)
	if err != nil {
		return nil, err
	}
	if err := cache.WriteAtomic(outPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", ix.output, err)
	}

	ix.log.Info().
		Str("path", outPath).
		Str("size", humanize.Bytes(uint64(len(data)))).
		Int("files", doc.Stats.TotalFiles).
		Int("markdown", doc.Stats.MarkdownFiles).
		Int("edges", len(doc.CallGraph)).
		Msg("index written")

	return &Result{
		Doc:     doc,
		Rebuilt: true,
		Reason:  decision.Reason,
		Path:    outPath,
		Bytes:   len(data),
		Fit:     report,
	}, nil
}

// Build parses every entry of listing into a new document. It is the
// rebuild half of BuildOrReuse and does not apply the size budget.
func (ix *Indexer) Build(ctx context.Context, listing *discover.Listing, fingerprint string) (*model.IndexDocument, error) {
	doc := &model.IndexDocument{
		GeneratedAt: ix.now().UTC(),
		Root:        listing.Root,
		Fingerprint: fingerprint,
		Tree:        listing.Tree,
		Files:       make(map[string]model.FileRecord),
	}
	opts := parse.Options{MaxFileSize: ix.cfg.MaxFileSize, Languages: ix.cfg.LanguageSet()}

	for i, e := range listing.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 && i%progressEvery == 0 {
			ix.log.Debug().Int("done", i).Int("total", len(listing.Entries)).Msg("indexing")
		}

		if e.Markdown() {
			doc.Stats.MarkdownFiles++
			ix.indexMarkdown(doc, e)
			continue
		}

		out := parse.Path(ix.reg, e.Abs, e.Path, e.Size, opts)
		if out.Err != nil {
			ix.log.Warn().Err(out.Err).Msg("listed without signatures")
		}
		doc.Files[e.Path] = out.Record
	}

	graph.ResolveCalls(doc.Files)
	doc.CallGraph = graph.BuildCallGraph(doc.Files)
	doc.Dependencies = graph.BuildDependencies(doc.Files)
	doc.DirectoryPurposes = purpose.Directories(listing.Dirs)
	if bs := project.Detect(listing.Root); bs.Recognized() {
		doc.BuildSystem = bs.Kind.String()
	}

	doc.RecountStats(ix.reg.NameForPath)
	doc.Stats.TotalDirectories = listing.DirCount
	return doc, nil
}

func (ix *Indexer) indexMarkdown(doc *model.IndexDocument, e discover.Entry) {
	if ix.cfg.MaxFileSize > 0 && e.Size > ix.cfg.MaxFileSize {
		return
	}
	src, err := os.ReadFile(e.Abs)
	if err != nil {
		ix.log.Warn().Err(err).Str("file", e.Path).Msg("skipping document")
		return
	}
	outline := lang.ParseMarkdown(src)
	if outline.Empty() {
		return
	}
	if len(outline.Hints) > 0 {
		ix.log.Debug().Str("file", e.Path).Strs("hints", outline.Hints).Msg("architecture hints")
	}
	if len(outline.Sections) == 0 {
		return
	}
	if doc.Documentation == nil {
		doc.Documentation = make(map[string][]string)
	}
	doc.Documentation[e.Path] = outline.Sections
}

// Serialize encodes doc in the dense on-disk format.
func Serialize(doc *model.IndexDocument) ([]byte, error) {
	return dense.Encode(doc)
}

// Deserialize decodes data written by Serialize.
func Deserialize(data []byte) (*model.IndexDocument, error) {
	return dense.Decode(data)
}
