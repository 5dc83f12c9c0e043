// Package parse turns one source file into a FileRecord. Failures of any
// kind downgrade the file to a listed-only record instead of aborting.
package parse

import (
	"errors"
	"fmt"
	"os"
	"path"
	"unicode/utf8"

	"github.com/phobologic/projindex/internal/lang"
	"github.com/phobologic/projindex/internal/model"
)

// ErrFileUnreadable reports a file that could not be read or is not UTF-8.
var ErrFileUnreadable = errors.New("file unreadable")

// ErrFileTooLarge reports a file over the configured size ceiling.
var ErrFileTooLarge = errors.New("file too large")

// Options control which files are parsed.
type Options struct {
	// MaxFileSize is the largest file, in bytes, that is parsed. Zero means
	// no limit.
	MaxFileSize int64
	// Languages restricts parsing to the named languages. Nil parses all.
	Languages map[string]bool
}

// Outcome is the result of processing one file. Err is non-nil when a
// parseable file was downgraded to listed-only.
type Outcome struct {
	Record model.FileRecord
	Err    error
}

// File parses src as the file at rel. The record is always usable.
func File(reg *lang.Registry, rel string, src []byte, opts Options) Outcome {
	l := reg.ForExtension(path.Ext(rel))
	if l == nil {
		return Outcome{Record: model.FileRecord{Tag: model.TagUnknown}}
	}
	listed := model.FileRecord{Tag: l.Tag}
	if opts.Languages != nil && !opts.Languages[l.Name] {
		return Outcome{Record: listed}
	}
	if opts.MaxFileSize > 0 && int64(len(src)) > opts.MaxFileSize {
		return Outcome{Record: listed, Err: fmt.Errorf("%s: %w (%d bytes)", rel, ErrFileTooLarge, len(src))}
	}
	if !utf8.Valid(src) {
		return Outcome{Record: listed, Err: fmt.Errorf("%s: %w: invalid UTF-8", rel, ErrFileUnreadable)}
	}

	rec, err := l.Parser.Parse(src)
	if err != nil {
		return Outcome{Record: listed, Err: fmt.Errorf("%s: %w", rel, err)}
	}
	rec.Tag = l.Tag
	rec.Parsed = true
	return Outcome{Record: rec}
}

// Path reads the file at abs and parses it as rel. Files over the size
// ceiling are not read.
func Path(reg *lang.Registry, abs, rel string, size int64, opts Options) Outcome {
	l := reg.ForExtension(path.Ext(rel))
	if l == nil {
		return Outcome{Record: model.FileRecord{Tag: model.TagUnknown}}
	}
	if opts.Languages != nil && !opts.Languages[l.Name] {
		return Outcome{Record: model.FileRecord{Tag: l.Tag}}
	}
	if opts.MaxFileSize > 0 && size > opts.MaxFileSize {
		return Outcome{
			Record: model.FileRecord{Tag: l.Tag},
			Err:    fmt.Errorf("%s: %w (%d bytes)", rel, ErrFileTooLarge, size),
		}
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return Outcome{
			Record: model.FileRecord{Tag: l.Tag},
			Err:    fmt.Errorf("%s: %w: %v", rel, ErrFileUnreadable, err),
		}
	}
	return File(reg, rel, src, opts)
}
