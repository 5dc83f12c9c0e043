// Package cache decides whether a stored index can be reused and writes new
// ones atomically.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/buger/jsonparser"

	"github.com/phobologic/projindex/internal/dense"
	"github.com/phobologic/projindex/internal/discover"
	"github.com/phobologic/projindex/internal/model"
)

var (
	// ErrCacheCorrupt reports a stored index that cannot be decoded.
	ErrCacheCorrupt = errors.New("cache corrupt")
	// ErrWriteFailure reports an index that could not be persisted.
	ErrWriteFailure = errors.New("write failure")
)

// Reason explains a reuse decision.
type Reason string

const (
	ReasonForced  Reason = "forced"
	ReasonMissing Reason = "no existing index"
	ReasonCorrupt Reason = "existing index unreadable"
	ReasonChanged Reason = "files changed"
	ReasonFresh   Reason = "up to date"
)

// Decision is the outcome of Decide. Doc is set only when Rebuild is false.
type Decision struct {
	Rebuild bool
	Reason  Reason
	Doc     *model.IndexDocument
	// Err carries the load failure behind ReasonCorrupt.
	Err error
}

// Fingerprint hashes the path, modification time and size of every entry,
// the settings lines that shape the index (filters, limits), and any extra
// files that exist (such as the config file). Entry and settings order does
// not matter.
func Fingerprint(entries []discover.Entry, settings []string, extra ...string) string {
	lines := make([]string, 0, len(entries)+len(settings)+len(extra))
	for _, e := range entries {
		lines = append(lines, statLine(e.Path, e.ModTime.UnixNano(), e.Size))
	}
	for _, s := range settings {
		lines = append(lines, "@opts:"+s)
	}
	for _, p := range extra {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		lines = append(lines, statLine("@"+filepath.Base(p), info.ModTime().UnixNano(), info.Size()))
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func statLine(path string, mtime, size int64) string {
	return path + ":" + strconv.FormatInt(mtime, 10) + ":" + strconv.FormatInt(size, 10)
}

func decode(data []byte) (*model.IndexDocument, error) {
	doc, err := dense.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	return doc, nil
}

// StoredFingerprint returns the fingerprint recorded in an encoded index
// without decoding the rest of it.
func StoredFingerprint(data []byte) (string, error) {
	fp, err := jsonparser.GetString(data, "fp")
	if err != nil {
		return "", fmt.Errorf("%w: fingerprint: %v", ErrCacheCorrupt, err)
	}
	return fp, nil
}

// Decide reports whether the index at path must be rebuilt for the given
// fingerprint. A reusable document is returned untouched in Decision.Doc.
func Decide(path, fingerprint string, force bool) Decision {
	if force {
		return Decision{Rebuild: true, Reason: ReasonForced}
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Decision{Rebuild: true, Reason: ReasonMissing}
	}
	if err != nil {
		return Decision{Rebuild: true, Reason: ReasonCorrupt, Err: fmt.Errorf("reading index: %w", err)}
	}
	stored, err := StoredFingerprint(data)
	if err != nil {
		return Decision{Rebuild: true, Reason: ReasonCorrupt, Err: err}
	}
	if stored != fingerprint {
		return Decision{Rebuild: true, Reason: ReasonChanged}
	}
	doc, err := decode(data)
	if err != nil {
		return Decision{Rebuild: true, Reason: ReasonCorrupt, Err: err}
	}
	return Decision{Reason: ReasonFresh, Doc: doc}
}

// WriteAtomic writes data to path through a temporary file in the same
// directory, so readers see either the old file or the complete new one.
// The temporary file is named after path with a ".tmp" suffix and removed
// on failure.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: resolving path: %v", ErrWriteFailure, err)
	}
	dir := filepath.Dir(absPath)

	f, err := os.CreateTemp(dir, filepath.Base(absPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", ErrWriteFailure, err)
	}
	tempPath := f.Name()

	success := false
	defer func() {
		if !success {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("%w: writing: %v", ErrWriteFailure, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: syncing: %v", ErrWriteFailure, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file: %v", ErrWriteFailure, err)
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		return fmt.Errorf("%w: setting permissions: %v", ErrWriteFailure, err)
	}
	if err := os.Rename(tempPath, absPath); err != nil {
		return fmt.Errorf("%w: renaming: %v", ErrWriteFailure, err)
	}

	success = true
	return nil
}
