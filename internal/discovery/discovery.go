// Package discovery finds the dated inputs in a directory and decides which
// of them still need a pipeline run. Both steps read the filesystem on every
// call and keep no state between calls.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/layout"
	apperrors "github.com/Adithya-Monish-Kumar-K/docpipe/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/logger"
)

// Input is an eligible input file.
type Input struct {
	Path    string
	Date    time.Time
	ModTime time.Time
}

// Name returns the input's base name.
func (in Input) Name() string {
	return filepath.Base(in.Path)
}

// ParseName reports the calendar date encoded in name when name is exactly
// eight digits, a dot and ext, and the digits form a real date.
func ParseName(name, ext string) (time.Time, bool) {
	re, err := namePattern(ext)
	if err != nil {
		return time.Time{}, false
	}
	m := re.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	date, err := time.Parse(layout.StemLayout, m[1])
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// ParseDate validates a bare YYYYMMDD string.
func ParseDate(s string) (time.Time, error) {
	if len(s) != len(layout.StemLayout) {
		return time.Time{}, fmt.Errorf("date %q must have the form YYYYMMDD", s)
	}
	date, err := time.Parse(layout.StemLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is not a calendar date: %w", s, err)
	}
	return date, nil
}

func namePattern(ext string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(\d{8})\.` + regexp.QuoteMeta(ext) + `$`)
}

// Eligible lists dir and returns the regular files whose names match pattern
// and encode a valid date with extension ext, sorted by file name. pattern
// applies to base names only, so dir is taken literally. Names that do not
// qualify are skipped silently. A missing or unreadable directory is an
// ErrDiscovery.
func Eligible(dir, pattern, ext string) ([]Input, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("%w: bad pattern %q: %v", apperrors.ErrDiscovery, pattern, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrDiscovery, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", apperrors.ErrDiscovery, dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrDiscovery, dir, err)
	}

	inputs := make([]Input, 0, len(entries))
	for _, e := range entries {
		if ok, _ := filepath.Match(pattern, e.Name()); !ok {
			continue
		}
		date, ok := ParseName(e.Name(), ext)
		if !ok {
			continue
		}
		path := filepath.Join(dir, e.Name())
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		inputs = append(inputs, Input{
			Path:    path,
			Date:    date,
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(inputs, func(i, j int) bool {
		return inputs[i].Name() < inputs[j].Name()
	})
	return inputs, nil
}

// Stale returns, in order, the inputs whose artifact is missing or strictly
// older than the input. Modification times are read fresh for every call.
// An input that disappeared since it was listed is dropped.
func Stale(inputs []Input, artifact func(time.Time) string) ([]Input, error) {
	log := logger.WithComponent("staleness")
	stale := make([]Input, 0, len(inputs))
	for _, in := range inputs {
		inInfo, err := os.Stat(in.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Debug("input vanished before staleness check", "input", in.Path)
				continue
			}
			return nil, fmt.Errorf("%w: stat %s: %v", apperrors.ErrDiscovery, in.Path, err)
		}
		out := artifact(in.Date)
		outInfo, err := os.Stat(out)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			in.ModTime = inInfo.ModTime()
			stale = append(stale, in)
		case err != nil:
			return nil, fmt.Errorf("%w: stat %s: %v", apperrors.ErrDiscovery, out, err)
		case inInfo.ModTime().After(outInfo.ModTime()):
			in.ModTime = inInfo.ModTime()
			stale = append(stale, in)
		default:
			log.Debug("output is fresh", "input", in.Name(), "artifact", out)
		}
	}
	return stale, nil
}
