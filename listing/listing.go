// Package listing aggregates entries declared in a directory of apache2 configuration files.
package listing

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/martin-sucha/proxy-listing/apache2"
	"golang.org/x/sync/errgroup"
)

// Listing is a sorted list of distinct entries.
type Listing []string

// New returns a Listing of entries, sorted and without duplicates.
// The result is never nil.
func New(entries ...string) Listing {
	seen := make(map[string]struct{}, len(entries))
	l := make(Listing, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		l = append(l, e)
	}
	sort.Strings(l)
	return l
}

// Merge returns the union of listings.
func Merge(listings ...Listing) Listing {
	var all []string
	for _, l := range listings {
		all = append(all, l...)
	}
	return New(all...)
}

// Observer is notified after each directory scan.
type Observer interface {
	ObserveScan(dir string, parsed, skipped int, elapsed time.Duration)
}

const defaultConcurrency = 8

var errNotRegular = errors.New("not a regular file")

// Scanner builds listings from directories of configuration files.
// The zero value is ready to use. A Scanner is safe for concurrent use.
type Scanner struct {
	Logger   *slog.Logger
	Observer Observer
	// Concurrency limits the number of files read at once. Zero means a default.
	Concurrency int
}

// Scan returns the entries m finds in the regular files of dir.
//
// A missing or unreadable directory results in an empty listing. Files that are not regular
// or cannot be read are skipped.
func (s *Scanner) Scan(dir string, m apache2.Matcher) Listing {
	start := time.Now()
	logger := s.logger().With(slog.String("dir", dir), slog.String("kind", m.Kind.String()))

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		logger.Debug("directory not scanned", slog.String("error", err.Error()))
		s.observe(dir, 0, 0, time.Since(start))
		return New()
	}

	found := make([][]string, len(dirEntries))
	var skipped atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.concurrency())
	for i, de := range dirEntries {
		i, name := i, filepath.Join(dir, de.Name())
		g.Go(func() error {
			entries, err := readEntries(name, m)
			if err != nil {
				skipped.Add(1)
				logger.Debug("file skipped", slog.String("file", name), slog.String("error", err.Error()))
				return nil
			}
			found[i] = entries
			return nil
		})
	}
	_ = g.Wait()

	var all []string
	for _, entries := range found {
		all = append(all, entries...)
	}
	l := New(all...)
	n := int(skipped.Load())
	s.observe(dir, len(dirEntries)-n, n, time.Since(start))
	logger.Debug("directory scanned", slog.Int("files", len(dirEntries)), slog.Int("skipped", n), slog.Int("entries", len(l)))
	return l
}

// readEntries follows symlinks, sites-enabled usually links into sites-available.
func readEntries(name string, m apache2.Matcher) ([]string, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, errNotRegular
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return m.Entries(f)
}

func (s *Scanner) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

func (s *Scanner) concurrency() int {
	if s.Concurrency <= 0 {
		return defaultConcurrency
	}
	return s.Concurrency
}

func (s *Scanner) observe(dir string, parsed, skipped int, elapsed time.Duration) {
	if s.Observer != nil {
		s.Observer.ObserveScan(dir, parsed, skipped, elapsed)
	}
}
