// Package scan streams signature-matching files out of a directory tree.
//
// The walk reads only the leading bytes of each regular file, so the cost is
// bounded by the number of files, not their sizes. Results arrive on an event
// channel while the walk is still running.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/entro314-labs/modelkill/internal/registry"
	"github.com/entro314-labs/modelkill/internal/sig"
)

// ErrInvalidRoot means the scan root does not exist or is not a directory.
var ErrInvalidRoot = errors.New("scan: root is not a directory")

const (
	progressInterval = 200 * time.Millisecond
	maxWarnings      = 50
)

type Options struct {
	Root       string
	RootHandle *os.Root
	Table      sig.Table
	SkipDirs   map[string]struct{}
	MaxDepth   int // 0 = unlimited
	Workers    int // 0 = NumCPU, 1 = deterministic sequential walk
	Log        zerolog.Logger
}

func DefaultSkipDirs() map[string]struct{} {
	return map[string]struct{}{
		".git": {},
		".hg":  {},
		".svn": {},
	}
}

// Found carries one discovered candidate.
type Found struct {
	Candidate registry.Candidate
}

// Progress is a periodic counter update while the walk runs.
type Progress struct {
	Visited int
	Found   int
	Errors  int
}

// Done is the final event before the channel closes.
type Done struct {
	Visited   int
	Found     int
	Errors    int
	Warnings  []string
	Elapsed   time.Duration
	Cancelled bool
}

// Event is one of Found, Progress or Done.
type Event interface{ scanEvent() }

func (Found) scanEvent()    {}
func (Progress) scanEvent() {}
func (Done) scanEvent()     {}

type scanner struct {
	opts    Options
	fsys    fs.FS
	headLen int

	group    *errgroup.Group
	parallel bool

	mu           sync.Mutex
	out          chan Event
	visited      int
	found        int
	errs         int
	warnings     []string
	lastProgress time.Time
}

// Run validates the root and starts the walk. The returned channel delivers
// Found and Progress events and closes right after a single Done event; the
// caller drains it. Cancelling ctx stops the walk at the next directory
// entry, leaving already-emitted candidates valid.
func Run(ctx context.Context, opts Options) (<-chan Event, error) {
	if opts.RootHandle == nil {
		return nil, ErrInvalidRoot
	}
	info, err := opts.RootHandle.Stat(".")
	if err != nil || !info.IsDir() {
		return nil, ErrInvalidRoot
	}
	if opts.Table.MaxLen() == 0 {
		opts.Table = sig.DefaultTable()
	}
	if opts.SkipDirs == nil {
		opts.SkipDirs = DefaultSkipDirs()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	s := &scanner{
		opts:    opts,
		fsys:    opts.RootHandle.FS(),
		headLen: opts.Table.MaxLen(),
		out:     make(chan Event, 64),
	}

	go s.run(ctx)
	return s.out, nil
}

func (s *scanner) run(ctx context.Context) {
	defer close(s.out)
	start := time.Now()

	if s.opts.Workers > 1 {
		s.parallel = true
		s.group = &errgroup.Group{}
		s.group.SetLimit(s.opts.Workers)
	}

	s.walkDir(ctx, ".", 0)
	if s.group != nil {
		_ = s.group.Wait() // workers never return errors
	}

	s.mu.Lock()
	done := Done{
		Visited:   s.visited,
		Found:     s.found,
		Errors:    s.errs,
		Warnings:  s.warnings,
		Elapsed:   time.Since(start),
		Cancelled: ctx.Err() != nil,
	}
	s.mu.Unlock()

	s.opts.Log.Info().
		Int("visited", done.Visited).
		Int("found", done.Found).
		Int("errors", done.Errors).
		Bool("cancelled", done.Cancelled).
		Dur("elapsed", done.Elapsed).
		Msg("scan finished")
	s.send(ctx, done)
}

// send blocks until the consumer takes the event, unless the scan has been
// cancelled and the consumer may already be gone.
func (s *scanner) send(ctx context.Context, ev Event) {
	select {
	case s.out <- ev:
	case <-ctx.Done():
		select {
		case s.out <- ev:
		default:
		}
	}
}

func (s *scanner) walkDir(ctx context.Context, dir string, depth int) {
	entries, err := fs.ReadDir(s.fsys, dir)
	if err != nil {
		s.recordError(dir, err)
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}

		name := entry.Name()
		sub := path.Join(dir, name)

		if entry.IsDir() {
			if _, skip := s.opts.SkipDirs[name]; skip {
				continue
			}
			if s.opts.MaxDepth > 0 && depth+1 >= s.opts.MaxDepth {
				continue
			}
			s.enterDir(ctx, sub, depth+1)
			continue
		}

		// Symlinks (including links to directories), devices and sockets are
		// never candidates: deleting through an alias is not what the
		// operator confirmed, and following links can loop.
		if !entry.Type().IsRegular() {
			s.opts.Log.Debug().Str("path", sub).Msg("skipping non-regular file")
			continue
		}

		s.checkFile(ctx, sub, entry)
	}
}

// enterDir descends into sub on a pooled worker when one is free, inline
// otherwise. Inline descent keeps the walk deadlock-free when the pool is
// saturated and makes the single-worker walk strictly depth-first in
// fs.ReadDir name order.
func (s *scanner) enterDir(ctx context.Context, sub string, depth int) {
	if s.parallel {
		started := s.group.TryGo(func() error {
			s.walkDir(ctx, sub, depth)
			return nil
		})
		if started {
			return
		}
	}
	s.walkDir(ctx, sub, depth)
}

func (s *scanner) checkFile(ctx context.Context, rel string, entry fs.DirEntry) {
	header, err := s.readHeader(rel)
	if err != nil {
		s.recordError(rel, err)
		return
	}

	kind, ok := s.opts.Table.Detect(header)
	if !ok {
		s.bumpVisited()
		return
	}

	info, err := entry.Info()
	if err != nil {
		// Vanished between listing and stat.
		s.recordError(rel, err)
		return
	}

	native := filepath.FromSlash(rel)
	cand := registry.Candidate{
		Path:    filepath.Join(s.opts.Root, native),
		Rel:     native,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Kind:    kind,
	}
	s.opts.Log.Debug().Str("path", cand.Path).Int64("size", cand.Size).Str("kind", kind).Msg("candidate found")
	s.emitFound(ctx, cand)
}

// readHeader reads at most headLen bytes from the start of the file. A file
// shorter than the longest magic is fine; whatever was read is returned.
func (s *scanner) readHeader(rel string) ([]byte, error) {
	f, err := s.fsys.Open(rel)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, s.headLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return buf[:n], nil
}

func (s *scanner) emitFound(ctx context.Context, cand registry.Candidate) {
	s.mu.Lock()
	s.visited++
	s.found++
	progress := Progress{Visited: s.visited, Found: s.found, Errors: s.errs}
	s.lastProgress = time.Now()
	s.mu.Unlock()

	s.send(ctx, Found{Candidate: cand})
	s.send(ctx, progress)
}

func (s *scanner) bumpVisited() {
	s.mu.Lock()
	s.visited++
	s.maybeProgressLocked()
	s.mu.Unlock()
}

func (s *scanner) recordError(rel string, err error) {
	native := filepath.FromSlash(rel)
	s.opts.Log.Debug().Str("path", native).Err(err).Msg("skipping unreadable entry")

	s.mu.Lock()
	s.visited++
	s.errs++
	if len(s.warnings) < maxWarnings {
		if errors.Is(err, fs.ErrPermission) {
			s.warnings = append(s.warnings, fmt.Sprintf("permission denied: %s", native))
		} else {
			s.warnings = append(s.warnings, fmt.Sprintf("%s: %v", native, err))
		}
	}
	s.maybeProgressLocked()
	s.mu.Unlock()
}

func (s *scanner) maybeProgressLocked() {
	if time.Since(s.lastProgress) < progressInterval {
		return
	}
	s.lastProgress = time.Now()
	progress := Progress{Visited: s.visited, Found: s.found, Errors: s.errs}
	select {
	case s.out <- progress:
	default:
		// The consumer is behind; a stale counter update is droppable.
	}
}
