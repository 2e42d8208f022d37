package editor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/weiawesome/wes-io-collab/collab-client/internal/domain"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

// FileBuffer uses a file on disk as the document, so any local editor can
// take part in a room. External writes to the file are local edits; remote
// snapshots are written back to it.
type FileBuffer struct {
	path string

	mu          sync.Mutex
	last        string
	listener    Listener
	decorations []domain.Range
	proposals   []domain.Proposal
	proposalsAt int

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileBuffer opens path, creating an empty file when it does not exist.
func NewFileBuffer(path string) (*FileBuffer, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(abs, nil, 0o644); err != nil {
			return nil, fmt.Errorf("create document: %w", err)
		}
		data, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return &FileBuffer{path: abs, last: string(data), done: make(chan struct{})}, nil
}

// SetListener installs the listener for external writes.
func (f *FileBuffer) SetListener(l Listener) {
	f.mu.Lock()
	f.listener = l
	f.mu.Unlock()
}

// Path returns the absolute document path.
func (f *FileBuffer) Path() string {
	return f.path
}

// Start watches the file's directory until ctx is done or Close is called.
// Watching the directory survives editors that save by rename.
func (f *FileBuffer) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(f.path), err)
	}
	f.watcher = w

	go f.watch(ctx)
	return nil
}

// Close stops watching.
func (f *FileBuffer) Close() error {
	if f.watcher == nil {
		return nil
	}
	err := f.watcher.Close()
	<-f.done
	return err
}

func (f *FileBuffer) watch(ctx context.Context) {
	defer close(f.done)
	l := pkglog.Component("file-buffer")

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			f.reload()
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			l.Warn().Err(err).Str("path", f.path).Msg("watcher error")
		}
	}
}

// reload picks up the file content and reports it as a local edit when it
// differs from what this process last saw or wrote.
func (f *FileBuffer) reload() {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return
	}

	f.mu.Lock()
	if string(data) == f.last {
		f.mu.Unlock()
		return
	}
	text := string(data)
	f.last = text
	l := f.listener
	f.mu.Unlock()

	if l != nil {
		l.OnDocumentChanged(text)
	}
}

func (f *FileBuffer) Text() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *FileBuffer) ReplaceRange(from, to int, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := string(splice([]rune(f.last), from, to, text))
	f.last = next
	if err := writeAtomic(f.path, []byte(next)); err != nil {
		l := pkglog.Component("file-buffer")
		l.Error().Err(err).Str("path", f.path).Msg("failed to write document")
	}
}

func (f *FileBuffer) SetDecorations(ranges []domain.Range) {
	f.mu.Lock()
	f.decorations = append([]domain.Range(nil), ranges...)
	f.mu.Unlock()

	l := pkglog.Component("file-buffer")
	l.Debug().Int("cursors", len(ranges)).Msg("remote cursors updated")
}

// Decorations returns the last highlight set.
func (f *FileBuffer) Decorations() []domain.Range {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Range(nil), f.decorations...)
}

func (f *FileBuffer) ShowProposals(at int, proposals []domain.Proposal) {
	f.mu.Lock()
	f.proposalsAt = at
	f.proposals = append([]domain.Proposal(nil), proposals...)
	f.mu.Unlock()

	if len(proposals) == 0 {
		return
	}
	labels := make([]string, len(proposals))
	for i, p := range proposals {
		labels[i] = p.Label
	}
	l := pkglog.Component("file-buffer")
	l.Info().Int("offset", at).Str("proposals", strings.Join(labels, " | ")).Msg("completion proposals")
}

// Proposals returns the offset and the proposals currently on display.
func (f *FileBuffer) Proposals() (int, []domain.Proposal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.proposalsAt, append([]domain.Proposal(nil), f.proposals...)
}

// writeAtomic replaces path through a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
