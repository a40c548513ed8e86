package tui

import (
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

// settle is how long a burst of writes must be quiet before a reload.
const settle = 150 * time.Millisecond

type fileChangedMsg struct{}

type watchErrMsg struct{ err error }

// watcher reports writes to one file. The directory is watched so that
// editors which replace the file on save are still seen.
type watcher struct {
	fsw  *fsnotify.Watcher
	path string
}

func newWatcher(path string) (*watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}
	return &watcher{fsw: fsw, path: abs}, nil
}

func (w *watcher) matches(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}

// wait blocks until the file changes and the writes settle.
func (w *watcher) wait() tea.Cmd {
	return func() tea.Msg {
		var quiet <-chan time.Time
		for {
			select {
			case ev, ok := <-w.fsw.Events:
				if !ok {
					return nil
				}
				if w.matches(ev) {
					quiet = time.After(settle)
				}
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return nil
				}
				return watchErrMsg{err: err}
			case <-quiet:
				return fileChangedMsg{}
			}
		}
	}
}

func (w *watcher) close() error {
	return w.fsw.Close()
}
