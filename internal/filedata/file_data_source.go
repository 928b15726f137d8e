package filedata

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/ld-sync/internal/datakinds"
	"github.com/launchdarkly/ld-sync/internal/datasource"
	st "github.com/launchdarkly/ld-sync/internal/storetypes"
)

const (
	defaultRetryInterval = time.Second
	maxRetries           = 2
)

// FileDataSource loads a full data set from one or more files and stores it.
//
// If reloading is enabled, it watches the directories containing the files, and replaces the store
// contents whenever one of the files changes. A file that fails to parse may still be in the middle of
// being written, so a failed reload is retried a few times before giving up until the next change. The
// previous data stays in the store in the meantime.
type FileDataSource struct {
	store         st.Store
	paths         []string
	reload        bool
	retryInterval time.Duration
	loggers       ldlog.Loggers
	status        *datasource.Status
	watcher       *fsnotify.Watcher
	startOnce     sync.Once
	closeOnce     sync.Once
	closeCh       chan struct{}
}

// NewFileDataSource creates a FileDataSource. Nothing is read until Start is called.
func NewFileDataSource(
	store st.Store,
	paths []string,
	reload bool,
	retryInterval time.Duration,
	loggers ldlog.Loggers,
) *FileDataSource {
	loggers.SetPrefix("FileDataSource:")
	if retryInterval <= 0 {
		retryInterval = defaultRetryInterval
	}
	absPaths := make([]string, 0, len(paths))
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			absPaths = append(absPaths, abs)
		} else {
			absPaths = append(absPaths, p)
		}
	}
	return &FileDataSource{
		store:         store,
		paths:         absPaths,
		reload:        reload,
		retryInterval: retryInterval,
		loggers:       loggers,
		status:        datasource.NewStatus(),
		closeCh:       make(chan struct{}),
	}
}

// Start loads the files and, if reloading is enabled, starts watching them. The returned channel is
// closed after the first successful load, or after a failed one if reloading is disabled.
func (fs *FileDataSource) Start() <-chan struct{} {
	fs.startOnce.Do(func() {
		if fs.reload {
			if err := fs.startWatching(); err != nil {
				fs.loggers.Error(err)
				fs.status.SetFailed(err)
				return
			}
		}
		err := fs.load()
		if err != nil {
			fs.loggers.Errorf(logMsgLoadFailed, err)
			if !fs.reload {
				fs.status.SetFailed(err)
				return
			}
			fs.status.SetError(err)
		}
		if fs.reload {
			go fs.run(err)
		}
	})
	return fs.status.Ready()
}

// IsInitialized returns true once the files have been loaded successfully.
func (fs *FileDataSource) IsInitialized() bool {
	return fs.status.IsInitialized()
}

// State returns the current lifecycle state.
func (fs *FileDataSource) State() datasource.State {
	return fs.status.State()
}

// LastError returns the most recent load error.
func (fs *FileDataSource) LastError() error {
	return fs.status.LastError()
}

// Close stops watching the files.
func (fs *FileDataSource) Close() error {
	fs.closeOnce.Do(func() {
		close(fs.closeCh)
		if !fs.status.IsInitialized() {
			fs.status.SetFailed(datasource.ErrClosed)
		}
	})
	return nil
}

func (fs *FileDataSource) load() error {
	allData, err := loadFiles(fs.paths)
	if err != nil {
		return err
	}
	if err := fs.store.Init(allData); err != nil {
		return err
	}
	var numFlags, numSegments int
	for _, coll := range allData {
		switch coll.Kind.Name {
		case datakinds.Features.Name:
			numFlags = len(coll.Items)
		case datakinds.Segments.Name:
			numSegments = len(coll.Items)
		}
	}
	fs.loggers.Infof(logMsgLoadedData, numFlags, numSegments, len(fs.paths))
	fs.status.SetInitialized()
	fs.status.SetError(nil)
	return nil
}

// startWatching watches each file's directory rather than the file itself, so that a file that is
// replaced by renaming another file over it is still detected.
func (fs *FileDataSource) startWatching() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errCreateWatcherFailed(err)
	}
	watched := make(map[string]bool)
	for _, p := range fs.paths {
		dir := filepath.Dir(p)
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return errWatchFailed(dir, err)
		}
		watched[dir] = true
		fs.loggers.Infof(logMsgWatching, dir)
	}
	fs.watcher = watcher
	return nil
}

func (fs *FileDataSource) isWatchedFile(name string) bool {
	cleaned := filepath.Clean(name)
	for _, p := range fs.paths {
		if cleaned == p {
			return true
		}
	}
	return false
}

func (fs *FileDataSource) run(initialErr error) {
	defer fs.watcher.Close()

	retryCh := make(chan struct{}, 1)
	retries := 0
	lastError := initialErr

	scheduleRetry := func() {
		time.AfterFunc(fs.retryInterval, func() {
			select {
			case retryCh <- struct{}{}:
			default:
			}
		})
	}

	reload := func(changed bool) {
		if changed {
			retries = 0
		}
		err := fs.load()
		if err == nil {
			lastError = nil
			fs.loggers.Warnf(logMsgReloadedData, strings.Join(fs.paths, ", "))
			return
		}
		lastError = err
		fs.status.SetError(err)
		if retries < maxRetries {
			retries++
			fs.loggers.Warnf(logMsgReloadError, err)
			scheduleRetry()
		} else {
			fs.loggers.Errorf(logMsgReloadUnchangedNoMoreRetries, err)
		}
	}

	for {
		select {
		case <-fs.closeCh:
			return

		case event, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			if !fs.isWatchedFile(event.Name) {
				continue
			}
			fs.loggers.Debugf("Got file watcher event: %+v", event)
			fs.consumeExtraEvents()
			reload(true)

		case err, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
			fs.loggers.Warnf(logMsgWatcherError, err)

		case <-retryCh:
			if lastError != nil {
				reload(false)
			}
		}
	}
}

// consumeExtraEvents drops change events that piled up while a reload was being triggered, since one
// reload covers all of them.
func (fs *FileDataSource) consumeExtraEvents() {
	for {
		select {
		case <-fs.watcher.Events:
		default:
			return
		}
	}
}
