package filedata

import "fmt"

// All log messages, error singletons, and error constructors for this package should be collected here,
// except for debug logging.

const (
	logMsgLoadedData                   = "Loaded %d flag(s) and %d segment(s) from %d file(s)"
	logMsgLoadFailed                   = "Unable to load flag data files: %s"
	logMsgReloadedData                 = "Reloaded data from %s"
	logMsgReloadError                  = "Data file reload failed; file is invalid or possibly incomplete, will retry (error: %s)"
	logMsgReloadUnchangedNoMoreRetries = "Data file reload failed, and no further changes were detected; giving up until next change (error: %s)"
	logMsgWatching                     = "Watching %s for changes"
	logMsgWatcherError                 = "File watcher error: %s"
)

func errCannotReadFile(filePath string, err error) error {
	return fmt.Errorf("unable to read data file %s: %w", filePath, err)
}

func errCannotParseFile(filePath string, err error) error {
	return fmt.Errorf("unable to parse data file %s: %w", filePath, err)
}

func errDuplicateKey(kindName, key, filePath string) error {
	return fmt.Errorf("%s key %q in %s was already defined in another file", kindName, key, filePath)
}

func errCreateWatcherFailed(err error) error { // COVERAGE: can't cause this condition in unit tests
	return fmt.Errorf("unable to create file watcher: %w", err)
}

func errWatchFailed(dirPath string, err error) error {
	return fmt.Errorf("unable to watch %s: %w", dirPath, err)
}
