package envload

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/frontenv/frontenv"
)

// Store holds the current environment. Readers get an immutable snapshot;
// reloads replace the snapshot as a whole.
type Store struct {
	current atomic.Pointer[frontenv.Environment]
}

// NewStore returns a Store serving env.
func NewStore(env *frontenv.Environment) *Store {
	s := &Store{}
	s.Set(env)
	return s
}

// Environment returns the current snapshot.
func (s *Store) Environment() *frontenv.Environment {
	return s.current.Load()
}

// Set replaces the current snapshot.
func (s *Store) Set(env *frontenv.Environment) {
	if env == nil {
		env = frontenv.NewEnvironment(nil)
	}
	s.current.Store(env)
}

// DefaultDebounce is how long Watch waits for a burst of file events to
// settle before reloading.
const DefaultDebounce = 100 * time.Millisecond

// Watch reloads cfg into store whenever cfg.File changes, until ctx is
// done. The parent directory is watched so editors that replace the file
// by rename are handled. A reload that fails keeps the previous snapshot.
func Watch(ctx context.Context, store *Store, cfg Config, debounce time.Duration) error {
	if cfg.File == "" {
		<-ctx.Done()
		return nil
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	path, err := filepath.Abs(cfg.File)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	log.Info().Str("file", path).Msg("[envload] watching environment file")

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				timer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("[envload] watcher error")

		case <-timer.C:
			reload(store, cfg)
		}
	}
}

func reload(store *Store, cfg Config) {
	env, err := Load(cfg)
	if err != nil {
		log.Warn().Err(err).Str("file", cfg.File).Msg("[envload] reload failed, keeping previous environment")
		return
	}
	if env.Equal(store.Environment()) {
		return
	}
	store.Set(env)
	log.Info().Int("vars", env.Len()).Msg("[envload] environment reloaded")
}
