/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package pictures

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const watchSettle = 500 * time.Millisecond

// Watch reloads the dataset from dir whenever its contents change and
// passes datasets with a new fingerprint to onChange. It blocks until ctx
// is done.
func Watch(ctx context.Context, fs afero.Fs, dir string, current Dataset, log zerolog.Logger, onChange func(Dataset)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %q: %w", dir, err)
	}

	var (
		mu    sync.Mutex
		last  = current.Fingerprint
		timer *time.Timer
	)

	reload := func() {
		d, err := LoadDataset(fs, dir)
		if err != nil {
			log.Error().Err(err).Str("dir", dir).Msg("reload failed")
			return
		}

		mu.Lock()
		changed := d.Fingerprint != last
		last = d.Fingerprint
		mu.Unlock()

		if changed {
			log.Info().Str("dataset", d.String()).Msg("image directory changed")
			onChange(d)
		}
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Write) {
				continue
			}

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchSettle, reload)
			mu.Unlock()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("dir", dir).Msg("watch error")
		}
	}
}
