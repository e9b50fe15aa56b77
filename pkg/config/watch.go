package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the global configuration whenever its file is written
// or replaced, reporting each attempt through onReload. It blocks
// until stop is closed or the watcher shuts down. The config file must
// exist when Watch starts.
func Watch(stop <-chan struct{}, onReload func(*Config, error)) error {
	filename := Get().ConfigFilePath()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filename); err != nil {
		return fmt.Errorf("failed to watch file %s: %w", filename, err)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if err := Reload(); err != nil {
					onReload(nil, err)
					continue
				}
				onReload(Get(), nil)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			onReload(nil, err)
		case <-stop:
			return nil
		}
	}
}
