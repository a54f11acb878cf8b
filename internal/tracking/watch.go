package tracking

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/qiniu/x/log"
)

// Debounce is how long Watch waits after the last event before it
// reports a change. Editors often emit several events for one save.
var Debounce = 100 * time.Millisecond

// Watch calls onChange with the changed paths whenever a file in s is
// written, created, renamed or removed. It watches the parent
// directories, so files replaced by rename are still seen. Watch blocks
// until ctx is done and returns nil then.
func Watch(ctx context.Context, s Set, onChange func(changed []string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dirs := make(map[string]bool)
	for _, p := range s {
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			return err
		}
		dirs[dir] = true
	}

	timer := time.NewTimer(0)
	<-timer.C
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !s.Contains(filepath.Clean(ev.Name)) || ev.Op == fsnotify.Chmod {
				continue
			}
			pending[filepath.Clean(ev.Name)] = true
			timer.Reset(Debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = make(map[string]bool)
			onChange(changed)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warnf("watch: %v", err)
		}
	}
}
