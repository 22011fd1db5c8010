package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FollowFile renders the log and then tails it, printing new events as
// the orchestrator appends them. It returns when ctx is cancelled.
func (r *Replayer) FollowFile(ctx context.Context, path string) error {
	evts, offset, err := loadEvents(path, 0)
	if err != nil {
		return err
	}

	sessionID := ""
	if len(evts) > 0 {
		sessionID = evts[0].SessionID
	}
	r.printHeader(sessionID, path, len(evts))
	for _, e := range evts {
		r.printEvent(e)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Debounce so a burst of appends is read in one pass.
			time.Sleep(100 * time.Millisecond)

			newEvents, newOffset, err := loadEvents(path, offset)
			if err != nil {
				continue
			}
			offset = newOffset
			for _, e := range newEvents {
				r.printEvent(e)
			}
		case <-watcher.Errors:
			// Keep watching.
		}
	}
}
