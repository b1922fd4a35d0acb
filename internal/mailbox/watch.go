package mailbox

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/crewkit/crewkit/internal/transport"
)

// Watch drains the agent's mailbox whenever its inbox or the broadcast log
// changes, invoking handler for each new message. A filesystem watcher
// provides prompt wakeups; a poll ticker at interval covers writes the
// watcher misses (fsnotify does not see every append on all filesystems).
//
// Watch drains via ReadAll, so it advances the agent's cursor; do not mix it
// with manual ReadAll calls for the same agent. The returned cancel function
// stops the watcher and waits for the goroutine to exit.
func (m *Mailbox) Watch(agentID string, interval time.Duration, handler func(Message)) (cancel func(), err error) {
	if err := transport.EnsureDir(m.dir); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(m.dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	inboxPath := m.logPath(agentID)
	broadcastPath := m.logPath(BroadcastRecipient)
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		drain := func() {
			msgs, err := m.ReadAll(agentID)
			if err != nil {
				// Transient read failures are expected under concurrent
				// writes; the next wakeup retries.
				return
			}
			for _, msg := range msgs {
				handler(msg)
			}
		}

		for {
			select {
			case <-done:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name == inboxPath || ev.Name == broadcastPath {
					drain()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// Watcher errors degrade to pure polling.
			case <-ticker.C:
				drain()
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
		wg.Wait()
	}, nil
}
