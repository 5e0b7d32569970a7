package assets

import (
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/fennelvane/ember/engine/containers"
	"github.com/fennelvane/ember/engine/core"
)

// Watcher queues paths of changed asset files. fsnotify delivers events
// on its own goroutine; the queue hands them over to the control
// thread, which is the only place GPU resources may be touched.
type Watcher struct {
	fsnotify *fsnotify.Watcher
	done     chan struct{}

	mutex   sync.Mutex
	changed *containers.RingQueue[string]
}

func NewWatcher(dir string, queueSize int) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		changed:  containers.NewRingQueue[string](queueSize),
	}
	if err := fsWatch.Add(dir); err != nil {
		fsWatch.Close()
		return nil, err
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.mutex.Lock()
			// A full queue drops the event. The file is picked up
			// again on its next write.
			if err := w.changed.Enqueue(event.Name); err != nil {
				core.LogDebug("asset change queue full, dropping %s", event.Name)
			}
			w.mutex.Unlock()
		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogWarn("asset watcher: %s", err)
		}
	}
}

// Drain returns the queued changed paths. Called from the control
// thread once per frame.
func (w *Watcher) Drain() []string {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	var paths []string
	for !w.changed.IsEmpty() {
		p, err := w.changed.Dequeue()
		if err != nil {
			break
		}
		paths = append(paths, p)
	}
	return paths
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.fsnotify.Close()
}
