package store

// QueuedTasks reports how many async tasks are waiting for a concurrency slot.
func QueuedTasks[S, A, AA any](s *Store[S, A, AA]) int {
	return s.tasks.queued()
}
