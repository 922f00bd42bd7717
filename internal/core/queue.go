package core

import (
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"
)

// PlaybackQueue owns the ordered playback queue, the current track, the
// play history and the shuffle/repeat state. All operations are atomic
// from the caller's perspective; the only error condition is an invalid
// index, which never mutates state.
//
// After every queue-length-changing mutation the queue fires its change
// listener (outside the lock), which the auto-queue controller uses as its
// trigger signal.
type PlaybackQueue struct {
	mu            sync.RWMutex
	current       *Track
	queue         []Track
	history       []Track
	shuffled      bool
	originalOrder []Track
	repeatMode    RepeatMode

	onChange func()
	logger   *zap.Logger
}

func NewPlaybackQueue(logger *zap.Logger) *PlaybackQueue {
	return &PlaybackQueue{logger: logger}
}

// SetChangeListener registers the callback fired after queue-length
// mutations. The callback must not block; the controller side uses a
// buffered wakeup channel with a drop-if-full send.
func (q *PlaybackQueue) SetChangeListener(fn func()) {
	q.mu.Lock()
	q.onChange = fn
	q.mu.Unlock()
}

func (q *PlaybackQueue) notifyChanged() {
	q.mu.RLock()
	fn := q.onChange
	q.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// PlayNow sets the current track, pushing any previous current track to
// history. The queue itself is untouched.
func (q *PlaybackQueue) PlayNow(track Track) {
	q.mu.Lock()
	if q.current != nil {
		q.history = append(q.history, *q.current)
	}
	t := track
	q.current = &t
	q.mu.Unlock()

	q.logger.Debug("playing track now",
		zap.Int64("trackID", track.ID),
		zap.String("title", track.Title))
}

// Advance moves playback to the next track and returns it. With RepeatOne
// the current track is returned unchanged. With an empty queue and
// RepeatAll the queue is refilled from history (oldest first) and the
// advance retried once. Returns nil when playback stops.
func (q *PlaybackQueue) Advance() *Track {
	q.mu.Lock()
	track := q.advanceLocked()
	q.mu.Unlock()

	q.notifyChanged()
	return track
}

func (q *PlaybackQueue) advanceLocked() *Track {
	if q.repeatMode == RepeatOne {
		return q.current
	}

	if len(q.queue) == 0 {
		if q.repeatMode == RepeatAll && len(q.history) > 0 {
			q.queue = append(q.queue, q.history...)
			q.history = q.history[:0]
		} else {
			if q.current != nil {
				q.history = append(q.history, *q.current)
				q.current = nil
			}
			return nil
		}
	}

	if q.current != nil {
		q.history = append(q.history, *q.current)
	}
	next := q.queue[0]
	q.queue = q.queue[1:]
	q.current = &next
	return q.current
}

// GoBack pops the most recent history entry as the new current track and
// pushes the old current track back to the front of the queue. No-op when
// history is empty.
func (q *PlaybackQueue) GoBack() *Track {
	q.mu.Lock()
	if len(q.history) == 0 {
		track := q.current
		q.mu.Unlock()
		return track
	}

	if q.current != nil {
		q.queue = append([]Track{*q.current}, q.queue...)
	}
	prev := q.history[len(q.history)-1]
	q.history = q.history[:len(q.history)-1]
	q.current = &prev
	q.mu.Unlock()

	q.notifyChanged()
	return q.current
}

// PlayFromQueue jumps to the queue entry at index. Entries before the
// index are consumed and discarded; the old current track goes to history.
func (q *PlaybackQueue) PlayFromQueue(index int) (*Track, error) {
	q.mu.Lock()
	if index < 0 || index >= len(q.queue) {
		q.mu.Unlock()
		return nil, ErrIndexOutOfRange
	}

	if q.current != nil {
		q.history = append(q.history, *q.current)
	}
	selected := q.queue[index]
	q.queue = append([]Track(nil), q.queue[index+1:]...)
	q.current = &selected
	q.mu.Unlock()

	q.notifyChanged()
	return q.current, nil
}

// Enqueue appends tracks to the queue tail. With checkDuplicates set, any
// track whose id already matches the current track, a queued track or an
// earlier track in the same batch is silently dropped. Returns the number
// of tracks actually added.
func (q *PlaybackQueue) Enqueue(tracks []Track, checkDuplicates bool) int {
	q.mu.Lock()
	added := 0
	if checkDuplicates {
		known := make(map[int64]struct{}, len(q.queue)+1)
		if q.current != nil {
			known[q.current.ID] = struct{}{}
		}
		for _, t := range q.queue {
			known[t.ID] = struct{}{}
		}
		for _, t := range tracks {
			if _, dup := known[t.ID]; dup {
				continue
			}
			known[t.ID] = struct{}{}
			q.queue = append(q.queue, t)
			added++
		}
	} else {
		q.queue = append(q.queue, tracks...)
		added = len(tracks)
	}
	q.mu.Unlock()

	if added > 0 {
		q.notifyChanged()
	}
	return added
}

// EnqueueNext inserts tracks at the queue head so they play immediately
// after the current track.
func (q *PlaybackQueue) EnqueueNext(tracks []Track) {
	if len(tracks) == 0 {
		return
	}
	q.mu.Lock()
	q.queue = append(append([]Track(nil), tracks...), q.queue...)
	q.mu.Unlock()

	q.notifyChanged()
}

// Remove deletes the queue entry at index.
func (q *PlaybackQueue) Remove(index int) error {
	q.mu.Lock()
	if index < 0 || index >= len(q.queue) {
		q.mu.Unlock()
		return ErrIndexOutOfRange
	}
	q.queue = append(q.queue[:index], q.queue[index+1:]...)
	q.mu.Unlock()

	q.notifyChanged()
	return nil
}

// Clear drops all queued tracks. Current track and history are untouched.
func (q *PlaybackQueue) Clear() {
	q.mu.Lock()
	q.queue = q.queue[:0]
	q.mu.Unlock()

	q.notifyChanged()
}

// Reorder moves the entry at oldIndex to newIndex. The original-order
// snapshot is keyed by id, so reordering while shuffled stays reversible.
func (q *PlaybackQueue) Reorder(oldIndex, newIndex int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if oldIndex < 0 || oldIndex >= len(q.queue) || newIndex < 0 || newIndex >= len(q.queue) {
		return ErrIndexOutOfRange
	}
	if oldIndex == newIndex {
		return nil
	}

	track := q.queue[oldIndex]
	q.queue = append(q.queue[:oldIndex], q.queue[oldIndex+1:]...)
	rest := append([]Track(nil), q.queue[newIndex:]...)
	q.queue = append(append(q.queue[:newIndex], track), rest...)
	return nil
}

// ToggleShuffle flips shuffle mode and returns the new state. Enabling
// snapshots the queue order and applies a uniform permutation; disabling
// restores the snapshot order for ids still present and appends tracks
// added since in their current relative order.
func (q *PlaybackQueue) ToggleShuffle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.shuffled {
		q.originalOrder = append([]Track(nil), q.queue...)
		rand.Shuffle(len(q.queue), func(i, j int) {
			q.queue[i], q.queue[j] = q.queue[j], q.queue[i]
		})
		q.shuffled = true
		q.logger.Debug("shuffle enabled", zap.Int("queueLength", len(q.queue)))
		return true
	}

	q.queue = restoreOrder(q.originalOrder, q.queue)
	q.originalOrder = nil
	q.shuffled = false
	q.logger.Debug("shuffle disabled", zap.Int("queueLength", len(q.queue)))
	return false
}

// restoreOrder rebuilds the queue as the subsequence of snapshot restricted
// to ids still present in current, with tracks absent from the snapshot
// appended at the end in their current relative order. Duplicate ids are
// matched by count.
func restoreOrder(snapshot, current []Track) []Track {
	remaining := make(map[int64]int, len(current))
	for _, t := range current {
		remaining[t.ID]++
	}

	restored := make([]Track, 0, len(current))
	consumed := make(map[int64]int)
	for _, t := range snapshot {
		if remaining[t.ID] > 0 {
			remaining[t.ID]--
			consumed[t.ID]++
			restored = append(restored, t)
		}
	}

	for _, t := range current {
		if consumed[t.ID] > 0 {
			consumed[t.ID]--
			continue
		}
		restored = append(restored, t)
	}
	return restored
}

// CycleRepeatMode advances none -> all -> one -> none and returns the new
// mode.
func (q *PlaybackQueue) CycleRepeatMode() RepeatMode {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch q.repeatMode {
	case RepeatNone:
		q.repeatMode = RepeatAll
	case RepeatAll:
		q.repeatMode = RepeatOne
	default:
		q.repeatMode = RepeatNone
	}
	return q.repeatMode
}

// Current returns a copy of the current track, or nil when stopped.
func (q *PlaybackQueue) Current() *Track {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.current == nil {
		return nil
	}
	t := *q.current
	return &t
}

// Tracks returns a copy of the queued tracks.
func (q *PlaybackQueue) Tracks() []Track {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]Track(nil), q.queue...)
}

// History returns a copy of the play history, oldest first.
func (q *PlaybackQueue) History() []Track {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]Track(nil), q.history...)
}

func (q *PlaybackQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.queue)
}

func (q *PlaybackQueue) Shuffled() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.shuffled
}

func (q *PlaybackQueue) RepeatMode() RepeatMode {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.repeatMode
}

// QueueSnapshot is the read-only view handed to the presentation layer.
type QueueSnapshot struct {
	Current       *Track
	Queue         []Track
	HistoryLength int
	Shuffled      bool
	RepeatMode    RepeatMode
}

// Snapshot returns a consistent read-only view of the queue state.
func (q *PlaybackQueue) Snapshot() QueueSnapshot {
	q.mu.RLock()
	defer q.mu.RUnlock()

	snap := QueueSnapshot{
		Queue:         append([]Track(nil), q.queue...),
		HistoryLength: len(q.history),
		Shuffled:      q.shuffled,
		RepeatMode:    q.repeatMode,
	}
	if q.current != nil {
		t := *q.current
		snap.Current = &t
	}
	return snap
}
