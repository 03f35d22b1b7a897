package bridge

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/normanking/cortexvoice/internal/bus"
)

// queueDepth bounds how many artifacts can wait for the speaker. A
// full queue drops the newest item rather than stalling the stream.
const queueDepth = 32

type queueItem struct {
	path string
	text string
}

// PlaybackQueue plays audio artifacts strictly in arrival order on a
// single consumer goroutine. A failed item is logged and skipped so
// one bad artifact never silences the rest of the reply.
type PlaybackQueue struct {
	player Player
	logger zerolog.Logger
	bus    *bus.EventBus

	items chan queueItem
	done  chan struct{}

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
}

// NewPlaybackQueue starts the consumer. The bus is optional.
func NewPlaybackQueue(player Player, logger zerolog.Logger, eventBus *bus.EventBus) *PlaybackQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &PlaybackQueue{
		player: player,
		logger: logger.With().Str("component", "playback").Logger(),
		bus:    eventBus,
		items:  make(chan queueItem, queueDepth),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go q.consume(ctx)
	return q
}

// Enqueue schedules one artifact. Reports false when the queue is
// full or closed and the item was dropped.
func (q *PlaybackQueue) Enqueue(path, text string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.items <- queueItem{path: path, text: text}:
		return true
	default:
		q.logger.Warn().Str("audio_path", path).Msg("Playback queue full, dropping artifact")
		return false
	}
}

// Close drains queued items, waits for the consumer to finish, then
// returns. Safe to call more than once.
func (q *PlaybackQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	close(q.items)
	q.mu.Unlock()
	<-q.done
}

// Stop aborts current playback and discards the queue.
func (q *PlaybackQueue) Stop() {
	q.cancel()
	q.Close()
}

func (q *PlaybackQueue) consume(ctx context.Context) {
	defer close(q.done)
	for item := range q.items {
		if ctx.Err() != nil {
			continue
		}
		q.publish(bus.EventTypePlaybackStarted, item)
		if err := q.player.Play(ctx, item.path); err != nil {
			q.logger.Warn().Err(err).Str("audio_path", item.path).Msg("Playback failed, skipping")
			q.publish(bus.EventTypePlaybackFailed, item)
			continue
		}
		q.publish(bus.EventTypePlaybackFinished, item)
	}
}

func (q *PlaybackQueue) publish(eventType bus.EventType, item queueItem) {
	if q.bus == nil {
		return
	}
	q.bus.PublishSync(bus.Event{Type: eventType, Data: map[string]any{
		"audio_path": item.path,
		"text":       item.text,
	}})
}
