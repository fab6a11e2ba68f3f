package server

import (
	"context"
	"sync"
	"time"
)

const (
	RealtimeEventNoteCreated = "note-created"
	RealtimeEventNoteRemoved = "note-removed"
	realtimeEventHeartbeat   = "heartbeat"
	realtimeSourceBackend    = "notetaking-api"
	defaultHeartbeatInterval = 20 * time.Second
	realtimeStreamBuffer     = 16
)

// RealtimeMessage announces that notes of one user were created or removed.
type RealtimeMessage struct {
	UserID    uint
	EventType string
	NoteIDs   []uint
	Timestamp time.Time
}

type realtimeEventPayload struct {
	UserID    uint   `json:"userId"`
	NoteIDs   []uint `json:"noteIds"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

func (m RealtimeMessage) eventPayload() realtimeEventPayload {
	return realtimeEventPayload{
		UserID:    m.UserID,
		NoteIDs:   m.NoteIDs,
		Source:    realtimeSourceBackend,
		Timestamp: m.Timestamp.Format(time.RFC3339),
	}
}

// RealtimeDispatcher delivers note events to the event streams open for each user.
// A full stream drops the event rather than stalling the request that published it.
type RealtimeDispatcher struct {
	mu      sync.RWMutex
	streams map[uint]map[chan RealtimeMessage]struct{}
	clock   func() time.Time
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		streams: make(map[uint]map[chan RealtimeMessage]struct{}),
		clock:   time.Now,
	}
}

// Subscribe opens a stream of userID's note events. It stays open until ctx ends or cleanup runs.
// User 0 never owns notes and receives an already closed stream.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, userID uint) (<-chan RealtimeMessage, func()) {
	if userID == 0 {
		closed := make(chan RealtimeMessage)
		close(closed)
		return closed, func() {}
	}

	stream := make(chan RealtimeMessage, realtimeStreamBuffer)
	d.mu.Lock()
	userStreams, ok := d.streams[userID]
	if !ok {
		userStreams = make(map[chan RealtimeMessage]struct{})
		d.streams[userID] = userStreams
	}
	userStreams[stream] = struct{}{}
	d.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			close(done)
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.streams[userID], stream)
			if len(d.streams[userID]) == 0 {
				delete(d.streams, userID)
			}
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cleanup()
		case <-done:
		}
	}()
	return stream, cleanup
}

// NoteCreated tells userID's streams that the notes were added.
func (d *RealtimeDispatcher) NoteCreated(userID uint, noteIDs ...uint) {
	d.publishNotes(userID, RealtimeEventNoteCreated, noteIDs)
}

// NoteRemoved tells userID's streams that the notes were deleted.
func (d *RealtimeDispatcher) NoteRemoved(userID uint, noteIDs ...uint) {
	d.publishNotes(userID, RealtimeEventNoteRemoved, noteIDs)
}

func (d *RealtimeDispatcher) publishNotes(userID uint, eventType string, noteIDs []uint) {
	if len(noteIDs) == 0 {
		return
	}
	d.Publish(RealtimeMessage{
		UserID:    userID,
		EventType: eventType,
		NoteIDs:   append([]uint(nil), noteIDs...),
		Timestamp: d.clock().UTC(),
	})
}

// Publish delivers message to every stream of message.UserID without blocking.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.UserID == 0 || message.EventType == "" {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for stream := range d.streams[message.UserID] {
		select {
		case stream <- message:
		default:
		}
	}
}

// SubscriberCount reports how many streams are open for userID.
func (d *RealtimeDispatcher) SubscriberCount(userID uint) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.streams[userID])
}
