package midi

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// eventBuffer is the capacity of the channel returned by Listen
const eventBuffer = 128

var (
	// ErrNoInPorts is returned when no MIDI input is available
	ErrNoInPorts = errors.New("no MIDI input ports")
	// ErrPortNotFound is returned when the named input does not exist
	ErrPortNotFound = errors.New("input port not found")
)

// Manager handles MIDI input discovery and listening. A driver must be
// registered by importing one, e.g. gitlab.com/gomidi/midi/v2/drivers/rtmididrv.
type Manager struct {
	logger *slog.Logger
}

// NewManager creates a new MIDI manager
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Close cleans up the MIDI driver
func (m *Manager) Close() {
	midi.CloseDriver()
}

// ListInPorts returns the names of available MIDI input ports
func (m *Manager) ListInPorts() []string {
	ins := midi.GetInPorts()
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names
}

// GetInPort returns an input port by name
func (m *Manager) GetInPort(name string) (drivers.In, error) {
	for _, in := range midi.GetInPorts() {
		if in.String() == name {
			return in, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPortNotFound, name)
}

// DefaultInPort picks the input to use when none is configured: the last
// one enumerated.
func (m *Manager) DefaultInPort() (string, error) {
	names := m.ListInPorts()
	if len(names) == 0 {
		return "", ErrNoInPorts
	}
	return names[len(names)-1], nil
}

// NoteCallback is called when a Note On/Off event is received
type NoteCallback func(ev NoteEvent)

// StartListening opens the named input and calls callback for every note
// message. The returned func stops listening.
func (m *Manager) StartListening(inPortName string, callback NoteCallback) (func(), error) {
	inPort, err := m.GetInPort(inPortName)
	if err != nil {
		return nil, err
	}

	stop, err := midi.ListenTo(inPort, func(msg midi.Message, timestampms int32) {
		if ev, ok := decodeNote(msg); ok {
			ev.Port = inPortName
			callback(ev)
		}
	}, midi.HandleError(func(listenErr error) {
		m.logger.Warn("midi: listener error", "port", inPortName, "err", listenErr)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to start listening on %s: %w", inPortName, err)
	}

	m.logger.Info("midi: listening", "port", inPortName)
	return stop, nil
}

// Listen is StartListening with delivery through a buffered channel, so the
// driver callback never blocks. Events are dropped when the consumer falls
// behind. The channel is closed by the returned stop func.
func (m *Manager) Listen(inPortName string) (<-chan NoteEvent, func(), error) {
	return m.listenWith(func(cb NoteCallback) (func(), error) {
		return m.StartListening(inPortName, cb)
	})
}

// listenWith wires a queue to start, which opens the input
func (m *Manager) listenWith(start func(NoteCallback) (func(), error)) (<-chan NoteEvent, func(), error) {
	q := newNoteQueue(eventBuffer, m.logger)

	stopListening, err := start(func(ev NoteEvent) {
		q.push(ev)
	})
	if err != nil {
		return nil, nil, err
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			stopListening()
			q.close()
		})
	}
	return q.events, stop, nil
}

// noteQueue hands events from the driver callback to a consumer. push never
// blocks, and close may be called more than once.
type noteQueue struct {
	mu     sync.Mutex
	events chan NoteEvent
	closed bool
	logger *slog.Logger
}

func newNoteQueue(size int, logger *slog.Logger) *noteQueue {
	return &noteQueue{events: make(chan NoteEvent, size), logger: logger}
}

// push queues ev and reports whether it was accepted
func (q *noteQueue) push(ev NoteEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	select {
	case q.events <- ev:
		return true
	default:
		q.logger.Warn("midi: event dropped, consumer is behind", "port", ev.Port, "note", ev.Note)
		return false
	}
}

func (q *noteQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.events)
}

// decodeNote extracts note-on/note-off messages. A note-on with velocity 0
// is reported as a note-off.
func decodeNote(msg midi.Message) (NoteEvent, bool) {
	var channel, key, velocity uint8
	switch {
	case msg.GetNoteOn(&channel, &key, &velocity):
		return NoteEvent{Channel: channel, Note: key, On: velocity > 0}, true
	case msg.GetNoteOff(&channel, &key, &velocity):
		return NoteEvent{Channel: channel, Note: key, On: false}, true
	}
	return NoteEvent{}, false
}
