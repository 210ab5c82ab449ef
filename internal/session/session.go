package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/PixPMusic/gopher-keys/internal/binding"
	"github.com/PixPMusic/gopher-keys/internal/keys"
	"github.com/PixPMusic/gopher-keys/internal/midi"
	"github.com/PixPMusic/gopher-keys/internal/prompt"
)

// State is the session lifecycle state
type State int

const (
	Stopped State = iota
	Setup
	Ready
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Setup:
		return "setup"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrTransportClosed is returned by Run when the note channel closes
var ErrTransportClosed = errors.New("note transport closed")

// Injector sends key presses to the OS
type Injector interface {
	Press(code keys.Code)
	Release(code keys.Code)
}

// keyChecker is implemented by injectors that know which keys they can send
type keyChecker interface {
	CanSend(code keys.Code) bool
}

// Prompter is the interactive text surface
type Prompter interface {
	Write(text string)
	ReadLine() (string, error)
	ClearScreen()
}

// Saver persists the binding store and returns where it went
type Saver interface {
	Save(store *binding.Store) (string, error)
}

// Options tweak session behaviour
type Options struct {
	// ForceLastDownOnLoad marks the last binding of a loaded profile as held
	// when the session starts, mirroring what finishing setup does.
	ForceLastDownOnLoad bool

	// OnSaved is called with the path of a profile saved at the end of setup
	OnSaved func(path string)
}

// Session maps MIDI notes to key toggles. The setup flow and note delivery
// run on separate goroutines; they meet only through the pending key and
// the bound signal, under mu.
type Session struct {
	mu      sync.Mutex
	state   State
	store   *binding.Store
	pending *keys.Code
	bound   chan struct{}

	injector Injector
	prompt   Prompter
	saver    Saver
	logger   *slog.Logger
	opts     Options
}

// New creates a stopped session over store
func New(store *binding.Store, injector Injector, p Prompter, saver Saver, logger *slog.Logger, opts Options) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		state:    Stopped,
		store:    store,
		bound:    make(chan struct{}, 1),
		injector: injector,
		prompt:   p,
		saver:    saver,
		logger:   logger,
		opts:     opts,
	}
}

// Start leaves Stopped: Ready when a profile was loaded, Setup otherwise.
// It does nothing once the session has started.
func (s *Session) Start(loaded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Stopped {
		return
	}
	if !loaded {
		s.state = Setup
		s.logger.Info("session: entering setup")
		return
	}
	if s.opts.ForceLastDownOnLoad {
		if last, ok := s.store.Last(); ok {
			last.IsDown = true
		}
	}
	s.state = Ready
	s.logger.Info("session: ready", "bindings", s.store.Len())
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AwaitingNote reports whether setup is waiting for a MIDI note to bind
func (s *Session) AwaitingNote() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Setup && s.pending != nil
}

// Bindings returns a copy of the current bindings
func (s *Session) Bindings() []binding.Binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]binding.Binding, 0, s.store.Len())
	for _, b := range s.store.Bindings() {
		out = append(out, *b)
	}
	return out
}

// Run consumes notes until ctx is done or the channel closes. Events already
// queued when Run is called arrived while the session was stopped and are
// discarded. If the session is in Setup, the interactive setup flow runs
// alongside on its own goroutine; a setup failure (such as prompt input
// ending) stops Run.
func (s *Session) Run(ctx context.Context, notes <-chan midi.NoteEvent) error {
	if err := s.discardQueued(notes); err != nil {
		return err
	}

	setupErr := make(chan error, 1)
	if s.State() == Setup {
		go func() { setupErr <- s.setup(ctx) }()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-setupErr:
			if err != nil {
				return err
			}
		case ev, ok := <-notes:
			if !ok {
				return ErrTransportClosed
			}
			s.logger.Debug("session: note", "note", ev.Note, "on", ev.On, "port", ev.Port)
			s.HandleNote(int(ev.Note))
		}
	}
}

func (s *Session) discardQueued(notes <-chan midi.NoteEvent) error {
	dropped := 0
	defer func() {
		if dropped > 0 {
			s.logger.Info("session: discarded notes received before start", "count", dropped)
		}
	}()
	for {
		select {
		case _, ok := <-notes:
			if !ok {
				return ErrTransportClosed
			}
			dropped++
		default:
			return nil
		}
	}
}

// HandleNote processes one note event. Note-on and note-off are not told
// apart: every event for a bound note toggles its key.
func (s *Session) HandleNote(note int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Setup:
		s.bindPending(note)
	case Ready:
		s.dispatch(note)
	}
}

// Stop enters Stopped and releases every key still held
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Stopped {
		return
	}
	for _, b := range s.store.Bindings() {
		if b.IsDown {
			s.injector.Release(b.Key)
			b.IsDown = false
		}
	}
	s.pending = nil
	s.state = Stopped
	s.logger.Info("session: stopped")
}

// bindPending must be called with mu held
func (s *Session) bindPending(note int) {
	if s.pending == nil {
		s.logger.Debug("session: note ignored, no key pending", "note", note)
		return
	}
	if _, exists := s.store.FindByNote(note); exists {
		s.logger.Debug("session: note already bound, ignored", "note", note)
		return
	}

	key := *s.pending
	s.store.Add(&binding.Binding{Note: note, Key: key, IsDown: false})
	s.pending = nil
	s.logger.Info("session: bound", "note", note, "key", key.Name())

	select {
	case s.bound <- struct{}{}:
	default:
	}
}

// dispatch must be called with mu held
func (s *Session) dispatch(note int) {
	b, ok := s.store.FindByNote(note)
	if !ok {
		s.logger.Info("session: no binding for note", "note", note)
		s.prompt.Write(prompt.Notice(fmt.Sprintf("Key %s pressed, but no valid key was found!", noteLabel(note))) + "\n")
		return
	}

	if b.IsDown {
		s.injector.Release(b.Key)
		b.IsDown = false
	} else {
		s.injector.Press(b.Key)
		b.IsDown = true
	}

	s.prompt.Write(fmt.Sprintf("Key %s changed. Key %s is toggled. Key is now down? %t\n", noteLabel(note), b.Key.Name(), b.IsDown))
}

func noteLabel(note int) string {
	return fmt.Sprintf("%s (%d)", midi.PitchName(note), note)
}

func (s *Session) setup(ctx context.Context) error {
	for {
		key, err := s.promptForKey()
		if err != nil {
			return err
		}

		s.mu.Lock()
		s.pending = &key
		s.mu.Unlock()

		s.prompt.ClearScreen()
		s.prompt.Write(prompt.Heading("===[ Setup 2/2 ]===") + "\n\n")
		s.prompt.Write(fmt.Sprintf("Please press the key on the MIDI keyboard you'd like to use for %q.\n\n", strings.ToLower(key.Name())))

		select {
		case <-s.bound:
		case <-ctx.Done():
			return ctx.Err()
		}

		more, err := s.promptContinue()
		if err != nil {
			return err
		}
		if !more {
			s.finishSetup()
			return nil
		}
	}
}

// promptForKey asks until the answer names a key the injector can send
func (s *Session) promptForKey() (keys.Code, error) {
	var notice string
	for {
		s.prompt.ClearScreen()
		s.prompt.Write(prompt.Heading("===[ Setup 1/2 ]===") + "\n\n")
		if notice != "" {
			s.prompt.Write(prompt.Notice(notice) + "\n\n")
			notice = ""
		}
		s.prompt.Write("Please type in the name of the key on the keyboard.\nExamples:\n")
		for _, ex := range keys.Examples {
			s.prompt.Write("   " + ex + "\n")
		}
		s.prompt.Write("\n")

		line, err := s.prompt.ReadLine()
		if err != nil {
			return 0, fmt.Errorf("reading key name: %w", err)
		}
		code, ok := keys.Parse(line)
		if !ok {
			s.logger.Debug("session: unknown key name", "input", line)
			continue
		}
		if kc, ok := s.injector.(keyChecker); ok && !kc.CanSend(code) {
			s.logger.Info("session: key cannot be injected", "key", code.Name())
			notice = fmt.Sprintf("Key %s cannot be sent on this system.", code.Name())
			continue
		}
		return code, nil
	}
}

// promptContinue asks until the answer is y or n
func (s *Session) promptContinue() (bool, error) {
	for {
		s.prompt.ClearScreen()
		s.prompt.Write("Done!\nWould you like to continue? [Y/N]\n\n")

		line, err := s.prompt.ReadLine()
		if err != nil {
			return false, fmt.Errorf("reading answer: %w", err)
		}
		switch strings.ToLower(line) {
		case "y":
			return true, nil
		case "n":
			return false, nil
		}
	}
}

// finishSetup marks the last binding as held, saves the profile and enters
// Ready. A failed save is reported but the bindings stay usable.
func (s *Session) finishSetup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Setup {
		return
	}
	if last, ok := s.store.Last(); ok {
		last.IsDown = true
	}

	path, err := s.saver.Save(s.store)

	s.prompt.ClearScreen()
	s.prompt.Write(prompt.Success("Ready!") + "\n")
	if err != nil {
		s.logger.Error("session: failed to save profile", "err", err)
		s.prompt.Write(prompt.Notice("Could not save config: "+err.Error()) + "\n")
	} else {
		s.logger.Info("session: profile saved", "path", path)
		s.prompt.Write("Saved config to " + path + "!\n")
		if s.opts.OnSaved != nil {
			s.opts.OnSaved(path)
		}
	}

	s.state = Ready
	s.logger.Info("session: ready", "bindings", s.store.Len())
}
