package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PixPMusic/gopher-keys/internal/binding"
	"github.com/PixPMusic/gopher-keys/internal/keys"
	"github.com/PixPMusic/gopher-keys/internal/midi"
	"github.com/PixPMusic/gopher-keys/internal/profile"
)

type fakeInjector struct {
	mu         sync.Mutex
	calls      []string
	unsendable map[keys.Code]bool
}

func (f *fakeInjector) CanSend(code keys.Code) bool {
	return !f.unsendable[code]
}

func (f *fakeInjector) Press(code keys.Code) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("press(%d)", int(code)))
}

func (f *fakeInjector) Release(code keys.Code) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("release(%d)", int(code)))
}

func (f *fakeInjector) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakePrompt answers ReadLine from lines; closing lines ends input.
type fakePrompt struct {
	lines chan string

	mu     sync.Mutex
	out    strings.Builder
	clears int
}

func newFakePrompt(lines ...string) *fakePrompt {
	p := &fakePrompt{lines: make(chan string, 16)}
	for _, l := range lines {
		p.lines <- l
	}
	return p
}

func (p *fakePrompt) Write(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out.WriteString(text)
}

func (p *fakePrompt) ReadLine() (string, error) {
	line, ok := <-p.lines
	if !ok {
		return "", io.EOF
	}
	return line, nil
}

func (p *fakePrompt) ClearScreen() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clears++
}

func (p *fakePrompt) Output() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.String()
}

type fakeSaver struct {
	mu    sync.Mutex
	saved []string
	err   error
}

func (f *fakeSaver) Save(store *binding.Store) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, store.Serialize())
	return fmt.Sprintf("/profiles/p%d.midikeys", len(f.saved)), nil
}

func (f *fakeSaver) Saved() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.saved...)
}

type harness struct {
	session  *Session
	store    *binding.Store
	injector *fakeInjector
	prompt   *fakePrompt
	saver    *fakeSaver
}

func newHarness(t *testing.T, store *binding.Store, opts Options, lines ...string) *harness {
	t.Helper()
	if store == nil {
		store = binding.NewStore()
	}
	h := &harness{
		store:    store,
		injector: &fakeInjector{},
		prompt:   newFakePrompt(lines...),
		saver:    &fakeSaver{},
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h.session = New(store, h.injector, h.prompt, h.saver, logger, opts)
	return h
}

// run starts Run in the background and returns a func that stops it and
// yields its result.
func (h *harness) run(t *testing.T, notes <-chan midi.NoteEvent) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.session.Run(ctx, notes) }()
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(time.Second):
			t.Fatal("Run did not return")
			return nil
		}
	}
}

// waitDispatching returns once Run is past its startup discard, using an
// unbound note as a marker. Only meaningful in Ready.
func waitDispatching(t *testing.T, h *harness, notes chan<- midi.NoteEvent) {
	t.Helper()
	require.Eventually(t, func() bool {
		select {
		case notes <- midi.NoteEvent{Note: 127, On: true}:
		default:
		}
		return strings.Contains(h.prompt.Output(), "(127) pressed")
	}, time.Second, time.Millisecond)
}

func loadedStore(t *testing.T, text string) *binding.Store {
	t.Helper()
	s, err := binding.Deserialize(text)
	require.NoError(t, err)
	return s
}

func TestStartState(t *testing.T) {
	h := newHarness(t, nil, Options{})
	assert.Equal(t, Stopped, h.session.State())
	h.session.Start(false)
	assert.Equal(t, Setup, h.session.State())
	// Start only applies once.
	h.session.Start(true)
	assert.Equal(t, Setup, h.session.State())

	h = newHarness(t, loadedStore(t, "32,60"), Options{})
	h.session.Start(true)
	assert.Equal(t, Ready, h.session.State())
}

func TestReadyToggle(t *testing.T) {
	h := newHarness(t, loadedStore(t, "32,60"), Options{})
	h.session.Start(true)

	assert.Equal(t, []binding.Binding{{Note: 60, Key: keys.Space, IsDown: false}}, h.session.Bindings())

	h.session.HandleNote(60)
	assert.Equal(t, []string{"press(32)"}, h.injector.Calls())
	assert.True(t, h.session.Bindings()[0].IsDown)
	assert.Contains(t, h.prompt.Output(), "Key C4 (60) changed. Key Space is toggled. Key is now down? true")

	h.session.HandleNote(60)
	assert.Equal(t, []string{"press(32)", "release(32)"}, h.injector.Calls())
	assert.False(t, h.session.Bindings()[0].IsDown)
	assert.Contains(t, h.prompt.Output(), "Key is now down? false")
}

func TestReadyUnboundNote(t *testing.T) {
	h := newHarness(t, loadedStore(t, "32,60"), Options{})
	h.session.Start(true)

	h.session.HandleNote(61)
	assert.Empty(t, h.injector.Calls())
	assert.Contains(t, h.prompt.Output(), "Key C#4 (61) pressed, but no valid key was found!")
	assert.Equal(t, Ready, h.session.State())

	// Dispatch carries on afterwards.
	h.session.HandleNote(60)
	assert.Equal(t, []string{"press(32)"}, h.injector.Calls())
}

func TestEvenTogglesRestoreState(t *testing.T) {
	h := newHarness(t, loadedStore(t, "32,60|65,62|66,64"), Options{})
	h.session.Start(true)
	before := h.session.Bindings()

	rng := rand.New(rand.NewSource(1))
	notes := []int{60, 62, 64, 99}
	var seq []int
	for i := 0; i < 50; i++ {
		n := notes[rng.Intn(len(notes))]
		seq = append(seq, n, n)
	}
	rng.Shuffle(len(seq), func(i, j int) { seq[i], seq[j] = seq[j], seq[i] })
	for _, n := range seq {
		h.session.HandleNote(n)
	}

	assert.Equal(t, before, h.session.Bindings())
}

func TestForceLastDownOnLoad(t *testing.T) {
	h := newHarness(t, loadedStore(t, "32,60|65,62"), Options{ForceLastDownOnLoad: true})
	h.session.Start(true)

	bs := h.session.Bindings()
	assert.False(t, bs[0].IsDown)
	assert.True(t, bs[1].IsDown)

	h.session.HandleNote(62)
	assert.Equal(t, []string{"release(65)"}, h.injector.Calls())
}

func TestStoppedDropsNotes(t *testing.T) {
	h := newHarness(t, loadedStore(t, "32,60"), Options{})
	h.session.HandleNote(60)
	assert.Empty(t, h.injector.Calls())
	assert.Empty(t, h.prompt.Output())

	h.session.Start(true)
	h.session.HandleNote(60)
	h.session.Stop()
	assert.Equal(t, Stopped, h.session.State())
	// The held key is let go on stop.
	assert.Equal(t, []string{"press(32)", "release(32)"}, h.injector.Calls())

	h.session.HandleNote(60)
	assert.Len(t, h.injector.Calls(), 2)
}

func TestSetupIgnoresNotesWithoutPendingKey(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.session.Start(false)
	h.session.HandleNote(60)
	assert.Equal(t, 0, h.store.Len())
	assert.Empty(t, h.injector.Calls())
}

func TestSetupFlow(t *testing.T) {
	h := newHarness(t, nil, Options{}, "a")
	var savedPath string
	h.session.opts.OnSaved = func(p string) { savedPath = p }
	h.session.Start(false)

	notes := make(chan midi.NoteEvent, 1)
	stop := h.run(t, notes)

	require.Eventually(t, h.session.AwaitingNote, time.Second, time.Millisecond)
	assert.Contains(t, h.prompt.Output(), `use for "a"`)

	notes <- midi.NoteEvent{Note: 61, On: true}
	require.Eventually(t, func() bool { return !h.session.AwaitingNote() }, time.Second, time.Millisecond)
	assert.Equal(t, Setup, h.session.State())

	h.prompt.lines <- "n"
	require.Eventually(t, func() bool { return h.session.State() == Ready }, time.Second, time.Millisecond)

	assert.Equal(t, []binding.Binding{{Note: 61, Key: keys.A, IsDown: true}}, h.session.Bindings())
	assert.Equal(t, []string{"65,61"}, h.saver.Saved())
	assert.Equal(t, "/profiles/p1.midikeys", savedPath)
	out := h.prompt.Output()
	assert.Contains(t, out, "Ready!")
	assert.Contains(t, out, "Saved config to /profiles/p1.midikeys!")
	assert.Empty(t, h.injector.Calls())

	require.NoError(t, stop())
}

func TestSetupDuplicateNoteIgnored(t *testing.T) {
	store := binding.NewStore()
	store.Add(&binding.Binding{Note: 60, Key: keys.Space})
	h := newHarness(t, store, Options{}, "b")
	h.session.Start(false)
	stop := h.run(t, nil)

	require.Eventually(t, h.session.AwaitingNote, time.Second, time.Millisecond)

	h.session.HandleNote(60)
	h.session.HandleNote(60)
	assert.True(t, h.session.AwaitingNote())
	assert.Equal(t, 1, len(h.session.Bindings()))

	h.session.HandleNote(62)
	assert.False(t, h.session.AwaitingNote())
	assert.Equal(t, 2, len(h.session.Bindings()))

	h.prompt.lines <- "n"
	require.Eventually(t, func() bool { return h.session.State() == Ready }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"32,60|66,62"}, h.saver.Saved())

	require.NoError(t, stop())
}

func TestSetupRepromptsAndContinues(t *testing.T) {
	h := newHarness(t, nil, Options{}, "", "nope", "SPACE", "space")
	h.session.Start(false)
	stop := h.run(t, nil)

	require.Eventually(t, h.session.AwaitingNote, time.Second, time.Millisecond)
	assert.Equal(t, 4, strings.Count(h.prompt.Output(), "Setup 1/2"))

	h.session.HandleNote(40)
	h.prompt.lines <- "maybe"
	h.prompt.lines <- "Y"
	h.prompt.lines <- "delete"

	require.Eventually(t, h.session.AwaitingNote, time.Second, time.Millisecond)
	out := h.prompt.Output()
	assert.Equal(t, 2, strings.Count(out, "Would you like to continue?"))
	assert.Contains(t, out, `use for "delete"`)

	h.session.HandleNote(41)
	h.prompt.lines <- "N"
	require.Eventually(t, func() bool { return h.session.State() == Ready }, time.Second, time.Millisecond)

	assert.Equal(t, []binding.Binding{
		{Note: 40, Key: keys.Space, IsDown: false},
		{Note: 41, Key: keys.Delete, IsDown: true},
	}, h.session.Bindings())

	// After setup the notes drive keys; the forced binding releases first.
	h.session.HandleNote(41)
	h.session.HandleNote(40)
	assert.Equal(t, []string{"release(46)", "press(32)"}, h.injector.Calls())

	require.NoError(t, stop())
}

func TestSetupSaveFailureStillReady(t *testing.T) {
	h := newHarness(t, nil, Options{}, "a")
	h.saver.err = errors.New("disk full")
	h.session.Start(false)
	stop := h.run(t, nil)

	require.Eventually(t, h.session.AwaitingNote, time.Second, time.Millisecond)
	h.session.HandleNote(61)
	h.prompt.lines <- "n"
	require.Eventually(t, func() bool { return h.session.State() == Ready }, time.Second, time.Millisecond)
	assert.Contains(t, h.prompt.Output(), "Could not save config: disk full")

	require.NoError(t, stop())
}

func TestRunEndsWhenInputEnds(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.session.Start(false)
	close(h.prompt.lines)

	err := h.session.Run(context.Background(), nil)
	assert.ErrorIs(t, err, io.EOF)
}

func TestRunEndsWhenTransportCloses(t *testing.T) {
	h := newHarness(t, loadedStore(t, "32,60"), Options{})
	h.session.Start(true)

	notes := make(chan midi.NoteEvent)
	done := make(chan error, 1)
	go func() { done <- h.session.Run(context.Background(), notes) }()

	waitDispatching(t, h, notes)
	notes <- midi.NoteEvent{Note: 60, On: true}
	notes <- midi.NoteEvent{Note: 60, On: false}
	close(notes)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrTransportClosed)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, []string{"press(32)", "release(32)"}, h.injector.Calls())
}

func TestRunDiscardsNotesQueuedBeforeStart(t *testing.T) {
	h := newHarness(t, loadedStore(t, "32,60"), Options{})

	// Struck while the load prompt was still up.
	notes := make(chan midi.NoteEvent, 4)
	notes <- midi.NoteEvent{Note: 60, On: true}
	notes <- midi.NoteEvent{Note: 60, On: false}
	notes <- midi.NoteEvent{Note: 60, On: true}
	assert.Equal(t, Stopped, h.session.State())

	h.session.Start(true)
	stop := h.run(t, notes)

	waitDispatching(t, h, notes)
	assert.Empty(t, h.injector.Calls())
	assert.False(t, h.session.Bindings()[0].IsDown)

	notes <- midi.NoteEvent{Note: 60, On: true}
	require.Eventually(t, func() bool { return len(h.injector.Calls()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"press(32)"}, h.injector.Calls())

	require.NoError(t, stop())
}

func TestRunDiscardStopsOnClosedTransport(t *testing.T) {
	h := newHarness(t, loadedStore(t, "32,60"), Options{})
	h.session.Start(true)

	notes := make(chan midi.NoteEvent, 1)
	notes <- midi.NoteEvent{Note: 60, On: true}
	close(notes)

	err := h.session.Run(context.Background(), notes)
	assert.ErrorIs(t, err, ErrTransportClosed)
	assert.Empty(t, h.injector.Calls())
}

func TestSetupRejectsKeysTheInjectorCannotSend(t *testing.T) {
	h := newHarness(t, nil, Options{}, "F13", "a")
	h.injector.unsendable = map[keys.Code]bool{keys.F1 + 12: true}
	h.session.Start(false)
	stop := h.run(t, nil)

	require.Eventually(t, h.session.AwaitingNote, time.Second, time.Millisecond)
	out := h.prompt.Output()
	assert.Contains(t, out, "Key F13 cannot be sent on this system.")
	assert.Equal(t, 2, strings.Count(out, "Setup 1/2"))
	assert.Contains(t, out, `use for "a"`)

	h.session.HandleNote(61)
	h.prompt.lines <- "n"
	require.Eventually(t, func() bool { return h.session.State() == Ready }, time.Second, time.Millisecond)
	assert.Equal(t, []binding.Binding{{Note: 61, Key: keys.A, IsDown: true}}, h.session.Bindings())

	require.NoError(t, stop())
}

func TestEmptyLoadFallsBackToSetup(t *testing.T) {
	store := binding.NewStore()
	err := profile.Load("", store)
	require.ErrorIs(t, err, profile.ErrNoProfile)

	h := newHarness(t, store, Options{})
	h.session.Start(err == nil)
	assert.Equal(t, Setup, h.session.State())
	assert.Equal(t, 0, store.Len())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "setup", Setup.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "State(9)", State(9).String())
}
