package binding

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PixPMusic/gopher-keys/internal/keys"
)

// Profile text separators
const (
	RecordSeparator = "|"
	FieldSeparator  = ","
)

// Binding ties a MIDI note to a keyboard key. IsDown tracks whether the key
// is currently held by us; it is never persisted.
type Binding struct {
	Note   int
	Key    keys.Code
	IsDown bool
}

// Store is an insertion-ordered list of bindings. It is not safe for
// concurrent use; the session serializes access.
type Store struct {
	bindings []*Binding
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{}
}

// FindByNote returns the first binding for note
func (s *Store) FindByNote(note int) (*Binding, bool) {
	for _, b := range s.bindings {
		if b.Note == note {
			return b, true
		}
	}
	return nil, false
}

// Add appends a binding. Callers check for duplicate notes first.
func (s *Store) Add(b *Binding) {
	s.bindings = append(s.bindings, b)
}

// Clear removes all bindings
func (s *Store) Clear() {
	s.bindings = nil
}

// Len returns the number of bindings
func (s *Store) Len() int {
	return len(s.bindings)
}

// Last returns the most recently added binding
func (s *Store) Last() (*Binding, bool) {
	if len(s.bindings) == 0 {
		return nil, false
	}
	return s.bindings[len(s.bindings)-1], true
}

// Bindings returns the bindings in insertion order. The pointers are shared
// with the store.
func (s *Store) Bindings() []*Binding {
	out := make([]*Binding, len(s.bindings))
	copy(out, s.bindings)
	return out
}

// Replace swaps the contents of s for those of other
func (s *Store) Replace(other *Store) {
	s.bindings = other.bindings
}

// Serialize renders the store as profile text: "key,note" records joined by
// "|" in insertion order.
func (s *Store) Serialize() string {
	records := make([]string, 0, len(s.bindings))
	for _, b := range s.bindings {
		records = append(records, strconv.Itoa(int(b.Key))+FieldSeparator+strconv.Itoa(b.Note))
	}
	return strings.Join(records, RecordSeparator)
}

// ParseError reports a malformed profile record
type ParseError struct {
	Record int    // zero-based record index
	Text   string // the offending record
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("profile record %d %q: %v", e.Record, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Deserialize parses profile text into a new store. Every binding starts
// released.
func Deserialize(text string) (*Store, error) {
	store := NewStore()
	for i, record := range strings.Split(text, RecordSeparator) {
		fields := strings.Split(record, FieldSeparator)
		if len(fields) != 2 {
			return nil, &ParseError{Record: i, Text: record, Err: fmt.Errorf("expected 2 fields, got %d", len(fields))}
		}
		key, err := parseInt(fields[0])
		if err != nil {
			return nil, &ParseError{Record: i, Text: record, Err: fmt.Errorf("key code: %w", err)}
		}
		note, err := parseInt(fields[1])
		if err != nil {
			return nil, &ParseError{Record: i, Text: record, Err: fmt.Errorf("note: %w", err)}
		}
		store.Add(&Binding{Note: note, Key: keys.Code(key), IsDown: false})
	}
	return store, nil
}

func parseInt(field string) (int, error) {
	field = strings.TrimSpace(field)
	if strings.HasPrefix(field, "+") {
		return 0, fmt.Errorf("invalid number %q", field)
	}
	return strconv.Atoi(field)
}
