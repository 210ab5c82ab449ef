package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/PixPMusic/gopher-keys/internal/binding"
)

// Extension is the file extension used for saved profiles
const Extension = ".midikeys"

// ErrNoProfile is returned by Load when no usable location was given
var ErrNoProfile = errors.New("no profile location given")

// Profiles saves binding stores as profile files in a directory
type Profiles struct {
	Dir string
}

// DefaultDir returns the user's Desktop, or the home directory when there is
// no Desktop folder.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	desktop := filepath.Join(home, "Desktop")
	if info, err := os.Stat(desktop); err == nil && info.IsDir() {
		return desktop, nil
	}
	return home, nil
}

// New returns Profiles rooted at dir, falling back to DefaultDir when dir is
// empty.
func New(dir string) (*Profiles, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("failed to find profile directory: %w", err)
		}
		dir = d
	}
	return &Profiles{Dir: dir}, nil
}

// fileName builds a fresh profile name. Collisions are not checked.
func fileName() string {
	return fmt.Sprintf("GopherKeys Profile %d%s", uuid.New().ID(), Extension)
}

// Save writes the store to a new file and returns its full path
func (p *Profiles) Save(store *binding.Store) (string, error) {
	if err := os.MkdirAll(p.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create profile directory: %w", err)
	}
	path := filepath.Join(p.Dir, fileName())
	if err := os.WriteFile(path, []byte(store.Serialize()), 0644); err != nil {
		return "", fmt.Errorf("failed to write profile: %w", err)
	}
	return path, nil
}

// Load clears store and fills it from the profile at path. Locations shorter
// than two characters return ErrNoProfile. A malformed file returns a
// *binding.ParseError and leaves the store empty.
func Load(path string, store *binding.Store) error {
	store.Clear()
	if len(path) < 2 {
		return ErrNoProfile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read profile: %w", err)
	}
	loaded, err := binding.Deserialize(string(data))
	if err != nil {
		return err
	}
	store.Replace(loaded)
	return nil
}

// IsParseError reports whether err came from a malformed profile rather than
// a missing or unreadable one.
func IsParseError(err error) bool {
	var perr *binding.ParseError
	return errors.As(err, &perr)
}
