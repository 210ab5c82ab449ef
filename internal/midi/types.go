package midi

import "fmt"

// NoteEvent is a note-on or note-off received from an input port
type NoteEvent struct {
	Port    string
	Channel uint8
	Note    uint8
	On      bool // false for note-off, including note-on with velocity 0
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// PitchName formats a MIDI note number as a pitch name, with middle C (60)
// as C4.
func PitchName(note int) string {
	if note < 0 {
		return fmt.Sprintf("?%d", note)
	}
	return fmt.Sprintf("%s%d", noteNames[note%12], note/12-1)
}
