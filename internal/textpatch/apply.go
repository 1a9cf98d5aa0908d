package textpatch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConflict is returned by Apply when a hunk's context no longer
// matches the text being patched (spec section 4.5: "Patching may fail
// with a conflict when context doesn't match"). Callers translate this
// into the engine's ChangeConflict error kind.
var ErrConflict = errors.New("textpatch: hunk context mismatch")

// Apply applies patch to oldText, returning the patched text or
// ErrConflict if any hunk's context/old lines no longer match.
func Apply(oldText string, patch *Unified) (string, error) {
	oldLines := splitLines(oldText)
	var out []string
	cursor := 0 // 0-based index into oldLines already emitted

	for hi, h := range patch.Hunks {
		start := h.OldStart - 1
		if h.OldLines == 0 {
			start = h.OldStart
		}
		if start < cursor || start > len(oldLines) {
			return "", fmt.Errorf("%w: hunk %d starts at line %d, cursor at %d", ErrConflict, hi, start+1, cursor+1)
		}
		out = append(out, oldLines[cursor:start]...)
		cursor = start

		for _, line := range h.Lines {
			switch line.Kind {
			case opEqual, opDelete:
				if cursor >= len(oldLines) || oldLines[cursor] != line.Text {
					return "", fmt.Errorf("%w: hunk %d expected %q at line %d", ErrConflict, hi, line.Text, cursor+1)
				}
				if line.Kind == opEqual {
					out = append(out, line.Text)
				}
				cursor++
			case opInsert:
				out = append(out, line.Text)
			}
		}
	}
	out = append(out, oldLines[cursor:]...)
	return strings.Join(out, ""), nil
}
