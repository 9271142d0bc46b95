package ics

import (
	"fmt"
	"strings"
)

// historyBlock is the slot-count growth increment of the history array.
const historyBlock = 1024

// History is the ordered provenance log of an image: an append-mostly
// array of "key\tvalue" lines. Deleting a line tombstones its slot so
// live iterators keep their positions.
type History struct {
	lines []*string
	count int // non-tombstoned slots
}

// NewHistory returns an empty history log.
func NewHistory() *History {
	return &History{lines: make([]*string, 0, historyBlock)}
}

// validateHistory rejects strings that cannot survive the header
// grammar: the field and line separators and bare CR.
func validateHistory(s string) error {
	if strings.ContainsAny(s, "\t\n\r") {
		return fmt.Errorf("%w: history string contains a separator byte", ErrIllegalParameter)
	}
	return nil
}

// historyLineLimit is what is left of LineLimit after the "history"
// token, the two field separators and the line separator.
const historyLineLimit = LineLimit - len("history") - 3

// Add appends a history line. An empty key stores just the value.
func (h *History) Add(key, value string) error {
	if err := validateHistory(key); err != nil {
		return err
	}
	if err := validateHistory(value); err != nil {
		return err
	}
	line := value
	if key != "" {
		line = key + "\t" + value
	}
	if len(line) > historyLineLimit {
		return fmt.Errorf("%w: history line of %d bytes", ErrLineOverflow, len(line))
	}
	if len(h.lines) == cap(h.lines) {
		grown := make([]*string, len(h.lines), cap(h.lines)+historyBlock)
		copy(grown, h.lines)
		h.lines = grown
	}
	h.lines = append(h.lines, &line)
	h.count++
	return nil
}

// Delete removes every line whose key matches. An empty key removes all
// lines. Matching is whole-word: "a" matches key "a" but not "ab".
// Trailing tombstones are trimmed so the array does not grow without
// bound under add/delete cycles.
func (h *History) Delete(key string) int {
	deleted := 0
	for i, line := range h.lines {
		if line == nil {
			continue
		}
		if key == "" || matchKey(*line, key) {
			h.lines[i] = nil
			h.count--
			deleted++
		}
	}
	for len(h.lines) > 0 && h.lines[len(h.lines)-1] == nil {
		h.lines = h.lines[:len(h.lines)-1]
	}
	return deleted
}

// Len returns the number of live (non-tombstoned) lines.
func (h *History) Len() int { return h.count }

// matchKey reports whether a stored line carries the given key. The
// filter is compared with a trailing separator so prefix keys do not
// match longer ones.
func matchKey(line, key string) bool {
	return strings.HasPrefix(line, key+"\t")
}

// splitLine splits a stored line into key and value. Lines added
// without a key yield an empty key.
func splitLine(line string) (key, value string) {
	if k, v, ok := strings.Cut(line, "\t"); ok {
		return k, v
	}
	return "", line
}

// HistoryIterator walks the history log. It stays valid across
// deletion of other lines; Delete and Replace act on the line the
// iterator last yielded.
type HistoryIterator struct {
	h    *History
	next int
	prev int
	key  string // filter, empty = all lines
}

// NewHistoryIterator returns an iterator over the history, optionally
// filtered to lines with the given key.
func (img *Image) NewHistoryIterator(key string) *HistoryIterator {
	it := &HistoryIterator{h: img.historyLog(), prev: -1, key: key}
	it.seek()
	return it
}

// seek advances next to the first live, matching slot at or after its
// current position.
func (it *HistoryIterator) seek() {
	for it.next < len(it.h.lines) {
		line := it.h.lines[it.next]
		if line != nil && (it.key == "" || matchKey(*line, it.key)) {
			return
		}
		it.next++
	}
}

// String yields the next matching line, or ErrEndOfHistory.
func (it *HistoryIterator) String() (string, error) {
	it.seek() // interleaved deletes may have tombstoned the cached slot
	if it.next >= len(it.h.lines) {
		return "", ErrEndOfHistory
	}
	line := *it.h.lines[it.next]
	it.prev = it.next
	it.next++
	it.seek()
	return line, nil
}

// KeyValue yields the next matching line split into key and value.
func (it *HistoryIterator) KeyValue() (key, value string, err error) {
	line, err := it.String()
	if err != nil {
		return "", "", err
	}
	key, value = splitLine(line)
	return key, value, nil
}

// Delete tombstones the line the iterator last yielded.
func (it *HistoryIterator) Delete() error {
	if it.prev < 0 || it.prev >= len(it.h.lines) || it.h.lines[it.prev] == nil {
		return ErrEndOfHistory
	}
	it.h.lines[it.prev] = nil
	it.h.count--
	it.prev = -1
	return nil
}

// Replace overwrites the line the iterator last yielded.
func (it *HistoryIterator) Replace(key, value string) error {
	if it.prev < 0 || it.prev >= len(it.h.lines) || it.h.lines[it.prev] == nil {
		return ErrEndOfHistory
	}
	if err := validateHistory(key); err != nil {
		return err
	}
	if err := validateHistory(value); err != nil {
		return err
	}
	line := value
	if key != "" {
		line = key + "\t" + value
	}
	if len(line) > historyLineLimit {
		return fmt.Errorf("%w: history line of %d bytes", ErrLineOverflow, len(line))
	}
	it.h.lines[it.prev] = &line
	return nil
}

// AddHistoryString appends a history line to the image header.
func (img *Image) AddHistoryString(key, value string) error {
	return img.historyLog().Add(key, value)
}

// DeleteHistory removes history lines with the given key; an empty key
// removes all of them.
func (img *Image) DeleteHistory(key string) int {
	if img.history == nil {
		return 0
	}
	return img.history.Delete(key)
}

// GetNumHistoryStrings returns the number of live history lines.
func (img *Image) GetNumHistoryStrings() int {
	if img.history == nil {
		return 0
	}
	return img.history.Len()
}
