// internal/synthesizer/splitter.go
// Package synthesizer runs the chairman's streaming synthesis pass and
// splits its output into the answer stream and the follow-up block.
package synthesizer

import (
	"strings"
)

// Sentinel separates the chairman's answer from its follow-up questions.
// The chairman prompt instructs the model to emit it verbatim on its own
// line; everything after it is never shown as answer text.
const Sentinel = "---FOLLOW-UP-QUESTIONS---"

type splitterState int

const (
	stateScanning splitterState = iota
	stateCollectingFollowup
)

// Splitter incrementally separates a token stream around the sentinel.
// Answer text is forwarded through emit as soon as it provably cannot be
// part of the sentinel; bytes that could still begin the sentinel are held
// back until the next fragment resolves them.
type Splitter struct {
	sentinel string
	emit     func(text string)

	state    splitterState
	carry    string
	answer   strings.Builder
	followup strings.Builder
}

func NewSplitter(emit func(text string)) *Splitter {
	return &Splitter{sentinel: Sentinel, emit: emit}
}

// Feed consumes one stream fragment.
func (s *Splitter) Feed(fragment string) {
	if fragment == "" {
		return
	}
	if s.state == stateCollectingFollowup {
		s.followup.WriteString(fragment)
		return
	}

	pending := s.carry + fragment
	if idx := strings.Index(pending, s.sentinel); idx >= 0 {
		s.flush(pending[:idx])
		s.carry = ""
		s.state = stateCollectingFollowup
		s.followup.WriteString(pending[idx+len(s.sentinel):])
		return
	}

	// Hold back the longest tail that is still a sentinel prefix. It is at
	// most len(sentinel)-1 bytes; anything longer would have matched above.
	hold := longestSentinelPrefixSuffix(pending, s.sentinel)
	s.flush(pending[:len(pending)-hold])
	s.carry = pending[len(pending)-hold:]
}

// Finish flushes any held bytes and returns the assembled answer and the
// parsed follow-up questions. A stream that never produced the sentinel
// yields everything as answer and no follow-ups.
func (s *Splitter) Finish() (string, []string) {
	if s.state == stateScanning && s.carry != "" {
		s.flush(s.carry)
		s.carry = ""
	}
	return strings.TrimSpace(s.answer.String()), ParseFollowUps(s.followup.String())
}

// SentinelSeen reports whether the stream crossed into the follow-up block.
func (s *Splitter) SentinelSeen() bool {
	return s.state == stateCollectingFollowup
}

func (s *Splitter) flush(text string) {
	if text == "" {
		return
	}
	s.answer.WriteString(text)
	s.emit(text)
}

// longestSentinelPrefixSuffix returns the length of the longest suffix of
// text that is a proper prefix of sentinel.
func longestSentinelPrefixSuffix(text, sentinel string) int {
	max := len(sentinel) - 1
	if max > len(text) {
		max = len(text)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(text, sentinel[:n]) {
			return n
		}
	}
	return 0
}

// ParseFollowUps extracts up to three questions from the follow-up block.
// Lines without a question mark are discarded; enumeration markers are
// stripped.
func ParseFollowUps(block string) []string {
	var questions []string
	for _, line := range strings.Split(block, "\n") {
		line = stripEnumeration(strings.TrimSpace(line))
		if line == "" || !strings.Contains(line, "?") {
			continue
		}
		questions = append(questions, line)
		if len(questions) == 3 {
			break
		}
	}
	return questions
}

func stripEnumeration(line string) string {
	for _, prefix := range []string{"-", "*", "•"} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	// Numbered forms like "1." or "12)".
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}
