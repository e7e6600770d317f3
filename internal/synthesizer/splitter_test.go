// internal/synthesizer/splitter_test.go
package synthesizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// feedAll pushes the input through the splitter in fragments of the given
// size, collecting everything the splitter emits as answer text.
func feedAll(input string, fragmentSize int) (emitted []string, answer string, followUps []string) {
	s := NewSplitter(func(text string) {
		emitted = append(emitted, text)
	})
	for i := 0; i < len(input); i += fragmentSize {
		end := i + fragmentSize
		if end > len(input) {
			end = len(input)
		}
		s.Feed(input[i:end])
	}
	answer, followUps = s.Finish()
	return emitted, answer, followUps
}

func TestSplitter_SentinelAbsent(t *testing.T) {
	input := "The statute of limitations for written contracts is three years."

	emitted, answer, followUps := feedAll(input, 7)

	assert.Equal(t, input, answer)
	assert.Equal(t, input, strings.Join(emitted, ""))
	assert.Empty(t, followUps)
}

func TestSplitter_SentinelInMiddle(t *testing.T) {
	input := "The answer is yes.\n" + Sentinel + "\nWhat are the exceptions?\nDoes this apply retroactively?"

	for _, size := range []int{1, 3, 8, 100, len(input)} {
		emitted, answer, followUps := feedAll(input, size)

		assert.Equal(t, "The answer is yes.", answer, "fragment size %d", size)
		assert.NotContains(t, strings.Join(emitted, ""), Sentinel, "fragment size %d", size)
		assert.Equal(t, []string{"What are the exceptions?", "Does this apply retroactively?"}, followUps, "fragment size %d", size)
	}
}

func TestSplitter_SentinelAtStart(t *testing.T) {
	input := Sentinel + "\nIs this binding?"

	emitted, answer, followUps := feedAll(input, 5)

	assert.Empty(t, emitted)
	assert.Empty(t, answer)
	assert.Equal(t, []string{"Is this binding?"}, followUps)
}

func TestSplitter_SentinelSplitAcrossFragments(t *testing.T) {
	s := NewSplitter(func(string) {})
	half := len(Sentinel) / 2
	s.Feed("Answer text. " + Sentinel[:half])
	s.Feed(Sentinel[half:] + "\nQuestion one?")

	answer, followUps := s.Finish()
	assert.Equal(t, "Answer text.", answer)
	assert.Equal(t, []string{"Question one?"}, followUps)
	assert.True(t, s.SentinelSeen())
}

func TestSplitter_NeverLeaksPartialSentinel(t *testing.T) {
	var emitted []string
	s := NewSplitter(func(text string) {
		emitted = append(emitted, text)
	})

	// A prefix of the sentinel arrives and the stream ends without ever
	// completing it. The held bytes must flush as answer text at EOF.
	s.Feed("Dashes ahead: ")
	s.Feed("---FOLLOW")
	for _, fragment := range emitted {
		assert.NotContains(t, fragment, "---FOLLOW")
	}

	answer, followUps := s.Finish()
	assert.Equal(t, "Dashes ahead: ---FOLLOW", answer)
	assert.Empty(t, followUps)
	assert.False(t, s.SentinelSeen())
}

func TestSplitter_FalseSentinelPrefixResolves(t *testing.T) {
	var emitted []string
	s := NewSplitter(func(text string) {
		emitted = append(emitted, text)
	})

	s.Feed("a---FOLLOW")
	s.Feed("ING the precedent, the court held...")

	answer, followUps := s.Finish()
	assert.Equal(t, "a---FOLLOWING the precedent, the court held...", answer)
	assert.Equal(t, answer, strings.Join(emitted, ""))
	assert.Empty(t, followUps)
}

func TestParseFollowUps(t *testing.T) {
	tests := []struct {
		name     string
		block    string
		expected []string
	}{
		{
			name:     "plain lines",
			block:    "What is the penalty?\nCan it be appealed?",
			expected: []string{"What is the penalty?", "Can it be appealed?"},
		},
		{
			name:     "numbered and bulleted",
			block:    "1. First question?\n- Second question?\n* Third question?",
			expected: []string{"First question?", "Second question?", "Third question?"},
		},
		{
			name:     "paren numbering and unicode bullet",
			block:    "1) Alpha?\n• Beta?",
			expected: []string{"Alpha?", "Beta?"},
		},
		{
			name:     "capped at three",
			block:    "A?\nB?\nC?\nD?\nE?",
			expected: []string{"A?", "B?", "C?"},
		},
		{
			name:     "non-questions dropped",
			block:    "Here are some follow-ups:\nWhat next?\nThanks for asking",
			expected: []string{"What next?"},
		},
		{
			name:     "empty block",
			block:    "\n  \n",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseFollowUps(tt.block))
		})
	}
}
