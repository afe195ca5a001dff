package expect

import (
	"fmt"
	"regexp"
	"time"
)

// Match is the result of a successful expectation. Index identifies which of
// the alternative patterns matched, so callers can branch on the alternative
// instead of inspecting group presence.
type Match struct {
	Index  int
	Text   string
	Groups []string
}

// tailLimit bounds how much unconsumed output a TimeoutError carries.
const tailLimit = 512

// Expect blocks until pattern matches the session's output or timeout
// elapses. On a match the output is consumed through the end of the match.
// A zero timeout still matches immediately against already-buffered output.
func (s *Session) Expect(pattern string, timeout time.Duration) (*Match, error) {
	return s.ExpectAny([]string{pattern}, timeout)
}

// ExpectAny is Expect over a set of alternative patterns. When several
// alternatives match, the one matching earliest in the output wins, with ties
// broken by pattern order. The returned Match.Index names the winner.
func (s *Session) ExpectAny(patterns []string, timeout time.Duration) (*Match, error) {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("session %s: bad pattern %q: %w", s.Name, p, err)
		}
		res[i] = re
	}

	deadline := time.Now().Add(timeout)
	for {
		if m := s.tryMatch(res); m != nil {
			return m, nil
		}

		select {
		case <-s.eof:
			// Drain anything the pump appended before stopping.
			if m := s.tryMatch(res); m != nil {
				return m, nil
			}
			s.mu.Lock()
			s.state = Closed
			s.mu.Unlock()
			return nil, &PipeError{Name: s.Name, Op: "expect"}
		default:
		}

		remain := time.Until(deadline)
		if remain <= 0 {
			return nil, &TimeoutError{Name: s.Name, Patterns: patterns, Wait: timeout, Tail: s.tail()}
		}

		timer := time.NewTimer(remain)
		select {
		case <-s.data:
			timer.Stop()
		case <-s.eof:
			timer.Stop()
		case <-timer.C:
			return nil, &TimeoutError{Name: s.Name, Patterns: patterns, Wait: timeout, Tail: s.tail()}
		}
	}
}

// tryMatch scans the unconsumed output for the earliest match among res and,
// on success, consumes the buffer through the end of that match.
func (s *Session) tryMatch(res []*regexp.Regexp) *Match {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()

	data := s.buf.Bytes()
	best := -1
	var bestLoc []int
	for i, re := range res {
		loc := re.FindSubmatchIndex(data)
		if loc == nil {
			continue
		}
		if best == -1 || loc[0] < bestLoc[0] {
			best = i
			bestLoc = loc
		}
	}
	if best == -1 {
		return nil
	}

	m := &Match{Index: best, Text: string(data[bestLoc[0]:bestLoc[1]])}
	for g := 1; g*2 < len(bestLoc); g++ {
		if bestLoc[g*2] < 0 {
			m.Groups = append(m.Groups, "")
			continue
		}
		m.Groups = append(m.Groups, string(data[bestLoc[g*2]:bestLoc[g*2+1]]))
	}

	rest := make([]byte, len(data)-bestLoc[1])
	copy(rest, data[bestLoc[1]:])
	s.buf.Reset()
	s.buf.Write(rest)
	return m
}

func (s *Session) tail() string {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	data := s.buf.Bytes()
	if len(data) > tailLimit {
		data = data[len(data)-tailLimit:]
	}
	return string(data)
}
