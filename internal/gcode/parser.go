package gcode

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// MoveType classifies a parsed toolpath segment.
type MoveType int

const (
	MoveRapid   MoveType = iota // G0 at constant or falling Z
	MoveFeed                    // G1 with XY travel
	MovePlunge                  // G1 straight down
	MoveRetract                 // any straight lift, and G0 with rising Z
)

// Move is one motion command in absolute coordinates.
type Move struct {
	Type     MoveType
	FromX    float64
	FromY    float64
	FromZ    float64
	ToX      float64
	ToY      float64
	ToZ      float64
	FeedRate float64
}

// Length returns the 3D distance travelled.
func (m Move) Length() float64 {
	return math.Sqrt(sq(m.ToX-m.FromX) + sq(m.ToY-m.FromY) + sq(m.ToZ-m.FromZ))
}

func sq(v float64) float64 { return v * v }

// word is a G-code address letter and its value, e.g. X1.5.
type word struct {
	letter byte
	value  float64
}

// words splits a comment-free line into address words. Words may be
// separated by spaces or run together ("G1X5F100"); malformed numbers are
// skipped.
func words(line string) []word {
	var out []word
	i := 0
	for i < len(line) {
		c := line[i]
		if c > unicode.MaxASCII || !unicode.IsLetter(rune(c)) {
			i++
			continue
		}
		j := i + 1
		for j < len(line) && strings.IndexByte("+-.0123456789", line[j]) >= 0 {
			j++
		}
		if v, err := strconv.ParseFloat(line[i+1:j], 64); err == nil {
			out = append(out, word{letter: byte(unicode.ToUpper(rune(c))), value: v})
		}
		i = j
	}
	return out
}

// uncomment drops ";" comments and parenthesised comments, including an
// unterminated one running to the end of the line.
func uncomment(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	var b strings.Builder
	depth := 0
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == '(':
			depth++
		case c == ')' && depth > 0:
			depth--
		case depth == 0:
			b.WriteByte(c)
		}
	}
	return strings.TrimSpace(b.String())
}

// machine is the modal state carried from line to line.
type machine struct {
	x, y, z float64
	feed    float64
	motion  int // 0 or 1 once a G0/G1 was seen, -1 before
}

// step applies one line and reports the resulting move, if any. A line
// with any G code other than G0/G1 (G28, G92, ...) moves nothing here.
func (m *machine) step(ws []word) (Move, bool) {
	motion := m.motion
	x, y, z, feed := m.x, m.y, m.z, m.feed
	hasAxis := false

	for _, w := range ws {
		switch w.letter {
		case 'G':
			if w.value != 0 && w.value != 1 {
				return Move{}, false
			}
			motion = int(w.value)
		case 'X':
			x, hasAxis = w.value, true
		case 'Y':
			y, hasAxis = w.value, true
		case 'Z':
			z, hasAxis = w.value, true
		case 'F':
			feed = w.value
		}
	}
	m.motion, m.feed = motion, feed
	if motion < 0 || !hasAxis {
		return Move{}, false
	}

	mv := Move{
		Type:  classify(motion == 0, m.x, m.y, m.z, x, y, z),
		FromX: m.x, FromY: m.y, FromZ: m.z,
		ToX: x, ToY: y, ToZ: z,
		FeedRate: feed,
	}
	m.x, m.y, m.z = x, y, z
	return mv, true
}

func classify(rapid bool, fromX, fromY, fromZ, toX, toY, toZ float64) MoveType {
	dz := toZ - fromZ
	lateral := fromX != toX || fromY != toY
	switch {
	case rapid && dz > 0:
		return MoveRetract
	case rapid:
		return MoveRapid
	case lateral:
		return MoveFeed
	case dz < -1e-3:
		return MovePlunge
	case dz > 1e-3:
		return MoveRetract
	default:
		return MoveFeed
	}
}

// Parse reads a program into moves, tracking absolute position and the
// modal motion mode, so a bare "X5" after a G1 is a feed move.
func Parse(code string) []Move {
	var moves []Move
	m := machine{motion: -1}
	for _, line := range strings.Split(code, "\n") {
		line = uncomment(line)
		if line == "" {
			continue
		}
		if mv, ok := m.step(words(line)); ok {
			moves = append(moves, mv)
		}
	}
	return moves
}

// Stats summarizes a program's travel.
type Stats struct {
	Moves       int     `json:"moves"`
	CutLength   float64 `json:"cut_length"`   // Feed and plunge distance
	RapidLength float64 `json:"rapid_length"` // Rapid and retract distance
	CutMinutes  float64 `json:"cut_minutes"`  // Cut distance over feed rate
}

// Summarize parses code and totals its travel.
func Summarize(code string) Stats {
	var s Stats
	for _, m := range Parse(code) {
		s.Moves++
		l := m.Length()
		if m.Type != MoveFeed && m.Type != MovePlunge {
			s.RapidLength += l
			continue
		}
		s.CutLength += l
		if m.FeedRate > 0 {
			s.CutMinutes += l / m.FeedRate
		}
	}
	return s
}
