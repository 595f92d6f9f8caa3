package progress

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Raw is one progress block reported by the encoder. Percent is negative when
// the encoder did not state one; OutTime is negative when unknown.
type Raw struct {
	Frame     int64
	FPS       float64
	Bitrate   string
	TotalSize int64
	OutTime   time.Duration
	Duration  time.Duration
	Speed     float64
	Percent   float64
	State     string
}

// Ended reports whether this is the encoder's final block.
func (r Raw) Ended() bool {
	return r.State == "end"
}

// Parser accumulates ffmpeg "-progress" lines into Raw blocks.
type Parser struct {
	duration time.Duration
	current  Raw
}

// NewParser returns a parser that stamps blocks with the source duration.
// A zero duration means percent cannot be derived from timestamps.
func NewParser(duration time.Duration) *Parser {
	p := &Parser{duration: duration}
	p.reset()
	return p
}

func (p *Parser) reset() {
	p.current = Raw{OutTime: -1, Percent: -1, Duration: p.duration}
}

// Feed consumes one line. It returns a completed block when the line closes
// one ("progress=continue" or "progress=end").
func (p *Parser) Feed(line string) (Raw, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return Raw{}, false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch key {
	case "frame":
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.current.Frame = v
		}
	case "fps":
		if v, ok := parseFloat(value); ok {
			p.current.FPS = v
		}
	case "bitrate":
		if value != "N/A" {
			p.current.Bitrate = value
		}
	case "total_size":
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.current.TotalSize = v
		}
	case "out_time_us", "out_time_ms":
		// ffmpeg reports microseconds under both keys.
		if v, err := strconv.ParseInt(value, 10, 64); err == nil && v >= 0 {
			p.current.OutTime = time.Duration(v) * time.Microsecond
		}
	case "out_time":
		if p.current.OutTime < 0 {
			if d, ok := parseClock(value); ok {
				p.current.OutTime = d
			}
		}
	case "speed":
		if v, ok := parseFloat(strings.TrimSuffix(value, "x")); ok {
			p.current.Speed = v
		}
	case "percent":
		if v, ok := parseFloat(strings.TrimSuffix(value, "%")); ok {
			p.current.Percent = v
		}
	case "progress":
		p.current.State = value
		block := p.current
		p.reset()
		return block, true
	}
	return Raw{}, false
}

// Scan reads r until EOF, invoking fn for each completed block.
func (p *Parser) Scan(r io.Reader, fn func(Raw)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for scanner.Scan() {
		if block, ok := p.Feed(scanner.Text()); ok && fn != nil {
			fn(block)
		}
	}
	return scanner.Err()
}

func parseFloat(value string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseClock parses "HH:MM:SS.micro" timestamps.
func parseClock(value string) (time.Duration, bool) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 {
		return 0, false
	}
	seconds, ok := parseFloat(parts[2])
	if !ok || seconds < 0 {
		return 0, false
	}
	total := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	total += time.Duration(seconds * float64(time.Second))
	return total, true
}
