package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrCorruptStream marks bytes that can never become a valid JSON value.
	ErrCorruptStream = errors.New("corrupt control stream")
	// ErrFrameTooLarge is returned when a pending partial value outgrows the
	// decoder's limit and is dropped.
	ErrFrameTooLarge = errors.New("pending control frame too large")
)

const (
	// DefaultMaxCorruptRetries is how many further deliveries a corrupt
	// prefix is kept for before it is discarded.
	DefaultMaxCorruptRetries = 2
	// DefaultMaxPending bounds the unconsumed remainder.
	DefaultMaxPending = 1 << 20
)

// DecodeFrames parses a maximal run of complete JSON values from the front
// of data. It returns the decoded messages in order and the unconsumed
// remainder, which is either a partial trailing value or, when err wraps
// ErrCorruptStream, the bytes starting at the corrupt value.
//
// A complete value that is not a known message is skipped; the skip is
// reported through err (wrapping ErrUnknownMessage) while decoding continues.
func DecodeFrames(data []byte) (msgs []EngineMessage, rest []byte, err error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var (
		consumed int64
		skipped  []error
	)

	for {
		var raw json.RawMessage
		decErr := dec.Decode(&raw)
		if decErr == io.EOF {
			// Only whitespace left.
			return msgs, nil, errors.Join(skipped...)
		}
		if errors.Is(decErr, io.ErrUnexpectedEOF) {
			return msgs, data[consumed:], errors.Join(skipped...)
		}
		if decErr != nil {
			skipped = append(skipped, fmt.Errorf("%w at byte %d: %v", ErrCorruptStream, consumed, decErr))
			return msgs, data[consumed:], errors.Join(skipped...)
		}
		consumed = dec.InputOffset()

		m, uerr := Unmarshal(raw)
		if uerr != nil {
			skipped = append(skipped, uerr)
			continue
		}
		msgs = append(msgs, m)
	}
}

// Decoder accumulates bytes from successive reads and yields complete
// messages. The zero value uses the default limits.
type Decoder struct {
	// MaxCorruptRetries is the number of additional deliveries a corrupt
	// prefix survives before it is discarded. Negative means discard at once.
	MaxCorruptRetries int
	// MaxPending caps the buffered remainder in bytes.
	MaxPending int

	buf    []byte
	limits bool

	// offset is the stream position of buf[0].
	offset int64
	// corruptAt is the stream position of the corrupt value retries counts
	// deliveries for, or -1.
	corruptAt int64
	retries   int
}

// NewDecoder returns a Decoder with the default limits.
func NewDecoder() *Decoder {
	return &Decoder{
		MaxCorruptRetries: DefaultMaxCorruptRetries,
		MaxPending:        DefaultMaxPending,
		limits:            true,
		corruptAt:         -1,
	}
}

// Pending returns the number of buffered, not yet decoded bytes.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

// Feed appends p to the pending remainder and decodes every complete message.
// Messages are always valid even when err is non-nil; err describes skipped
// or discarded input and is meant for logging.
func (d *Decoder) Feed(p []byte) ([]EngineMessage, error) {
	if !d.limits {
		if d.MaxCorruptRetries == 0 {
			d.MaxCorruptRetries = DefaultMaxCorruptRetries
		}
		if d.MaxPending == 0 {
			d.MaxPending = DefaultMaxPending
		}
		d.limits = true
		d.corruptAt = -1
	}

	d.buf = append(d.buf, p...)

	var (
		out      []EngineMessage
		errs     []error
		resynced bool
	)
	for {
		msgs, rest, err := DecodeFrames(d.buf)
		out = append(out, msgs...)
		d.offset += int64(len(d.buf) - len(rest))
		d.buf = append(d.buf[:0], rest...)

		if err == nil || !errors.Is(err, ErrCorruptStream) {
			if err != nil {
				errs = append(errs, err)
			}
			d.corruptAt, d.retries = -1, 0
			break
		}

		// Retries are counted per corrupt value. Bytes reached by a resync
		// in this call were already held through their retries.
		if d.offset != d.corruptAt {
			d.corruptAt, d.retries = d.offset, 0
		}
		if !resynced && d.retries < d.MaxCorruptRetries {
			d.retries++
			errs = append(errs, err)
			break
		}

		dropped := d.resync()
		resynced = true
		errs = append(errs, fmt.Errorf("%w: discarded %d bytes: %v", ErrCorruptStream, dropped, err))
		if len(d.buf) == 0 {
			d.corruptAt, d.retries = -1, 0
			break
		}
	}

	if len(d.buf) > d.MaxPending {
		errs = append(errs, fmt.Errorf("%w: dropped %d bytes", ErrFrameTooLarge, len(d.buf)))
		d.offset += int64(len(d.buf))
		d.buf = d.buf[:0]
		d.corruptAt, d.retries = -1, 0
	}

	return out, errors.Join(errs...)
}

// resync drops bytes up to the next position that could start a top-level
// message and returns how many were dropped. At least one byte is always
// dropped.
func (d *Decoder) resync() int {
	n := len(d.buf)
	for i := 1; i < len(d.buf); i++ {
		if messageStart(d.buf, i) {
			n = i
			break
		}
	}
	d.offset += int64(n)
	d.buf = append(d.buf[:0], d.buf[n:]...)
	return n
}

// messageStart reports whether a top-level message may begin at buf[i].
// Positions inside an object, such as a key or a member value, are rejected
// so that a string there is never mistaken for a unit message.
func messageStart(buf []byte, i int) bool {
	prev := byte(0)
	for j := i - 1; j >= 0; j-- {
		if !isSpace(buf[j]) {
			prev = buf[j]
			break
		}
	}

	switch buf[i] {
	case '{':
		switch prev {
		case ':', ',', '[':
			return false
		}
		return true
	case '"':
		switch prev {
		case 0, '}', ']', '"':
		default:
			return false
		}
		end := stringEnd(buf, i)
		if end < 0 {
			return true
		}
		for _, c := range buf[end:] {
			if isSpace(c) {
				continue
			}
			switch c {
			case ':', ',', '}', ']':
				return false
			}
			break
		}
		return true
	}
	return false
}

// stringEnd returns the index just past the string literal opening at
// buf[i], or -1 when the literal is not terminated yet.
func stringEnd(buf []byte, i int) int {
	for j := i + 1; j < len(buf); j++ {
		switch buf[j] {
		case '\\':
			j++
		case '"':
			return j + 1
		}
	}
	return -1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
