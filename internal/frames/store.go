package frames

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

var (
	// ErrEmptySource means the source held no data; the store is unchanged.
	ErrEmptySource = errors.New("frames: empty source")
	// ErrCapacityExceeded means the source held more frames than the arena.
	// The first Capacity() frames were loaded and the rest ignored.
	ErrCapacityExceeded = errors.New("frames: source exceeds frame capacity")
	// ErrMalformedRecord means loading stopped at a bad record. Frames read
	// before it are kept and become the new frame count.
	ErrMalformedRecord = errors.New("frames: malformed record")
)

// Format names a persisted frame-sequence encoding.
type Format string

const (
	FormatBinary Format = "bin"
	FormatJSON   Format = "json"
)

// LoadResult describes what a load pass did to the store.
type LoadResult struct {
	Frames    int   `json:"frames"`
	Bytes     int64 `json:"bytes"`
	Truncated bool  `json:"truncated,omitempty"`
	Partial   bool  `json:"partial,omitempty"`
}

// Store owns the frame arena and the number of frames currently loaded.
//
// Store does no locking of its own. Load, LoadJSON and SetFrame overwrite the
// arena in place and must only run while nothing renders from it; readers
// only ever see the store between reloads.
type Store struct {
	a     *Arena
	count atomic.Int32
}

// NewStore allocates an arena for capacity frames of side x side pixels.
func NewStore(side, capacity int) *Store {
	return &Store{a: NewArena(side, capacity)}
}

func (s *Store) Side() int     { return s.a.side }
func (s *Store) Capacity() int { return s.a.capacity }
func (s *Store) Count() int    { return int(s.count.Load()) }
func (s *Store) Arena() *Arena { return s.a }

// Frame returns a view of frame i, or an invalid (all black) view when i is
// not a loaded frame.
func (s *Store) Frame(i int) View {
	if i < 0 || i >= s.Count() {
		return View{}
	}
	return View{a: s.a, frame: i}
}

// Delay returns the display time of frame i in milliseconds.
func (s *Store) Delay(i int) uint16 { return s.Frame(i).Delay() }

// RecordSize is the length of one binary record: 2 delay bytes + pixels.
func (s *Store) RecordSize() int { return 2 + s.a.FrameSize() }

// Load reads binary records {delay uint16 LE, side*side RGB row-major} until
// the source is exhausted or the arena is full.
func (s *Store) Load(r io.Reader) (LoadResult, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var res LoadResult
	var hdr [2]byte
	for res.Frames < s.a.capacity {
		n, err := io.ReadFull(br, hdr[:])
		if n == 0 && errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.abort(res, fmt.Errorf("%w: frame %d delay: %v", ErrMalformedRecord, res.Frames, err))
		}
		slot := s.a.slot(res.Frames)
		if _, err := io.ReadFull(br, slot); err != nil {
			return s.abort(res, fmt.Errorf("%w: frame %d pixels: %v", ErrMalformedRecord, res.Frames, err))
		}
		s.a.delays[res.Frames] = binary.LittleEndian.Uint16(hdr[:])
		res.Frames++
		res.Bytes += int64(s.RecordSize())
	}

	if res.Frames == 0 {
		log.Warn().Msg("frame source is empty; keeping current frames")
		return res, ErrEmptySource
	}
	s.count.Store(int32(res.Frames))

	if res.Frames == s.a.capacity {
		if _, err := br.Peek(1); err == nil {
			res.Truncated = true
			log.Warn().Int("capacity", s.a.capacity).Msg("frame source exceeds capacity; remaining frames ignored")
			return res, fmt.Errorf("%w: capacity %d", ErrCapacityExceeded, s.a.capacity)
		}
	}
	log.Info().Int("frames", res.Frames).Int64("bytes", res.Bytes).Msg("frames loaded")
	return res, nil
}

// abort ends a load at a bad record, keeping the frames completed so far.
func (s *Store) abort(res LoadResult, err error) (LoadResult, error) {
	res.Partial = true
	s.count.Store(int32(res.Frames))
	log.Error().Err(err).Int("frames", res.Frames).Msg("frame load aborted; partial reload")
	return res, err
}

// SetFrame replaces a single frame. Frames past the current count extend it.
func (s *Store) SetFrame(i int, delay uint16, rgb []byte) error {
	if i < 0 || i >= s.a.capacity {
		return fmt.Errorf("%w: frame %d", ErrCapacityExceeded, i)
	}
	if len(rgb) != s.a.FrameSize() {
		return fmt.Errorf("%w: frame %d has %d bytes, want %d", ErrMalformedRecord, i, len(rgb), s.a.FrameSize())
	}
	copy(s.a.slot(i), rgb)
	s.a.delays[i] = delay
	if i >= s.Count() {
		s.count.Store(int32(i + 1))
	}
	return nil
}

// LoadFile loads path in the given format. A missing file is treated as an
// empty source.
func (s *Store) LoadFile(path string, format Format) (LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("frame file missing; keeping current frames")
			return LoadResult{}, fmt.Errorf("%w: %s", ErrEmptySource, path)
		}
		return LoadResult{}, fmt.Errorf("open frames: %w", err)
	}
	defer f.Close()

	switch format {
	case FormatJSON:
		return s.LoadJSON(f)
	case FormatBinary, "":
		return s.Load(f)
	default:
		return LoadResult{}, fmt.Errorf("unknown frame format %q", format)
	}
}
