package frames

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

type legacyDoc struct {
	Frames []struct {
		Delay int   `json:"delay"`
		Data  []int `json:"data"`
	} `json:"frames"`
}

// LoadJSON reads the legacy {"frames":[{"delay":n,"data":[r,g,b,...]}]}
// document. Data is consumed three values at a time by a raster cursor that
// walks each row left to right and wraps back to the top after the last row.
// A trailing incomplete triple is ignored.
func (s *Store) LoadJSON(r io.Reader) (LoadResult, error) {
	var doc legacyDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			log.Warn().Msg("legacy frame document is empty; keeping current frames")
			return LoadResult{}, ErrEmptySource
		}
		err = fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		log.Error().Err(err).Msg("legacy frame document rejected")
		return LoadResult{}, err
	}
	if len(doc.Frames) == 0 {
		log.Warn().Msg("legacy frame document has no frames; keeping current frames")
		return LoadResult{}, ErrEmptySource
	}

	var res LoadResult
	for _, f := range doc.Frames {
		if res.Frames == s.a.capacity {
			res.Truncated = true
			break
		}
		i := res.Frames
		s.a.clear(i)
		s.a.delays[i] = clampDelay(f.Delay)
		x, y := 0, 0
		for j := 0; j+2 < len(f.Data); j += 3 {
			s.a.SetPixel(i, x, y, Pixel{clampByte(f.Data[j]), clampByte(f.Data[j+1]), clampByte(f.Data[j+2])})
			x, y = s.next(x, y)
		}
		res.Frames++
		res.Bytes += int64(len(f.Data))
	}
	s.count.Store(int32(res.Frames))

	if res.Truncated {
		log.Warn().Int("capacity", s.a.capacity).Int("frames", len(doc.Frames)).
			Msg("legacy frame document exceeds capacity; remaining frames ignored")
		return res, fmt.Errorf("%w: capacity %d", ErrCapacityExceeded, s.a.capacity)
	}
	log.Info().Int("frames", res.Frames).Msg("legacy frames loaded")
	return res, nil
}

// next advances the raster cursor along the row, then down to the next row.
func (s *Store) next(x, y int) (int, int) {
	x++
	if x < s.a.side {
		return x, y
	}
	if y == s.a.side-1 {
		return 0, 0
	}
	return 0, y + 1
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func clampDelay(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}
