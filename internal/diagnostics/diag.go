package diagnostics

import (
	"errors"
	"fmt"

	"github.com/coreman2200/funtimes-holodisplay/internal/frames"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// FromLoad describes the outcome of a frame reload.
func FromLoad(res frames.LoadResult, err error) Diagnostic {
	ev := map[string]any{
		"frames": res.Frames,
		"bytes":  res.Bytes,
	}
	switch {
	case err == nil:
		return Diagnostic{
			Severity: Info,
			Code:     "LOAD_OK",
			Summary:  fmt.Sprintf("loaded %d frame(s)", res.Frames),
			Evidence: ev,
		}
	case errors.Is(err, frames.ErrEmptySource):
		return Diagnostic{
			Severity:       Warn,
			Code:           "LOAD_EMPTY",
			Summary:        "image source was empty; previous frames kept",
			Detail:         err.Error(),
			SuggestedFixes: []string{"upload a frame sequence", "check image_path"},
			Evidence:       ev,
		}
	case errors.Is(err, frames.ErrCapacityExceeded):
		return Diagnostic{
			Severity:       Warn,
			Code:           "LOAD_TRUNCATED",
			Summary:        fmt.Sprintf("only the first %d frame(s) fit", res.Frames),
			Detail:         err.Error(),
			SuggestedFixes: []string{"shorten the animation", "raise max_frames"},
			Evidence:       ev,
		}
	case errors.Is(err, frames.ErrMalformedRecord):
		return Diagnostic{
			Severity:       Err,
			Code:           "LOAD_MALFORMED",
			Summary:        fmt.Sprintf("frame data ended mid-record after %d frame(s)", res.Frames),
			Detail:         err.Error(),
			LikelyCauses:   []string{"interrupted upload", "image exported at the wrong size"},
			SuggestedFixes: []string{"re-export at the display's image size"},
			Evidence:       ev,
		}
	}
	return Diagnostic{
		Severity: Err,
		Code:     "LOAD_FAILED",
		Summary:  "frame reload failed",
		Detail:   err.Error(),
		Evidence: ev,
	}
}
