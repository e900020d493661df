package reply

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/text/unicode/norm"

	"github.com/MrWong99/lingobot/internal/correction"
	"github.com/MrWong99/lingobot/internal/observe"
)

// ErrEmptyInput is returned by [Service.Analyze] for blank input.
var ErrEmptyInput = errors.New("reply: empty input")

// Analyzer runs the correction pipeline. [*correction.Pipeline] satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*correction.Result, error)
}

var _ Analyzer = (*correction.Pipeline)(nil)

// Service is the request boundary. It is safe for concurrent use.
type Service struct {
	analyzer atomic.Pointer[analyzerRef]
}

type analyzerRef struct{ Analyzer }

// NewService returns a Service around a.
func NewService(a Analyzer) *Service {
	s := &Service{}
	s.Swap(a)
	return s
}

// Swap replaces the analyzer for subsequent requests. Requests already in
// flight finish on the analyzer they started with.
func (s *Service) Swap(a Analyzer) {
	s.analyzer.Store(&analyzerRef{a})
}

// Prepare trims text and converts it to Unicode normalization form C.
func Prepare(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// Analyze prepares text and runs the pipeline. Blank input yields
// [ErrEmptyInput] without touching the pipeline. A panic inside the
// analyzer is returned as an error so one bad request cannot take down
// the surface serving it.
func (s *Service) Analyze(ctx context.Context, text string) (res *correction.Result, err error) {
	text = Prepare(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("reply: analysis panicked: %v", r)
		}
	}()
	return s.analyzer.Load().Analyze(ctx, text)
}

// Reply answers one utterance with a markdown reply. It never fails: blank
// input yields [EmptyPrompt] and pipeline errors are rendered as text.
func (s *Service) Reply(ctx context.Context, text string) string {
	res, err := s.Analyze(ctx, text)
	switch {
	case errors.Is(err, ErrEmptyInput):
		return EmptyPrompt
	case err != nil:
		observe.Logger(ctx).Error("reply: analysis failed", "err", err)
		return FormatError(err)
	}
	return Format(res)
}
