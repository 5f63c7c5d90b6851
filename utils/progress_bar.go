package utils

import (
	"context"

	"github.com/cheggaaa/pb/v3"
)

// ProgressBar renders progress over the candidate loop. It stays silent
// unless progress display was requested on the context, so JSON logs are
// not interleaved with terminal control sequences by default.
type ProgressBar struct {
	bar  *pb.ProgressBar
	show bool
}

func NewProgressBar(ctx context.Context, total int) *ProgressBar {
	show := GetCtxKeyShowProgress(ctx) && total > 0
	bar := pb.New(total)
	if show {
		bar.Start()
	}
	return &ProgressBar{
		bar:  bar,
		show: show,
	}
}

func (p *ProgressBar) Increment() {
	if p.show {
		p.bar.Increment()
	}
}

func (p *ProgressBar) Finish() {
	if p.show {
		p.bar.Finish()
	}
}
