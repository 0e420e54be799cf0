package detector

import "context"

// MatchResult is delivered on MatchAsync's result channel once the match
// completes (successfully or not).
type MatchResult struct {
	Err error
}

// MatchAsync runs Match in a background goroutine and returns a channel
// that receives exactly one MatchResult when it finishes. This decouples
// the caller from the match's duration by handing the result to a channel
// consumer instead of blocking the caller.
func (d *Detector) MatchAsync(ctx context.Context, sourceID string, params MatchParams) <-chan MatchResult {
	out := make(chan MatchResult, 1)
	go func() {
		defer close(out)
		err := d.Match(ctx, sourceID, params)
		out <- MatchResult{Err: err}
	}()
	return out
}
