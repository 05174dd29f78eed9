package genpool

import "context"

// Immediate runs every submitted job inline, synchronously, within the
// Submit call. Tests use it so create_task/apply_action return only once
// generation has actually completed, making candidate ids and artifact
// state deterministic without sleeping or polling.
type Immediate struct{}

func (Immediate) Submit(fn func(ctx context.Context)) {
	fn(context.Background())
}
