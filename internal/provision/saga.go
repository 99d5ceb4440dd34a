package provision

import "context"

// step is one unit of the provisioning saga: a named action, an optional
// compensation registered once the action completed, and a flag marking
// whether this step's failure triggers the compensations accumulated so
// far. Keeping the pairs explicit lets steps be inserted without
// re-deriving the rollback logic by hand.
type step struct {
	name       string
	run        func(ctx context.Context) error
	compensate func(ctx context.Context)

	// rollbackOnFailure makes a failure of this step undo all completed
	// steps. Steps without it fail forward: whatever they left behind
	// stays (a partially-configured role is an accepted gap when nothing
	// was persisted yet).
	rollbackOnFailure bool
}

// runSaga executes steps strictly in order. Compensations run in reverse
// completion order and are best-effort: they cannot change the outcome.
func runSaga(ctx context.Context, steps []step) error {
	var completed []step
	for _, st := range steps {
		if err := st.run(ctx); err != nil {
			if st.rollbackOnFailure {
				for i := len(completed) - 1; i >= 0; i-- {
					if completed[i].compensate != nil {
						completed[i].compensate(ctx)
					}
				}
			}
			return err
		}
		completed = append(completed, st)
	}
	return nil
}
