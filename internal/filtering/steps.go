package filtering

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

func newStep(initial, left int) Step {
	return Step{Initial: initial, Dropped: initial - left, Left: left}
}
