package analysis

type runOptions struct {
	forceRerun bool
}

// RunOption tunes a single PerformAnalysis or RefreshAnalysis call
type RunOption func(*runOptions)

// WithForceRerun skips the cache and asks the backend to recompute.
func WithForceRerun() RunOption {
	return func(o *runOptions) { o.forceRerun = true }
}

func collectOptions(opts []RunOption) runOptions {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
