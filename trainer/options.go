// Package trainer implements the external training entry points of
// spec.md §6: TreeTrainer grows one StoredTree from a Dataset, ForestTrainer
// bootstrap-aggregates num_trees of them and reduces out-of-bag accounting.
package trainer

// TrainerOption configures an incidental knob on a TreeTrainer or
// ForestTrainer. Everything spec.md §6 names as a required constructor
// argument (cost_function, num_features_for_split, ...) is taken
// positionally instead — options are reserved for ambient extras the spec
// doesn't name, mirroring how the teacher reserves its own functional
// options for things like pruning strategy rather than required knobs.
type TrainerOption func(*options)

type options struct {
	logf func(string, ...interface{})
}

func newOptions(opts []TrainerOption) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// TrainLogf installs a milestone logging hook (root seeded, continuous
// features presorted, each tree finished). Nil by default — no logging library is
// introduced, matching the teacher's own one-line stderr gate.
func TrainLogf(f func(string, ...interface{})) TrainerOption {
	return func(o *options) { o.logf = f }
}

func (o options) log(format string, args ...interface{}) {
	if o.logf != nil {
		o.logf(format, args...)
	}
}
