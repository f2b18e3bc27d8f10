package job

// DefaultModes are the movement modes rendered when none are given.
var DefaultModes = []int{7, 8, 9, 10, 11}

// DefaultCutoffs are the energy cutoffs rendered when none are given.
var DefaultCutoffs = []float64{1.0, 2.0}

// Build returns the Cartesian product cutoffs x modes x directions, ordered
// by cutoff, then mode, then direction (positive first). Empty inputs fall
// back to DefaultCutoffs and DefaultModes.
func Build(cutoffs []float64, modes []int) []Job {
	pairs := Pairs(cutoffs, modes)
	jobs := make([]Job, 0, len(pairs)*len(Directions))
	for _, p := range pairs {
		for _, d := range Directions {
			jobs = append(jobs, p.Job(d))
		}
	}
	return jobs
}

// Pairs returns the (cutoff, mode) pairs in Build order.
func Pairs(cutoffs []float64, modes []int) []Pair {
	if len(cutoffs) == 0 {
		cutoffs = DefaultCutoffs
	}
	if len(modes) == 0 {
		modes = DefaultModes
	}
	pairs := make([]Pair, 0, len(cutoffs)*len(modes))
	for _, c := range cutoffs {
		for _, m := range modes {
			pairs = append(pairs, Pair{Cutoff: c, Mode: m})
		}
	}
	return pairs
}
