package build

import "time"

// Step statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPlanned = "planned" // dry run: materialized, not built
)

// StepResult captures the outcome of a single build step.
type StepResult struct {
	Name     string
	Status   string
	Images   []string     // built image references
	Record   string       // runnable Dockerfile path, empty for intermediate stages
	Layers   []LayerEvent // parsed build layer events (from --progress=plain)
	Duration time.Duration
	Error    error
}

// CachedLayers counts the layers that were cache hits.
func (r StepResult) CachedLayers() int {
	n := 0
	for _, l := range r.Layers {
		if l.Cached {
			n++
		}
	}
	return n
}
