package build

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// LayerEvent is one completed layer parsed from buildx plain progress.
type LayerEvent struct {
	Stage       string // "stage-1", "builder", ...
	StageStep   string // "2/7"
	Instruction string // FROM, RUN, COPY, ...
	Detail      string // instruction arguments, truncated
	Cached      bool
	Duration    time.Duration // zero for cached layers
}

var (
	// #N [stage M/N] INSTRUCTION args...
	layerStartRe = regexp.MustCompile(`^#(\d+) \[([^\]]*?) ?(\d+/\d+)\] (\w+)\s*(.*)`)
	cachedRe     = regexp.MustCompile(`^#(\d+) CACHED`)
	doneRe       = regexp.MustCompile(`^#(\d+) DONE (\d+\.?\d*)s`)
)

const maxDetail = 60

// ParseBuildxOutput extracts build layers from `--progress=plain` output.
// Internal steps and layers that never finished are dropped.
func ParseBuildxOutput(output string) []LayerEvent {
	layers := map[int]*LayerEvent{}
	done := map[int]bool{}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)

		if m := layerStartRe.FindStringSubmatch(line); m != nil {
			if m[2] == "internal" {
				continue
			}
			num, _ := strconv.Atoi(m[1])
			detail := m[5]
			if len(detail) > maxDetail {
				detail = detail[:maxDetail-3] + "..."
			}
			layers[num] = &LayerEvent{Stage: m[2], StageStep: m[3], Instruction: m[4], Detail: detail}
			continue
		}
		if m := cachedRe.FindStringSubmatch(line); m != nil {
			num, _ := strconv.Atoi(m[1])
			if l, ok := layers[num]; ok {
				l.Cached = true
				done[num] = true
			}
			continue
		}
		if m := doneRe.FindStringSubmatch(line); m != nil {
			num, _ := strconv.Atoi(m[1])
			secs, _ := strconv.ParseFloat(m[2], 64)
			if l, ok := layers[num]; ok {
				l.Duration = time.Duration(secs * float64(time.Second))
				done[num] = true
			}
		}
	}

	nums := make([]int, 0, len(layers))
	for n := range layers {
		if done[n] {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)

	events := make([]LayerEvent, 0, len(nums))
	for _, n := range nums {
		events = append(events, *layers[n])
	}
	return events
}

// FormatLayerTiming returns "cached" for cache hits, otherwise the duration.
func FormatLayerTiming(e LayerEvent) string {
	switch {
	case e.Cached:
		return "cached"
	case e.Duration >= time.Minute:
		return strconv.FormatFloat(e.Duration.Minutes(), 'f', 1, 64) + "m"
	case e.Duration > 0:
		return strconv.FormatFloat(e.Duration.Seconds(), 'f', 1, 64) + "s"
	}
	return ""
}
