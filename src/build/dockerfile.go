package build

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

// FROM [--platform=...] <image> [AS <name>]
var fromRe = regexp.MustCompile(`(?i)^FROM\s+(?:--platform=\S+\s+)?(\S+)(?:\s+AS\s+(\S+))?`)

// Stage is one FROM line of a Dockerfile.
type Stage struct {
	BaseImage string
	Name      string
	Line      int
}

// ParseStages returns the FROM stages of a Dockerfile in order. It is a
// line scanner, not a full parser; continuation lines are not joined.
func ParseStages(r io.Reader) ([]Stage, error) {
	var stages []Stage
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if m := fromRe.FindStringSubmatch(text); m != nil {
			stages = append(stages, Stage{BaseImage: m[1], Name: m[2], Line: line})
		}
	}
	return stages, sc.Err()
}

// BuildsFrom reports whether any stage of the Dockerfile starts from image.
func BuildsFrom(dockerfile, image string) bool {
	stages, err := ParseStages(strings.NewReader(dockerfile))
	if err != nil {
		return false
	}
	for _, s := range stages {
		if s.BaseImage == image {
			return true
		}
	}
	return false
}
