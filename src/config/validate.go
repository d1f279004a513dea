package config

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-multierror"

	"github.com/sofmeright/imagetree/src/tree"
)

// tagRe is the docker tag grammar.
var tagRe = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]{0,127}$`)

// Validate checks structural invariants of a loaded Config.
// Returns warnings (soft issues) and a hard error if the config is invalid.
func Validate(cfg *Config) (warnings []string, err error) {
	var errs *multierror.Error

	// ── Root keys ─────────────────────────────────────────────────────────

	for _, key := range tree.RequiredRootKeys {
		if _, rerr := cfg.Tree.Root(key); rerr != nil {
			errs = multierror.Append(errs, rerr)
		}
	}

	if v := cfg.Settings.Version; v != "" {
		if _, serr := semver.NewVersion(v); serr != nil {
			warnings = append(warnings, fmt.Sprintf("version: %q is not a semantic version", v))
		}
	}
	if v := cfg.Settings.Python.Version; v != "" {
		if _, perr := PythonConstraint(v); perr != nil {
			warnings = append(warnings, fmt.Sprintf("python.version: %v", perr))
		}
	}

	// ── Nodes ─────────────────────────────────────────────────────────────

	seenTags := map[string]string{}
	for _, n := range cfg.Tree.Nodes() {
		if !n.Has(tree.AttrBuilder) {
			warnings = append(warnings, fmt.Sprintf("%s: no builder defined, building it will fail", n.ID()))
		}

		if cfg.Settings.Version == "" {
			continue
		}
		tag := tree.FormatTag(n.KeyPath(), cfg.Settings.Version)
		if !tagRe.MatchString(tag) {
			errs = multierror.Append(errs, fmt.Errorf("%s: %q is not a valid image tag", n.ID(), tag))
		}
		if other, dup := seenTags[tag]; dup {
			errs = multierror.Append(errs, fmt.Errorf("%s: tag %q collides with %s", n.ID(), tag, other))
		}
		seenTags[tag] = n.ID()
	}

	return warnings, errs.ErrorOrNil()
}

// PythonConstraint turns a python.version such as "3.11" or "3.11.4" into
// a poetry constraint pinned to the minor series ("~3.11").
func PythonConstraint(version string) (string, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return "", fmt.Errorf("%q is not a version: %w", version, err)
	}
	return fmt.Sprintf("~%d.%d", v.Major(), v.Minor()), nil
}
