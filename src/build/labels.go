package build

import "github.com/sofmeright/imagetree/src/gitver"

// OCI annotation keys applied to every image.
const (
	LabelVersion  = "org.opencontainers.image.version"
	LabelRevision = "org.opencontainers.image.revision"
	LabelRefName  = "org.opencontainers.image.ref.name"
	LabelAuthors  = "org.opencontainers.image.authors"
)

// OCILabels builds the label set for a run. git may be nil outside a
// repository; empty values are omitted.
func OCILabels(version, maintainer string, git *gitver.Info) map[string]string {
	labels := map[string]string{}
	set := func(k, v string) {
		if v != "" {
			labels[k] = v
		}
	}
	set(LabelVersion, version)
	set(LabelAuthors, maintainer)
	if git != nil {
		set(LabelRevision, git.SHA)
		set(LabelRefName, git.Branch)
	}
	return labels
}
