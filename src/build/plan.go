package build

import "io"

// Step is a single image build invocation.
type Step struct {
	Name       string            // node id, e.g. "micromamba.base"
	Context    string            // build context directory
	Dockerfile string            // path to the Dockerfile, empty means <Context>/Dockerfile
	Tags       []string          // fully qualified image references
	Labels     map[string]string // OCI labels
	Platforms  []string
	Load       bool      // --load into daemon
	Push       bool      // --push to the registry
	Log        io.Writer // receives a copy of the builder's output
}
