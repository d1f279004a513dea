package artifact

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/spf13/afero"
)

// Renderer renders a named template against node data.
type Renderer interface {
	Render(name string, data any) (string, error)
}

// TemplateRenderer loads templates from Dir on Fs and executes them with
// text/template and the sprig function map. Missing keys are errors.
type TemplateRenderer struct {
	Fs  afero.Fs
	Dir string

	cache map[string]*template.Template
}

// NewTemplateRenderer creates a renderer over dir on fs.
func NewTemplateRenderer(fs afero.Fs, dir string) *TemplateRenderer {
	return &TemplateRenderer{Fs: fs, Dir: dir, cache: map[string]*template.Template{}}
}

// Render executes the template file name (relative to Dir).
func (r *TemplateRenderer) Render(name string, data any) (string, error) {
	tmpl, err := r.load(name)
	if err != nil {
		return "", err
	}
	return execute(tmpl, data)
}

func (r *TemplateRenderer) load(name string) (*template.Template, error) {
	if t, ok := r.cache[name]; ok {
		return t, nil
	}
	src, err := afero.ReadFile(r.Fs, filepath.Join(r.Dir, name))
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	t, err := parse(name, string(src))
	if err != nil {
		return nil, err
	}
	if r.cache == nil {
		r.cache = map[string]*template.Template{}
	}
	r.cache[name] = t
	return t, nil
}

func parse(name, src string) (*template.Template, error) {
	t, err := template.New(name).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(src)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	return t, nil
}

func execute(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", t.Name(), err)
	}
	return b.String(), nil
}
