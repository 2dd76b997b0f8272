package notify

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

// TemplateData carries the values interpolated into notification content.
type TemplateData struct {
	Event string
	Actor string
}

// Catalog maps notification types to their content templates.
type Catalog struct {
	templates map[string]*template.Template
}

// DefaultCatalog parses the embedded template catalog.
func DefaultCatalog() (*Catalog, error) {
	return parseCatalog(defaultTemplates)
}

// LoadCatalog reads a catalog from path, falling back to the embedded
// defaults for any type the file does not define.
func LoadCatalog(path string) (*Catalog, error) {
	base, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("notify: read template catalog: %w", err)
	}
	override, err := parseCatalog(data)
	if err != nil {
		return nil, err
	}

	for typ, tmpl := range override.templates {
		base.templates[typ] = tmpl
	}
	return base, nil
}

func parseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Types map[string]string `yaml:"types"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("notify: parse template catalog: %w", err)
	}

	c := &Catalog{templates: make(map[string]*template.Template, len(doc.Types))}
	for typ, text := range doc.Types {
		tmpl, err := template.New(typ).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("notify: template %q: %w", typ, err)
		}
		c.templates[typ] = tmpl
	}
	return c, nil
}

// Render produces the content for the given notification type.
func (c *Catalog) Render(typ string, data TemplateData) (string, error) {
	tmpl, ok := c.templates[typ]
	if !ok {
		return "", fmt.Errorf("notify: unknown notification type %q", typ)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("notify: render %q: %w", typ, err)
	}
	return sb.String(), nil
}
