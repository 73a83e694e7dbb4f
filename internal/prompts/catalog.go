// Package prompts holds the prompt templates sent to the text-generation
// backend. Templates live in an embedded YAML file and are rendered with
// text/template.
package prompts

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Template names.
const (
	WeatherImpact     = "weather_impact"
	SocialTrends      = "social_trends"
	SeasonalEvents    = "seasonal_events"
	GenericTask       = "generic_task"
	InventoryStrategy = "inventory_strategy"
	LogisticsPlan     = "logistics_plan"
	MarketingGenerate = "marketing_generate"
	MarketingRefine   = "marketing_refine"
	ChatSystem        = "chat_system"
	KOLLookup         = "kol_lookup"
	KOLLetter         = "kol_letter"
)

//go:embed prompts.yaml
var catalogYAML []byte

// Catalog is a parsed set of named templates. It is safe for concurrent use.
type Catalog struct {
	templates map[string]*template.Template
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(catalogYAML)
}

// MustLoad is Load for package-level initialization; the embedded file is
// covered by tests so a failure here is a build defect.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a Catalog from YAML mapping template names to bodies.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing prompt catalog: %w", err)
	}
	c := &Catalog{templates: make(map[string]*template.Template, len(raw))}
	for name, body := range raw {
		tmpl, err := template.New(name).Option("missingkey=error").Parse(body)
		if err != nil {
			return nil, fmt.Errorf("parsing prompt %s: %w", name, err)
		}
		c.templates[name] = tmpl
	}
	return c, nil
}

// Render executes the named template with data.
func (c *Catalog) Render(name string, data any) (string, error) {
	tmpl, ok := c.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering prompt %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}

// Has reports whether the catalog defines name.
func (c *Catalog) Has(name string) bool {
	_, ok := c.templates[name]
	return ok
}
