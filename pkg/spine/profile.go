package spine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/solari-labs/concierge/pkg/flow"
	"github.com/solari-labs/concierge/pkg/intent"
)

// Profile is the optional YAML overlay letting a deployment extend the
// compiled-in spine tables without a code change. Compiled-in defaults always
// remain; profile entries append patterns and override or add required-field
// lists and action bindings. DenyRules feeds the gate's CEL rule list.
type Profile struct {
	Spines    []SpineProfile `yaml:"spines"`
	DenyRules []string       `yaml:"deny_rules"`
}

// SpineProfile overlays one named spine.
type SpineProfile struct {
	Name     string                   `yaml:"name"`
	Patterns []PatternProfile         `yaml:"patterns"`
	Required map[string][]string      `yaml:"required"`
	Actions  map[string]ActionProfile `yaml:"actions"`
}

// PatternProfile is one additional pattern row.
type PatternProfile struct {
	Intent string  `yaml:"intent"`
	Match  string  `yaml:"match"`
	Base   float64 `yaml:"base"`
}

// ActionProfile is one action binding override.
type ActionProfile struct {
	Tool        string `yaml:"tool"`
	Action      string `yaml:"action"`
	Sensitivity string `yaml:"sensitivity"`
}

// LoadProfile reads a YAML profile. A missing or empty path yields a nil
// profile without error.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("spine profile read: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("spine profile unmarshal: %w", err)
	}
	return &p, nil
}

// Apply overlays the profile onto defs and returns the result. A nil profile
// returns defs unchanged.
func (p *Profile) Apply(defs []Def) []Def {
	if p == nil {
		return defs
	}
	byName := make(map[string]*SpineProfile, len(p.Spines))
	for i := range p.Spines {
		byName[p.Spines[i].Name] = &p.Spines[i]
	}
	out := make([]Def, len(defs))
	for i, def := range defs {
		overlay, ok := byName[def.Name]
		if !ok {
			out[i] = def
			continue
		}
		for _, pat := range overlay.Patterns {
			def.Patterns = append(def.Patterns, intent.Pattern{
				Spine:  def.Name,
				Intent: pat.Intent,
				Match:  pat.Match,
				Base:   pat.Base,
			})
		}
		for name, required := range overlay.Required {
			def.Required[name] = required
		}
		for name, action := range overlay.Actions {
			def.Actions[name] = ActionBinding{
				Tool:        action.Tool,
				Action:      action.Action,
				Sensitivity: flow.Sensitivity(action.Sensitivity),
			}
		}
		out[i] = def
	}
	return out
}
