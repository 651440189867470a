// Package spine hosts the domain spines: per-domain modules that translate
// detected intents into validated action flows. Each spine owns a pattern
// table, a required-fields table keyed by intent name, an action map with
// sensitivity tags, and domain-specific extraction. Flow construction is
// uniform across spines so the orchestrator treats every domain identically.
package spine

import (
	"fmt"
	"time"

	"github.com/solari-labs/concierge/pkg/entity"
	"github.com/solari-labs/concierge/pkg/flow"
	"github.com/solari-labs/concierge/pkg/intent"
)

// ActionBinding maps an intent to a registered tool with a sensitivity tag.
type ActionBinding struct {
	Tool        string
	Action      string
	Sensitivity flow.Sensitivity
}

// Extractor builds the entity bag for one intent from raw text.
type Extractor func(it intent.Intent, text string, now time.Time) flow.EntityBag

// Def is the static definition a table spine is built from.
type Def struct {
	Name     string
	Patterns intent.Table
	Required map[string][]string
	Actions  map[string]ActionBinding
	Extract  Extractor
}

// Spine is the shared interface every domain implements.
type Spine interface {
	Name() string
	DetectIntent(text string) []intent.Intent
	ExtractEntities(it intent.Intent, text string, now time.Time) (flow.EntityBag, []string)
	BuildFlow(it intent.Intent, bag flow.EntityBag, missing []string) []flow.Step
}

type tableSpine struct {
	def Def
}

// New builds a Spine from a static definition. A nil Extract falls back to
// the generic entity extractor.
func New(def Def) Spine {
	if def.Extract == nil {
		def.Extract = func(_ intent.Intent, text string, now time.Time) flow.EntityBag {
			return entity.Extract(text, now)
		}
	}
	return &tableSpine{def: def}
}

func (s *tableSpine) Name() string { return s.def.Name }

func (s *tableSpine) DetectIntent(text string) []intent.Intent {
	return intent.Detect(text, s.def.Patterns)
}

func (s *tableSpine) ExtractEntities(it intent.Intent, text string, now time.Time) (flow.EntityBag, []string) {
	bag := s.def.Extract(it, text, now)
	if bag == nil {
		bag = flow.EntityBag{}
	}
	return bag, entity.RequireFields(bag, s.def.Required[it.Name])
}

// BuildFlow is the uniform three-rule construction:
//  1. missing fields -> a single Ask naming exactly those fields, no guessing
//  2. no action mapping -> a single Respond stating so (fail closed)
//  3. otherwise -> a single Execute carrying tool, sensitivity and the bag
func (s *tableSpine) BuildFlow(it intent.Intent, bag flow.EntityBag, missing []string) []flow.Step {
	if len(missing) > 0 {
		prompt := fmt.Sprintf("To continue with %s I still need: %s.", it.Name, flow.MissingList(missing))
		return []flow.Step{flow.Ask(prompt, missing)}
	}
	binding, ok := s.def.Actions[it.Name]
	if !ok {
		return []flow.Step{flow.Respond(fmt.Sprintf(
			"I understood %q but no action is mapped for it, so nothing was executed.", it.Name))}
	}
	return []flow.Step{flow.NewExecute(binding.Action, binding.Tool, binding.Sensitivity, bag)}
}
