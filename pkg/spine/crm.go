package spine

import (
	"time"

	"github.com/solari-labs/concierge/pkg/entity"
	"github.com/solari-labs/concierge/pkg/flow"
	"github.com/solari-labs/concierge/pkg/intent"
)

// CRM handles the client book: add, find, update, flag.
func CRM() Def {
	return Def{
		Name: "crm",
		Patterns: intent.Table{
			{Spine: "crm", Intent: "addClient", Match: "add a client", Base: 0.6},
			{Spine: "crm", Intent: "addClient", Match: "add client", Base: 0.6},
			{Spine: "crm", Intent: "addClient", Match: "new client", Base: 0.55},
			{Spine: "crm", Intent: "findClient", Match: "find client", Base: 0.6},
			{Spine: "crm", Intent: "findClient", Match: "look up client", Base: 0.6},
			{Spine: "crm", Intent: "findClient", Match: "client details", Base: 0.5},
			{Spine: "crm", Intent: "updateClient", Match: "update client", Base: 0.6},
			{Spine: "crm", Intent: "flagClient", Match: "do not book", Base: 0.65},
			{Spine: "crm", Intent: "flagClient", Match: "flag client", Base: 0.65},
		},
		Required: map[string][]string{
			"addClient":    {"name"},
			"findClient":   {"clientQuery"},
			"updateClient": {"clientId"},
			"flagClient":   {"clientId", "reason"},
		},
		Actions: map[string]ActionBinding{
			"addClient":    {Tool: "crm.addClient", Action: "crm.addClient", Sensitivity: flow.SensitivityMedium},
			"findClient":   {Tool: "crm.findClient", Action: "crm.findClient", Sensitivity: flow.SensitivityLow},
			"updateClient": {Tool: "crm.updateClient", Action: "crm.updateClient", Sensitivity: flow.SensitivityMedium},
			"flagClient":   {Tool: "crm.flagClient", Action: "crm.flagClient", Sensitivity: flow.SensitivityHigh},
		},
		Extract: func(_ intent.Intent, text string, now time.Time) flow.EntityBag {
			bag := entity.Extract(text, now)
			normalized := intent.Normalize(text)
			if id, ok := entity.ID(text, "cl"); ok {
				_ = bag.Set("clientId", id)
			}
			if q := clientQuery(normalized); q != "" {
				_ = bag.Set("clientQuery", q)
				_ = bag.Set("name", q)
			}
			if reason := afterMarker(normalized, "because "); reason != "" {
				_ = bag.Set("reason", reason)
			}
			return bag
		},
	}
}
