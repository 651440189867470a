package spine

import (
	"time"

	"github.com/solari-labs/concierge/pkg/entity"
	"github.com/solari-labs/concierge/pkg/flow"
	"github.com/solari-labs/concierge/pkg/intent"
)

var switchCategories = []string{
	"payments", "booking", "marketing", "crm", "analytics", "notifications",
}

// Admin handles operator controls: pausing and resuming action categories
// and verifying the audit ledger.
func Admin() Def {
	return Def{
		Name: "admin",
		Patterns: intent.Table{
			{Spine: "admin", Intent: "pauseCategory", Match: "pause", Base: 0.55},
			{Spine: "admin", Intent: "pauseCategory", Match: "kill switch", Base: 0.6},
			{Spine: "admin", Intent: "pauseCategory", Match: "disable", Base: 0.5},
			{Spine: "admin", Intent: "resumeCategory", Match: "resume", Base: 0.55},
			{Spine: "admin", Intent: "resumeCategory", Match: "re-enable", Base: 0.55},
			{Spine: "admin", Intent: "verifyLedger", Match: "verify ledger", Base: 0.65},
			{Spine: "admin", Intent: "verifyLedger", Match: "audit trail", Base: 0.5},
			{Spine: "admin", Intent: "systemStatus", Match: "system status", Base: 0.6},
		},
		Required: map[string][]string{
			"pauseCategory":  {"category", "reason"},
			"resumeCategory": {"category"},
			"verifyLedger":   {},
			"systemStatus":   {},
		},
		Actions: map[string]ActionBinding{
			"pauseCategory":  {Tool: "admin.pauseCategory", Action: "admin.pauseCategory", Sensitivity: flow.SensitivityHigh},
			"resumeCategory": {Tool: "admin.resumeCategory", Action: "admin.resumeCategory", Sensitivity: flow.SensitivityHigh},
			"verifyLedger":   {Tool: "admin.verifyLedger", Action: "admin.verifyLedger", Sensitivity: flow.SensitivityLow},
			"systemStatus":   {Tool: "admin.systemStatus", Action: "admin.systemStatus", Sensitivity: flow.SensitivityLow},
		},
		Extract: func(_ intent.Intent, text string, now time.Time) flow.EntityBag {
			bag := entity.Extract(text, now)
			normalized := intent.Normalize(text)
			if c := keyword(normalized, switchCategories); c != "" {
				_ = bag.Set("category", c)
			}
			if reason := afterMarker(normalized, "because "); reason != "" {
				_ = bag.Set("reason", reason)
			}
			return bag
		},
	}
}
