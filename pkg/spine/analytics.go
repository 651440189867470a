package spine

import (
	"time"

	"github.com/solari-labs/concierge/pkg/entity"
	"github.com/solari-labs/concierge/pkg/flow"
	"github.com/solari-labs/concierge/pkg/intent"
)

var reportPeriods = []string{
	"today", "yesterday", "this week", "last week", "this month",
	"last month", "this year",
}

// Analytics handles read-only reporting. Nothing here mutates state, so every
// action is low sensitivity.
func Analytics() Def {
	return Def{
		Name: "analytics",
		Patterns: intent.Table{
			{Spine: "analytics", Intent: "revenueReport", Match: "revenue report", Base: 0.6},
			{Spine: "analytics", Intent: "revenueReport", Match: "revenue", Base: 0.5},
			{Spine: "analytics", Intent: "revenueReport", Match: "how much did we make", Base: 0.55},
			{Spine: "analytics", Intent: "bookingStats", Match: "booking stats", Base: 0.6},
			{Spine: "analytics", Intent: "bookingStats", Match: "how many bookings", Base: 0.55},
			{Spine: "analytics", Intent: "topClients", Match: "top clients", Base: 0.6},
			{Spine: "analytics", Intent: "topClients", Match: "best customers", Base: 0.55},
		},
		Required: map[string][]string{
			"revenueReport": {"period"},
			"bookingStats":  {"period"},
			"topClients":    {},
		},
		Actions: map[string]ActionBinding{
			"revenueReport": {Tool: "analytics.revenueReport", Action: "analytics.revenueReport", Sensitivity: flow.SensitivityLow},
			"bookingStats":  {Tool: "analytics.bookingStats", Action: "analytics.bookingStats", Sensitivity: flow.SensitivityLow},
			"topClients":    {Tool: "analytics.topClients", Action: "analytics.topClients", Sensitivity: flow.SensitivityLow},
		},
		Extract: func(_ intent.Intent, text string, now time.Time) flow.EntityBag {
			bag := entity.Extract(text, now)
			normalized := intent.Normalize(text)
			if p := keyword(normalized, reportPeriods); p != "" {
				_ = bag.Set("period", p)
			}
			return bag
		},
	}
}
