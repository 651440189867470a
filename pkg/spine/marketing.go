package spine

import (
	"time"

	"github.com/solari-labs/concierge/pkg/entity"
	"github.com/solari-labs/concierge/pkg/flow"
	"github.com/solari-labs/concierge/pkg/intent"
)

var marketingChannels = []string{"email", "sms"}

// Marketing handles campaign creation, sending and stats.
func Marketing() Def {
	return Def{
		Name: "marketing",
		Patterns: intent.Table{
			{Spine: "marketing", Intent: "createCampaign", Match: "create campaign", Base: 0.6},
			{Spine: "marketing", Intent: "createCampaign", Match: "new campaign", Base: 0.6},
			{Spine: "marketing", Intent: "sendCampaign", Match: "send campaign", Base: 0.6},
			{Spine: "marketing", Intent: "sendCampaign", Match: "send the newsletter", Base: 0.55},
			{Spine: "marketing", Intent: "sendCampaign", Match: "blast", Base: 0.45},
			{Spine: "marketing", Intent: "campaignStats", Match: "campaign stats", Base: 0.6},
			{Spine: "marketing", Intent: "campaignStats", Match: "open rate", Base: 0.55},
		},
		Required: map[string][]string{
			"createCampaign": {"name", "channel"},
			"sendCampaign":   {"campaignId"},
			"campaignStats":  {"campaignId"},
		},
		Actions: map[string]ActionBinding{
			"createCampaign": {Tool: "marketing.createCampaign", Action: "marketing.createCampaign", Sensitivity: flow.SensitivityMedium},
			"sendCampaign":   {Tool: "marketing.sendCampaign", Action: "marketing.sendCampaign", Sensitivity: flow.SensitivityHigh},
			"campaignStats":  {Tool: "marketing.campaignStats", Action: "marketing.campaignStats", Sensitivity: flow.SensitivityLow},
		},
		Extract: func(_ intent.Intent, text string, now time.Time) flow.EntityBag {
			bag := entity.Extract(text, now)
			normalized := intent.Normalize(text)
			if id, ok := entity.ID(text, "cmp"); ok {
				_ = bag.Set("campaignId", id)
			}
			if ch := keyword(normalized, marketingChannels); ch != "" {
				_ = bag.Set("channel", ch)
			}
			if name := afterMarker(normalized, "called "); name != "" {
				_ = bag.Set("name", name)
			}
			return bag
		},
	}
}
