package spine

import (
	"time"

	"github.com/solari-labs/concierge/pkg/entity"
	"github.com/solari-labs/concierge/pkg/flow"
	"github.com/solari-labs/concierge/pkg/intent"
)

// Payments handles invoicing and refunds. Everything mutating money is
// high sensitivity and rides the confirmation workflow.
func Payments() Def {
	return Def{
		Name: "payments",
		Patterns: intent.Table{
			{Spine: "payments", Intent: "createInvoice", Match: "create invoice", Base: 0.6},
			{Spine: "payments", Intent: "createInvoice", Match: "invoice", Base: 0.5},
			{Spine: "payments", Intent: "createInvoice", Match: "bill", Base: 0.45},
			{Spine: "payments", Intent: "refund", Match: "refund", Base: 0.6},
			{Spine: "payments", Intent: "refund", Match: "money back", Base: 0.5},
			{Spine: "payments", Intent: "checkBalance", Match: "balance", Base: 0.5},
			{Spine: "payments", Intent: "listInvoices", Match: "list invoices", Base: 0.6},
			{Spine: "payments", Intent: "listInvoices", Match: "outstanding invoices", Base: 0.6},
		},
		Required: map[string][]string{
			"createInvoice": {"clientQuery", "amount"},
			"refund":        {"invoiceId"},
			"checkBalance":  {},
			"listInvoices":  {},
		},
		Actions: map[string]ActionBinding{
			"createInvoice": {Tool: "payments.createInvoice", Action: "payments.createInvoice", Sensitivity: flow.SensitivityHigh},
			"refund":        {Tool: "payments.refund", Action: "payments.refund", Sensitivity: flow.SensitivityHigh},
			"checkBalance":  {Tool: "payments.checkBalance", Action: "payments.checkBalance", Sensitivity: flow.SensitivityLow},
			"listInvoices":  {Tool: "payments.listInvoices", Action: "payments.listInvoices", Sensitivity: flow.SensitivityLow},
		},
		Extract: func(_ intent.Intent, text string, now time.Time) flow.EntityBag {
			bag := entity.Extract(text, now)
			normalized := intent.Normalize(text)
			if id, ok := entity.ID(text, "inv"); ok {
				_ = bag.Set("invoiceId", id)
			}
			if q := clientQuery(normalized); q != "" {
				_ = bag.Set("clientQuery", q)
			}
			return bag
		},
	}
}
