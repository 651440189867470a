package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/solari-labs/concierge/pkg/fault"
	"github.com/solari-labs/concierge/pkg/registry"
)

// demoBackend is a small in-memory persistence layer standing in for the
// real CRM/payments/booking systems. It exists so the full pipeline,
// preconditions included, can be exercised from the REPL.
type demoBackend struct {
	mu       sync.Mutex
	clients  map[string]*demoClient
	invoices map[string]*demoInvoice
	bookings map[string]*demoBooking
	held     map[string]string // slotId -> bookingId
	nextID   int
}

type demoClient struct {
	ID      string
	Name    string
	Email   string
	Flagged bool // do-not-book
	Notes   string
}

type demoInvoice struct {
	ID       string
	ClientID string
	Amount   float64
	Paid     bool
	Refunded bool
}

type demoBooking struct {
	ID       string
	ClientID string
	Service  string
	SlotID   string
	Deposit  bool
}

func newDemoBackend() *demoBackend {
	return &demoBackend{
		clients: map[string]*demoClient{
			"cl_alex": {ID: "cl_alex", Name: "alex", Email: "alex@example.com"},
			"cl_dana": {ID: "cl_dana", Name: "dana", Email: "dana@example.com"},
			"cl_rudy": {ID: "cl_rudy", Name: "rudy", Flagged: true, Notes: "repeated no-shows"},
		},
		invoices: map[string]*demoInvoice{
			"inv_100": {ID: "inv_100", ClientID: "cl_alex", Amount: 120, Paid: true},
			"inv_200": {ID: "inv_200", ClientID: "cl_dana", Amount: 80, Paid: false},
		},
		bookings: map[string]*demoBooking{},
		held:     map[string]string{},
		nextID:   1000,
	}
}

func (b *demoBackend) id(prefix string) string {
	b.nextID++
	return fmt.Sprintf("%s_%d", prefix, b.nextID)
}

func (b *demoBackend) findClient(query string) *demoClient {
	// An empty query must never match; Contains("", x) is true for everyone.
	if query == "" {
		return nil
	}
	q := strings.ToLower(query)
	if c, ok := b.clients[q]; ok {
		return c
	}
	for _, c := range b.clients {
		if strings.Contains(strings.ToLower(c.Name), q) {
			return c
		}
	}
	return nil
}

// resolveClient prefers an exact clientId over a free-text query.
func (b *demoBackend) resolveClient(input map[string]any) *demoClient {
	if id := asString(input["clientId"]); id != "" {
		return b.clients[id]
	}
	return b.findClient(asString(input["clientQuery"]))
}

// registerDemoTools wires every spine-bound tool name to the demo backend.
func registerDemoTools(tools *registry.Registry) error {
	b := newDemoBackend()

	regs := []struct {
		name   string
		fn     registry.ToolFunc
		schema string
	}{
		{"booking.checkAvailability", b.checkAvailability, `{
			"type": "object",
			"required": ["date"],
			"properties": {"date": {"type": "string"}}
		}`},
		{"booking.createBooking", b.createBooking, ""},
		{"booking.reschedule", b.reschedule, ""},
		{"booking.cancel", b.cancelBooking, ""},
		{"payments.createInvoice", b.createInvoice, `{
			"type": "object",
			"required": ["clientQuery", "amount"],
			"properties": {
				"clientQuery": {"type": "string"},
				"amount": {"type": "number", "exclusiveMinimum": 0}
			}
		}`},
		{"payments.refund", b.refund, ""},
		{"payments.collectDeposit", b.collectDeposit, ""},
		{"payments.checkBalance", b.checkBalance, ""},
		{"payments.listInvoices", b.listInvoices, ""},
		{"crm.addClient", b.addClient, ""},
		{"crm.findClient", b.lookupClient, ""},
		{"crm.updateClient", b.updateClient, ""},
		{"crm.flagClient", b.flagClient, ""},
		{"marketing.createCampaign", respondStub("Campaign drafted. It won't send until you ask to send it."), ""},
		{"marketing.sendCampaign", respondStub("Campaign queued for sending."), ""},
		{"marketing.campaignStats", respondStub("Campaign stats: 412 sent, 38% open rate."), ""},
		{"analytics.revenueReport", b.revenueReport, ""},
		{"analytics.bookingStats", respondStub("14 bookings in that period, 2 cancellations."), ""},
		{"analytics.topClients", b.topClients, ""},
		{"admin.pauseCategory", respondStub("Category paused. Use the kill-switch admin path to resume."), ""},
		{"admin.resumeCategory", respondStub("Category resumed."), ""},
		{"admin.verifyLedger", respondStub("Ledger verification is run by the operator shell on shutdown."), ""},
		{"admin.systemStatus", b.systemStatus, ""},
	}
	for _, r := range regs {
		if err := tools.Register(r.name, r.fn, r.schema); err != nil {
			return err
		}
	}
	return nil
}

// respondStub returns a tool that always succeeds with a fixed message.
func respondStub(msg string) registry.ToolFunc {
	return func(_ context.Context, _ registry.Call) registry.Result {
		return registry.Ok(map[string]any{"message": msg})
	}
}

func (b *demoBackend) checkAvailability(_ context.Context, _ registry.Call) registry.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	open := []string{}
	for _, slot := range []string{"slot_0900", "slot_1100", "slot_1430", "slot_1600"} {
		if _, taken := b.held[slot]; !taken {
			open = append(open, slot)
		}
	}
	if len(open) == 0 {
		return registry.Ok(map[string]any{"message": "Nothing is open that day."})
	}
	return registry.Ok(map[string]any{"slots": open})
}

func (b *demoBackend) createBooking(_ context.Context, call registry.Call) registry.Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	var client *demoClient
	if q, _ := call.Input["clientQuery"].(string); q != "" {
		client = b.findClient(q)
		if client == nil {
			return registry.Fail(fault.CodeNotFound, fmt.Sprintf("I couldn't find a client matching %q.", q))
		}
		// A flagged do-not-book client blocks booking creation.
		if client.Flagged {
			return registry.Fail(fault.CodeStateConflict,
				fmt.Sprintf("%s is flagged do-not-book (%s), so no booking was created.", client.Name, client.Notes))
		}
	}

	slotID, _ := call.Input["slotId"].(string)
	if slotID != "" {
		if _, taken := b.held[slotID]; taken {
			return registry.Fail(fault.CodeStateConflict, "That slot was taken while you were deciding.")
		}
	}

	bk := &demoBooking{ID: b.id("bk"), Service: asString(call.Input["service"])}
	if client != nil {
		bk.ClientID = client.ID
	}
	if slotID != "" {
		bk.SlotID = slotID
		b.held[slotID] = bk.ID
	}
	b.bookings[bk.ID] = bk

	return registry.Ok(map[string]any{
		"message":         fmt.Sprintf("Booking %s created.", bk.ID),
		"bookingId":       bk.ID,
		"depositRequired": true,
		"depositAmount":   float64(20),
	})
}

func (b *demoBackend) reschedule(_ context.Context, call registry.Call) registry.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := asString(call.Input["bookingId"])
	bk, ok := b.bookings[id]
	if !ok {
		return registry.Fail(fault.CodeNotFound, fmt.Sprintf("Booking %q doesn't exist.", id))
	}
	return registry.Ok(map[string]any{"message": fmt.Sprintf("Booking %s moved.", bk.ID)})
}

func (b *demoBackend) cancelBooking(_ context.Context, call registry.Call) registry.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := asString(call.Input["bookingId"])
	bk, ok := b.bookings[id]
	if !ok {
		return registry.Fail(fault.CodeNotFound, fmt.Sprintf("Booking %q doesn't exist.", id))
	}
	delete(b.held, bk.SlotID)
	delete(b.bookings, id)
	return registry.Ok(map[string]any{"message": fmt.Sprintf("Booking %s cancelled.", id)})
}

func (b *demoBackend) createInvoice(_ context.Context, call registry.Call) registry.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := asString(call.Input["clientQuery"])
	client := b.findClient(q)
	if client == nil {
		return registry.Fail(fault.CodeNotFound, fmt.Sprintf("I couldn't find a client matching %q.", q))
	}
	amount, _ := call.Input["amount"].(float64)
	inv := &demoInvoice{ID: b.id("inv"), ClientID: client.ID, Amount: amount}
	b.invoices[inv.ID] = inv
	return registry.Ok(map[string]any{
		"message":   fmt.Sprintf("Invoice %s for $%.2f created for %s.", inv.ID, amount, client.Name),
		"invoiceId": inv.ID,
	})
}

func (b *demoBackend) refund(_ context.Context, call registry.Call) registry.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := asString(call.Input["invoiceId"])
	inv, ok := b.invoices[id]
	if !ok {
		return registry.Fail(fault.CodeNotFound, fmt.Sprintf("Invoice %q doesn't exist.", id))
	}
	// Only a paid invoice may be refunded.
	if !inv.Paid {
		return registry.Fail(fault.CodeStateConflict,
			fmt.Sprintf("Invoice %s hasn't been paid, so there's nothing to refund.", id))
	}
	if inv.Refunded {
		return registry.Fail(fault.CodeStateConflict, fmt.Sprintf("Invoice %s was already refunded.", id))
	}
	inv.Refunded = true
	return registry.Ok(map[string]any{
		"message": fmt.Sprintf("Refunded $%.2f on invoice %s.", inv.Amount, id),
	})
}

func (b *demoBackend) collectDeposit(_ context.Context, _ registry.Call) registry.Result {
	return registry.Ok(map[string]any{"message": "Deposit collected. The booking is locked in."})
}

func (b *demoBackend) checkBalance(_ context.Context, _ registry.Call) registry.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	var outstanding float64
	for _, inv := range b.invoices {
		if !inv.Paid {
			outstanding += inv.Amount
		}
	}
	return registry.Ok(map[string]any{
		"message": fmt.Sprintf("$%.2f outstanding across all invoices.", outstanding),
	})
}

func (b *demoBackend) listInvoices(_ context.Context, _ registry.Call) registry.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines := make([]string, 0, len(b.invoices))
	for _, inv := range b.invoices {
		status := "unpaid"
		if inv.Refunded {
			status = "refunded"
		} else if inv.Paid {
			status = "paid"
		}
		lines = append(lines, fmt.Sprintf("%s $%.2f (%s)", inv.ID, inv.Amount, status))
	}
	return registry.Ok(map[string]any{
		"message": "Invoices: " + strings.Join(lines, "; "),
	})
}

func (b *demoBackend) addClient(_ context.Context, call registry.Call) registry.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	name := asString(call.Input["name"])
	if name == "" {
		name = asString(call.Input["clientQuery"])
	}
	c := &demoClient{ID: b.id("cl"), Name: name, Email: asString(call.Input["email"])}
	b.clients[c.ID] = c
	return registry.Ok(map[string]any{
		"message":  fmt.Sprintf("Added %s as %s.", c.Name, c.ID),
		"clientId": c.ID,
	})
}

func (b *demoBackend) lookupClient(_ context.Context, call registry.Call) registry.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := asString(call.Input["clientQuery"])
	c := b.findClient(q)
	if c == nil {
		return registry.Fail(fault.CodeNotFound, fmt.Sprintf("No client matches %q.", q))
	}
	msg := fmt.Sprintf("%s (%s) %s", c.Name, c.ID, c.Email)
	if c.Flagged {
		msg += " [do-not-book: " + c.Notes + "]"
	}
	return registry.Ok(map[string]any{"message": msg, "clientId": c.ID})
}

func (b *demoBackend) updateClient(_ context.Context, call registry.Call) registry.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.resolveClient(call.Input)
	if c == nil {
		return registry.Fail(fault.CodeNotFound, "I couldn't find that client.")
	}
	if email := asString(call.Input["email"]); email != "" {
		c.Email = email
	}
	if notes := asString(call.Input["notes"]); notes != "" {
		c.Notes = notes
	}
	return registry.Ok(map[string]any{"message": fmt.Sprintf("Updated %s.", c.Name)})
}

func (b *demoBackend) flagClient(_ context.Context, call registry.Call) registry.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.resolveClient(call.Input)
	if c == nil {
		return registry.Fail(fault.CodeNotFound, "I couldn't find that client.")
	}
	c.Flagged = true
	if reason := asString(call.Input["reason"]); reason != "" {
		c.Notes = reason
	}
	return registry.Ok(map[string]any{"message": fmt.Sprintf("%s is now flagged do-not-book.", c.Name)})
}

func (b *demoBackend) revenueReport(_ context.Context, call registry.Call) registry.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	var paid float64
	for _, inv := range b.invoices {
		if inv.Paid && !inv.Refunded {
			paid += inv.Amount
		}
	}
	period := asString(call.Input["period"])
	return registry.Ok(map[string]any{
		"message": fmt.Sprintf("Revenue for %s: $%.2f collected.", period, paid),
	})
}

func (b *demoBackend) topClients(_ context.Context, _ registry.Call) registry.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	totals := map[string]float64{}
	for _, inv := range b.invoices {
		if inv.Paid {
			totals[inv.ClientID] += inv.Amount
		}
	}
	bestID, best := "", float64(0)
	for id, total := range totals {
		if total > best {
			bestID, best = id, total
		}
	}
	if bestID == "" {
		return registry.Fail(fault.CodeNotFound, "No client activity recorded yet.")
	}
	return registry.Ok(map[string]any{
		"message": fmt.Sprintf("Top client: %s with $%.2f paid.", b.clients[bestID].Name, best),
	})
}

func (b *demoBackend) systemStatus(_ context.Context, _ registry.Call) registry.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return registry.Ok(map[string]any{
		"message": fmt.Sprintf("%d clients, %d invoices, %d bookings.",
			len(b.clients), len(b.invoices), len(b.bookings)),
	})
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
