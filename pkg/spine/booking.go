package spine

import (
	"time"

	"github.com/solari-labs/concierge/pkg/entity"
	"github.com/solari-labs/concierge/pkg/flow"
	"github.com/solari-labs/concierge/pkg/intent"
)

var bookingServices = []string{
	"haircut", "massage", "consultation", "cleaning", "training",
	"facial", "manicure", "checkup",
}

// Booking handles appointment lifecycle: create, reschedule, cancel,
// availability.
func Booking() Def {
	return Def{
		Name: "booking",
		Patterns: intent.Table{
			{Spine: "booking", Intent: "createBooking", Match: "book an appointment", Base: 0.6},
			{Spine: "booking", Intent: "createBooking", Match: "new booking", Base: 0.6},
			{Spine: "booking", Intent: "createBooking", Match: "book", Base: 0.5},
			{Spine: "booking", Intent: "createBooking", Match: "schedule", Base: 0.5},
			{Spine: "booking", Intent: "reschedule", Match: "reschedule", Base: 0.6},
			{Spine: "booking", Intent: "reschedule", Match: "move my appointment", Base: 0.6},
			{Spine: "booking", Intent: "cancelBooking", Match: "cancel my appointment", Base: 0.65},
			{Spine: "booking", Intent: "cancelBooking", Match: "cancel booking", Base: 0.65},
			{Spine: "booking", Intent: "checkAvailability", Match: "available slots", Base: 0.6},
			{Spine: "booking", Intent: "checkAvailability", Match: "availability", Base: 0.55},
			{Spine: "booking", Intent: "checkAvailability", Match: "openings", Base: 0.55},
		},
		Required: map[string][]string{
			"createBooking":     {"service", "date", "time"},
			"reschedule":        {"bookingId", "date"},
			"cancelBooking":     {"bookingId"},
			"checkAvailability": {"date"},
		},
		Actions: map[string]ActionBinding{
			"createBooking":     {Tool: "booking.createBooking", Action: "booking.createBooking", Sensitivity: flow.SensitivityHigh},
			"reschedule":        {Tool: "booking.reschedule", Action: "booking.reschedule", Sensitivity: flow.SensitivityHigh},
			"cancelBooking":     {Tool: "booking.cancel", Action: "booking.cancelBooking", Sensitivity: flow.SensitivityHigh},
			"checkAvailability": {Tool: "booking.checkAvailability", Action: "booking.checkAvailability", Sensitivity: flow.SensitivityLow},
		},
		Extract: func(_ intent.Intent, text string, now time.Time) flow.EntityBag {
			bag := entity.Extract(text, now)
			normalized := intent.Normalize(text)
			if id, ok := entity.ID(text, "bk"); ok {
				_ = bag.Set("bookingId", id)
			}
			if svc := keyword(normalized, bookingServices); svc != "" {
				_ = bag.Set("service", svc)
			}
			if q := clientQuery(normalized); q != "" {
				_ = bag.Set("clientQuery", q)
			}
			return bag
		},
	}
}
