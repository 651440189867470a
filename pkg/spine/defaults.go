package spine

// Defaults returns the compiled-in definitions for the six domains.
func Defaults() []Def {
	return []Def{Booking(), CRM(), Payments(), Marketing(), Analytics(), Admin()}
}

// Build constructs spines from definitions, typically Defaults() after an
// optional profile overlay.
func Build(defs []Def) []Spine {
	out := make([]Spine, len(defs))
	for i, def := range defs {
		out[i] = New(def)
	}
	return out
}
