package gate

import "strings"

// Violation is one safety checklist finding. Critical violations deny the
// request irrespective of every other outcome.
type Violation struct {
	Rule     string
	Message  string
	Critical bool
}

// alwaysBlockedTypes is the narrower set no request may carry at all.
var alwaysBlockedTypes = map[string]bool{
	"delete_all":    true,
	"truncate":      true,
	"drop":          true,
	"factory_reset": true,
}

// secretKeys are parameter names that must never ride an action request.
var secretKeys = []string{"apikey", "secret", "token"}

// Checklist re-validates a request independently of the ordered rule list,
// stricter by construction:
//   - the source must not be llm (critical)
//   - the type must not be in the always-blocked set (critical)
//   - mutating verb classes must carry requires_confirmation
//   - parameters must not contain secret-shaped keys (critical)
func Checklist(req ActionRequest) []Violation {
	var violations []Violation

	if req.Source == SourceLLM {
		violations = append(violations, Violation{
			Rule:     "no-llm-source",
			Message:  "request sourced from generative output",
			Critical: true,
		})
	}

	if alwaysBlockedTypes[strings.ToLower(req.Type)] {
		violations = append(violations, Violation{
			Rule:     "always-blocked-type",
			Message:  "action type is always blocked",
			Critical: true,
		})
	}

	actionType := strings.ToLower(req.Type)
	if (matchesAny(actionType, dangerousVerbs) || matchesAny(actionType, lifecycleVerbs)) && !req.RequiresConfirmation {
		violations = append(violations, Violation{
			Rule:    "mutation-needs-confirmation",
			Message: "mutating action missing requires_confirmation",
		})
	}

	for key := range req.Parameters {
		lowered := strings.ToLower(key)
		for _, secret := range secretKeys {
			if strings.Contains(lowered, secret) {
				violations = append(violations, Violation{
					Rule:     "no-secret-parameters",
					Message:  "parameter " + key + " is secret-shaped",
					Critical: true,
				})
			}
		}
	}

	return violations
}
