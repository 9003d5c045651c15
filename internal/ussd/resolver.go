package ussd

import (
	"github.com/Vulimwa/hifadhi-ussd/internal/i18n"
	"github.com/Vulimwa/hifadhi-ussd/internal/models"
)

// VerdictKind classifies the resolver's decision for the current request.
type VerdictKind int

const (
	// VerdictPrompt means another token is needed; render Key and continue.
	VerdictPrompt VerdictKind = iota
	// VerdictReject means the latest token failed validation; re-ask the
	// same step.
	VerdictReject
	// VerdictComplete means the flow finished; Fields holds the values to
	// persist.
	VerdictComplete
	// VerdictRestartRoot means the user backed out to the root menu.
	// Remaining holds any tokens entered after the back choice; the first
	// of them selects a fresh flow.
	VerdictRestartRoot
)

// Verdict is the resolver's output for one request. It is computed fresh on
// every request and never persisted.
type Verdict struct {
	Kind      VerdictKind
	Key       i18n.Key
	Data      i18n.Data
	Fields    Fields
	Remaining []string
}

// Confirmation choice tokens.
const (
	confirmYes  = "1"
	confirmNo   = "2"
	confirmBack = "0"
)

// Resolve walks the flow's step specs against the token sequence. Tokens
// before the flow selector must already be stripped. The walk maintains a
// cursor into tokens and an accumulator of collected fields: skippable
// steps whose predicate holds advance without consuming a token, an absent
// token yields Prompt, an invalid one yields Reject, and a valid one is
// collected under the step's field name. Because the gateway retransmits
// rejected tokens as part of the history, a failed token followed by a
// later one is discarded so the later entry answers the re-asked step.
// A "no" at the confirmation step
// clears the accumulator and resumes consuming tokens from the flow's
// first step, which is how an edit round-trips under stateless
// reconstruction.
func Resolve(flow Flow, tokens []string, caller models.User, wards []string) Verdict {
	def, ok := flowDefs[flow]
	if !ok {
		return Verdict{Kind: VerdictRestartRoot}
	}

	collected := Fields{}
	cursor := 0

	for i := 0; i < len(def.steps); i++ {
		step := def.steps[i]
		env := Env{Caller: caller, Wards: wards, Collected: collected}

		if step.Skip != nil && step.Skip(env) {
			continue
		}
		if cursor >= len(tokens) {
			return promptVerdict(VerdictPrompt, step, env)
		}
		token := tokens[cursor]

		if step.Confirm {
			switch {
			case token == confirmYes:
				return Verdict{Kind: VerdictComplete, Fields: def.finalize(env)}
			case step.RootOnBack && token == confirmBack:
				return Verdict{Kind: VerdictRestartRoot, Remaining: tokens[cursor+1:]}
			case !step.RootOnBack && token == confirmNo:
				// Restart: forget everything and replay the remaining
				// tokens from the first step.
				collected = Fields{}
				cursor++
				i = -1
				continue
			default:
				if cursor < len(tokens)-1 {
					// A later entry supersedes the rejected one.
					cursor++
					i--
					continue
				}
				return promptVerdict(VerdictReject, step, env)
			}
		}

		value, err := step.Validate(token, env)
		if err != nil {
			// A rejected token stays in the transmitted history. When a
			// later token exists the caller has already answered the
			// re-ask, so the rejected one is discarded and the same step
			// consumes the replacement.
			if cursor < len(tokens)-1 {
				cursor++
				i--
				continue
			}
			return promptVerdict(VerdictReject, step, env)
		}
		collected[step.Field] = value
		cursor++
	}

	// Flows without steps (language toggle) complete on selection alone.
	env := Env{Caller: caller, Wards: wards, Collected: collected}
	return Verdict{Kind: VerdictComplete, Fields: def.finalize(env)}
}

func promptVerdict(kind VerdictKind, step Step, env Env) Verdict {
	v := Verdict{Kind: kind, Key: step.Key}
	if step.Data != nil {
		v.Data = step.Data(env)
	}
	return v
}
