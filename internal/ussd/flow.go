// Package ussd implements the stateless session decoder for the Hifadhi
// Link short code.
//
// Every gateway callback carries the full `*`-delimited history of entries
// for the session; this package re-derives the active flow, the current
// step and the response from that history alone. The flow tree model in
// this file declares each menu branch as an ordered list of step specs
// whose skip predicates and validators are pure functions over the caller
// context and the values collected so far.
package ussd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Vulimwa/hifadhi-ussd/internal/i18n"
	"github.com/Vulimwa/hifadhi-ussd/internal/models"
)

// Flow identifies one top-level menu branch.
type Flow string

const (
	FlowToggleLanguage Flow = "toggle-language"
	FlowRegister       Flow = "register"
	FlowReportIncident Flow = "report-incident"
	FlowCheckAlerts    Flow = "check-alerts"
	FlowViewTips       Flow = "view-tips"
	FlowViewContacts   Flow = "view-contacts"
)

// FlowForSelector maps the first token of a session to its flow.
func FlowForSelector(selector string) (Flow, bool) {
	switch selector {
	case "0":
		return FlowToggleLanguage, true
	case "1":
		return FlowRegister, true
	case "2":
		return FlowReportIncident, true
	case "3":
		return FlowCheckAlerts, true
	case "4":
		return FlowViewTips, true
	case "5":
		return FlowViewContacts, true
	default:
		return "", false
	}
}

// Fields is the accumulator of validated step values, keyed by field name.
type Fields map[string]string

// Env is the read-only resolution environment: the caller's known profile,
// the configured ward list, and what the flow has collected so far.
type Env struct {
	Caller    models.User
	Wards     []string
	Collected Fields
}

// Field names used by the flow definitions.
const (
	FieldName        = "name"
	FieldWard        = "ward"
	FieldVillage     = "village"
	FieldVillageMode = "village_mode"
	FieldNote        = "note"
	FieldSpecies     = "species"
	FieldUrgency     = "urgency"
	FieldType        = "type"
)

// Village mode values collected by the use-or-edit step.
const (
	villageModeUse  = "use"
	villageModeEdit = "edit"
)

// Step is one question within a flow. Validate maps a raw token to its
// stored value. Skip, when set, drops the step from the effective sequence
// for the current environment. Data, when set, supplies the render payload
// for the step's prompt.
type Step struct {
	Key      i18n.Key
	Field    string
	Skip     func(env Env) bool
	Validate func(token string, env Env) (string, error)
	Data     func(env Env) i18n.Data

	// Confirm marks the flow's final yes/no step. RootOnBack means the
	// "back" choice returns to the root menu instead of restarting the
	// flow's first step.
	Confirm    bool
	RootOnBack bool
}

// flowDef declares one menu branch: its ordered steps and how to assemble
// the final field set, including values pre-filled from the caller profile.
type flowDef struct {
	flow     Flow
	steps    []Step
	finalize func(env Env) Fields
}

var flowDefs map[Flow]flowDef

// Assigned in init rather than a composite-literal initializer: finalizedData
// closures reference flowDefs, which the compiler would otherwise flag as an
// initialization cycle.
func init() {
	flowDefs = map[Flow]flowDef{
		FlowToggleLanguage: {
			flow: FlowToggleLanguage,
			// No steps: selecting the branch is the whole interaction.
			finalize: func(env Env) Fields { return Fields{} },
		},

		FlowRegister: {
			flow: FlowRegister,
			steps: []Step{
				{Key: i18n.KeyEnterName, Field: FieldName, Validate: validateName},
				{Key: i18n.KeySelectWard, Field: FieldWard, Validate: validateWard, Data: wardData},
				{Key: i18n.KeyEnterVillage, Field: FieldVillage, Validate: validateVillage},
				{Key: i18n.KeyRegConfirm, Confirm: true, Data: finalizedData(FlowRegister)},
			},
			finalize: func(env Env) Fields {
				return Fields{
					FieldName:    env.Collected[FieldName],
					FieldWard:    env.Collected[FieldWard],
					FieldVillage: env.Collected[FieldVillage],
				}
			},
		},

		FlowReportIncident: {
			flow: FlowReportIncident,
			steps: []Step{
				{Key: i18n.KeyIncidentSpecies, Field: FieldSpecies, Validate: choiceValidator(speciesChoices)},
				{Key: i18n.KeyIncidentUrgency, Field: FieldUrgency, Validate: choiceValidator(urgencyChoices)},
				{Key: i18n.KeyIncidentType, Field: FieldType, Validate: choiceValidator(typeChoices)},
				{Key: i18n.KeySelectWard, Field: FieldWard, Validate: validateWard, Data: wardData,
					Skip: callerHasWard},
				{Key: i18n.KeyVillageUseOrEdit, Field: FieldVillageMode, Validate: validateVillageMode,
					Skip: func(env Env) bool { return env.Caller.Village == "" },
					Data: callerVillageData},
				{Key: i18n.KeyEnterVillage, Field: FieldVillage, Validate: validateVillage,
					Skip: func(env Env) bool {
						return env.Caller.Village != "" && env.Collected[FieldVillageMode] != villageModeEdit
					}},
				{Key: i18n.KeyEnterNote, Field: FieldNote, Validate: validateNote},
				{Key: i18n.KeyIncidentConfirm, Confirm: true, Data: finalizedData(FlowReportIncident)},
			},
			finalize: func(env Env) Fields {
				ward := env.Collected[FieldWard]
				if ward == "" {
					ward = env.Caller.Ward
				}
				village := env.Collected[FieldVillage]
				if village == "" {
					village = env.Caller.Village
				}
				return Fields{
					FieldSpecies: env.Collected[FieldSpecies],
					FieldUrgency: env.Collected[FieldUrgency],
					FieldType:    env.Collected[FieldType],
					FieldWard:    ward,
					FieldVillage: village,
					FieldNote:    env.Collected[FieldNote],
				}
			},
		},

		FlowCheckAlerts: {
			flow: FlowCheckAlerts,
			steps: []Step{
				{Key: i18n.KeySelectWard, Field: FieldWard, Validate: validateWard, Data: wardData,
					Skip: callerHasWard},
				{Key: i18n.KeyAlertsMenu, Confirm: true, RootOnBack: true, Data: finalizedData(FlowCheckAlerts)},
			},
			finalize: wardOnlyFinalize,
		},

		FlowViewTips: {
			flow: FlowViewTips,
			steps: []Step{
				{Key: i18n.KeyTipsMenu, Confirm: true, RootOnBack: true},
			},
			finalize: func(env Env) Fields { return Fields{} },
		},

		FlowViewContacts: {
			flow: FlowViewContacts,
			steps: []Step{
				{Key: i18n.KeySelectWard, Field: FieldWard, Validate: validateWard, Data: wardData,
					Skip: callerHasWard},
				{Key: i18n.KeyContactsMenu, Confirm: true, RootOnBack: true, Data: finalizedData(FlowViewContacts)},
			},
			finalize: wardOnlyFinalize,
		},
	}
}

func callerHasWard(env Env) bool {
	return env.Caller.Ward != ""
}

func wardOnlyFinalize(env Env) Fields {
	ward := env.Collected[FieldWard]
	if ward == "" {
		ward = env.Caller.Ward
	}
	return Fields{FieldWard: ward}
}

func wardData(env Env) i18n.Data {
	return i18n.Data{Wards: env.Wards}
}

func callerVillageData(env Env) i18n.Data {
	return i18n.Data{Fields: map[string]string{FieldVillage: env.Caller.Village}}
}

// finalizedData renders a step with the flow's finalized field set, so
// confirmations show exactly the values that would be persisted, including
// ward and village pre-filled from the caller profile.
func finalizedData(flow Flow) func(env Env) i18n.Data {
	return func(env Env) i18n.Data {
		return i18n.Data{Fields: flowDefs[flow].finalize(env)}
	}
}

// Validators. All pure; a non-nil error means the token is rejected and the
// same step is re-asked.

var (
	speciesChoices = map[string]string{
		"1": string(models.SpeciesElephant),
		"2": string(models.SpeciesBuffalo),
		"3": string(models.SpeciesLion),
		"4": string(models.SpeciesOther),
	}
	urgencyChoices = map[string]string{
		"1": string(models.UrgencyNow),
		"2": string(models.UrgencyToday),
		"3": string(models.UrgencyPast),
	}
	typeChoices = map[string]string{
		"1": string(models.IncidentTypeCrop),
		"2": string(models.IncidentTypeLivestock),
		"3": string(models.IncidentTypeFence),
		"4": string(models.IncidentTypeHuman),
	}
)

func choiceValidator(choices map[string]string) func(token string, env Env) (string, error) {
	return func(token string, env Env) (string, error) {
		val, ok := choices[strings.TrimSpace(token)]
		if !ok {
			return "", fmt.Errorf("choice %q not in menu", token)
		}
		return val, nil
	}
}

func validateName(token string, env Env) (string, error) {
	name := strings.TrimSpace(token)
	if len(name) < models.MinNameLength {
		return "", fmt.Errorf("name %q too short", name)
	}
	return name, nil
}

// validateWard resolves a 1-based index into the configured ward list.
func validateWard(token string, env Env) (string, error) {
	idx, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil {
		return "", fmt.Errorf("ward selector %q is not a number", token)
	}
	if idx < 1 || idx > len(env.Wards) {
		return "", fmt.Errorf("ward index %d out of range", idx)
	}
	return env.Wards[idx-1], nil
}

func validateVillage(token string, env Env) (string, error) {
	village := strings.TrimSpace(token)
	if len(village) > models.MaxVillageLength {
		return "", fmt.Errorf("village entry exceeds %d chars", models.MaxVillageLength)
	}
	return village, nil
}

func validateVillageMode(token string, env Env) (string, error) {
	switch strings.TrimSpace(token) {
	case "1":
		return villageModeUse, nil
	case "2":
		return villageModeEdit, nil
	default:
		return "", fmt.Errorf("village choice %q not in menu", token)
	}
}

// validateNote accepts "0" as an explicit skip, leaving the note empty.
func validateNote(token string, env Env) (string, error) {
	if strings.TrimSpace(token) == "0" {
		return "", nil
	}
	note := strings.TrimSpace(token)
	if len(note) > models.MaxNoteLength {
		return "", fmt.Errorf("note exceeds %d chars", models.MaxNoteLength)
	}
	return note, nil
}
