package ussd

import (
	"strings"
	"testing"

	"github.com/Vulimwa/hifadhi-ussd/internal/i18n"
	"github.com/Vulimwa/hifadhi-ussd/internal/models"
)

var testWards = []string{"Sagalla", "Marungu", "Kasigau", "Mbololo", "Wundanyi"}

func TestResolveRegisterPromptsFirstStepOnEmptyTokens(t *testing.T) {
	v := Resolve(FlowRegister, nil, models.User{}, testWards)
	if v.Kind != VerdictPrompt {
		t.Fatalf("expected prompt, got kind %v", v.Kind)
	}
	if v.Key != i18n.KeyEnterName {
		t.Errorf("expected first register prompt to be %q, got %q", i18n.KeyEnterName, v.Key)
	}
}

func TestResolveRegisterPromptSequence(t *testing.T) {
	// Each prefix of a valid token sequence must prompt the next step in
	// order, and the next prompt never moves backwards.
	tokens := []string{"Jane", "1", "Mwakitau"}
	wantKeys := []i18n.Key{i18n.KeyEnterName, i18n.KeySelectWard, i18n.KeyEnterVillage, i18n.KeyRegConfirm}
	for n := 0; n <= len(tokens); n++ {
		v := Resolve(FlowRegister, tokens[:n], models.User{}, testWards)
		if v.Kind != VerdictPrompt {
			t.Fatalf("prefix %d: expected prompt, got kind %v", n, v.Kind)
		}
		if v.Key != wantKeys[n] {
			t.Errorf("prefix %d: expected key %q, got %q", n, wantKeys[n], v.Key)
		}
	}
}

func TestResolveRegisterCompletes(t *testing.T) {
	v := Resolve(FlowRegister, []string{"Jane", "1", "Mwakitau", "1"}, models.User{}, testWards)
	if v.Kind != VerdictComplete {
		t.Fatalf("expected complete, got kind %v", v.Kind)
	}
	if v.Fields[FieldName] != "Jane" {
		t.Errorf("expected name Jane, got %q", v.Fields[FieldName])
	}
	if v.Fields[FieldWard] != "Sagalla" {
		t.Errorf("expected ward Sagalla, got %q", v.Fields[FieldWard])
	}
	if v.Fields[FieldVillage] != "Mwakitau" {
		t.Errorf("expected village Mwakitau, got %q", v.Fields[FieldVillage])
	}
}

func TestResolveRejectReasksSameStep(t *testing.T) {
	// An out-of-range ward index is rejected and the ward step is re-asked.
	v := Resolve(FlowRegister, []string{"Jane", "9"}, models.User{}, testWards)
	if v.Kind != VerdictReject {
		t.Fatalf("expected reject, got kind %v", v.Kind)
	}
	if v.Key != i18n.KeySelectWard {
		t.Errorf("expected re-ask of %q, got %q", i18n.KeySelectWard, v.Key)
	}
	// The rejected token stays in the history; the next entry replaces it
	// and answers the same step.
	v = Resolve(FlowRegister, []string{"Jane", "9", "2"}, models.User{}, testWards)
	if v.Kind != VerdictPrompt || v.Key != i18n.KeyEnterVillage {
		t.Fatalf("expected recovery to ward Marungu then village prompt, got kind %v key %q", v.Kind, v.Key)
	}
	v = Resolve(FlowRegister, []string{"Jane", "9", "2", "Mwakitau", "1"}, models.User{}, testWards)
	if v.Kind != VerdictComplete || v.Fields[FieldWard] != "Marungu" {
		t.Fatalf("expected completion with replacement ward, got kind %v fields %v", v.Kind, v.Fields)
	}
}

func TestResolveNameTooShortRejected(t *testing.T) {
	v := Resolve(FlowRegister, []string{"J"}, models.User{}, testWards)
	if v.Kind != VerdictReject {
		t.Fatalf("expected reject for one-char name, got kind %v", v.Kind)
	}
	if v.Key != i18n.KeyEnterName {
		t.Errorf("expected name re-ask, got %q", v.Key)
	}
}

func TestResolveVillageLengthBoundary(t *testing.T) {
	exact := strings.Repeat("a", models.MaxVillageLength)
	v := Resolve(FlowRegister, []string{"Jane", "1", exact}, models.User{}, testWards)
	if v.Kind != VerdictPrompt || v.Key != i18n.KeyRegConfirm {
		t.Fatalf("expected %d-char village accepted and confirm prompted, got kind %v key %q", models.MaxVillageLength, v.Kind, v.Key)
	}

	over := strings.Repeat("a", models.MaxVillageLength+1)
	v = Resolve(FlowRegister, []string{"Jane", "1", over}, models.User{}, testWards)
	if v.Kind != VerdictReject || v.Key != i18n.KeyEnterVillage {
		t.Fatalf("expected %d-char village rejected, got kind %v key %q", models.MaxVillageLength+1, v.Kind, v.Key)
	}
}

func TestResolveConfirmNoRestartsFlow(t *testing.T) {
	// "2" at the register confirmation forgets collected values; later tokens
	// replay from the first step.
	tokens := []string{"Jane", "1", "Mwakitau", "2"}
	v := Resolve(FlowRegister, tokens, models.User{}, testWards)
	if v.Kind != VerdictPrompt || v.Key != i18n.KeyEnterName {
		t.Fatalf("expected restart at name prompt, got kind %v key %q", v.Kind, v.Key)
	}

	tokens = append(tokens, "Joan", "2", "Kighombo", "1")
	v = Resolve(FlowRegister, tokens, models.User{}, testWards)
	if v.Kind != VerdictComplete {
		t.Fatalf("expected complete after edit round, got kind %v", v.Kind)
	}
	if v.Fields[FieldName] != "Joan" || v.Fields[FieldWard] != "Marungu" || v.Fields[FieldVillage] != "Kighombo" {
		t.Errorf("expected edited values to win, got %v", v.Fields)
	}
}

func TestResolveIncidentSkipsWardForKnownCaller(t *testing.T) {
	caller := models.User{Phone: "+254700000001", Ward: "Kasigau"}
	v := Resolve(FlowReportIncident, []string{"1", "1", "1"}, caller, testWards)
	if v.Kind != VerdictPrompt {
		t.Fatalf("expected prompt, got kind %v", v.Kind)
	}
	if v.Key == i18n.KeySelectWard {
		t.Fatal("ward step must be skipped when the caller profile has a ward")
	}
	if v.Key != i18n.KeyEnterVillage {
		t.Errorf("expected village prompt after skipped ward, got %q", v.Key)
	}
}

func TestResolveIncidentVillageUseOrEdit(t *testing.T) {
	caller := models.User{Phone: "+254700000001", Ward: "Kasigau", Village: "Bungule"}

	v := Resolve(FlowReportIncident, []string{"1", "1", "1"}, caller, testWards)
	if v.Kind != VerdictPrompt || v.Key != i18n.KeyVillageUseOrEdit {
		t.Fatalf("expected use-or-edit prompt, got kind %v key %q", v.Kind, v.Key)
	}

	// "1" keeps the profile village; the entry step is skipped.
	v = Resolve(FlowReportIncident, []string{"1", "1", "1", "1"}, caller, testWards)
	if v.Kind != VerdictPrompt || v.Key != i18n.KeyEnterNote {
		t.Fatalf("expected note prompt after use, got kind %v key %q", v.Kind, v.Key)
	}

	// "2" asks for a replacement village.
	v = Resolve(FlowReportIncident, []string{"1", "1", "1", "2"}, caller, testWards)
	if v.Kind != VerdictPrompt || v.Key != i18n.KeyEnterVillage {
		t.Fatalf("expected village prompt after edit, got kind %v key %q", v.Kind, v.Key)
	}
}

func TestResolveIncidentCompletesWithProfilePrefill(t *testing.T) {
	caller := models.User{Phone: "+254700000001", Ward: "Kasigau", Village: "Bungule"}
	v := Resolve(FlowReportIncident, []string{"1", "2", "3", "1", "0", "1"}, caller, testWards)
	if v.Kind != VerdictComplete {
		t.Fatalf("expected complete, got kind %v", v.Kind)
	}
	want := Fields{
		FieldSpecies: string(models.SpeciesElephant),
		FieldUrgency: string(models.UrgencyToday),
		FieldType:    string(models.IncidentTypeFence),
		FieldWard:    "Kasigau",
		FieldVillage: "Bungule",
		FieldNote:    "",
	}
	for k, wantVal := range want {
		if v.Fields[k] != wantVal {
			t.Errorf("field %s: expected %q, got %q", k, wantVal, v.Fields[k])
		}
	}
}

func TestResolveAlertsBackReturnsToRoot(t *testing.T) {
	// "0" at the alerts menu backs out to the root; later tokens are handed
	// back for fresh dispatch.
	v := Resolve(FlowCheckAlerts, []string{"1", "0"}, models.User{}, testWards)
	if v.Kind != VerdictRestartRoot {
		t.Fatalf("expected root restart, got kind %v", v.Kind)
	}
	if len(v.Remaining) != 0 {
		t.Errorf("expected no remaining tokens, got %v", v.Remaining)
	}

	v = Resolve(FlowCheckAlerts, []string{"1", "0", "4"}, models.User{}, testWards)
	if v.Kind != VerdictRestartRoot {
		t.Fatalf("expected root restart with remainder, got kind %v", v.Kind)
	}
	if len(v.Remaining) != 1 || v.Remaining[0] != "4" {
		t.Errorf("expected remaining [4], got %v", v.Remaining)
	}
}

func TestResolveAlertsSMSChoiceCompletes(t *testing.T) {
	v := Resolve(FlowCheckAlerts, []string{"2", "1"}, models.User{}, testWards)
	if v.Kind != VerdictComplete {
		t.Fatalf("expected complete, got kind %v", v.Kind)
	}
	if v.Fields[FieldWard] != "Marungu" {
		t.Errorf("expected ward Marungu, got %q", v.Fields[FieldWard])
	}
}

func TestResolveAlertsRejectsUnknownMenuChoice(t *testing.T) {
	v := Resolve(FlowCheckAlerts, []string{"1", "7"}, models.User{}, testWards)
	if v.Kind != VerdictReject || v.Key != i18n.KeyAlertsMenu {
		t.Fatalf("expected alerts menu re-ask, got kind %v key %q", v.Kind, v.Key)
	}
}

func TestResolveToggleCompletesImmediately(t *testing.T) {
	v := Resolve(FlowToggleLanguage, nil, models.User{}, testWards)
	if v.Kind != VerdictComplete {
		t.Fatalf("expected immediate completion, got kind %v", v.Kind)
	}
}

func TestFlowForSelector(t *testing.T) {
	cases := []struct {
		selector string
		flow     Flow
		ok       bool
	}{
		{"0", FlowToggleLanguage, true},
		{"1", FlowRegister, true},
		{"2", FlowReportIncident, true},
		{"3", FlowCheckAlerts, true},
		{"4", FlowViewTips, true},
		{"5", FlowViewContacts, true},
		{"9", "", false},
		{"x", "", false},
	}
	for _, c := range cases {
		flow, ok := FlowForSelector(c.selector)
		if ok != c.ok || flow != c.flow {
			t.Errorf("selector %q: expected (%q,%v), got (%q,%v)", c.selector, c.flow, c.ok, flow, ok)
		}
	}
}
