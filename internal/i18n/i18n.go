// Package i18n holds the bilingual (EN/SW) text catalog for the USSD menus.
//
// The catalog is a pure function from (language, message key, data) to the
// display string sent back to the handset. It holds no state and performs
// no I/O; callers supply any record data a message interpolates.
package i18n

import (
	"fmt"
	"strings"

	"github.com/Vulimwa/hifadhi-ussd/internal/models"
)

// Key identifies one renderable message in the catalog.
type Key string

const (
	KeyRootMenu         Key = "rootMenu"
	KeyEnterName        Key = "enterName"
	KeySelectWard       Key = "selectWard"
	KeyEnterVillage     Key = "enterVillage"
	KeyVillageUseOrEdit Key = "villageUseOrEdit"
	KeyEnterNote        Key = "enterNote"
	KeyRegConfirm       Key = "regConfirm"
	KeyRegSuccess       Key = "regSuccess"
	KeyIncidentSpecies  Key = "incidentSpecies"
	KeyIncidentUrgency  Key = "incidentUrgency"
	KeyIncidentType     Key = "incidentType"
	KeyIncidentConfirm  Key = "incidentConfirm"
	KeyIncidentSaved    Key = "incidentSaved"
	KeyAlertsMenu       Key = "alertsMenu"
	KeyTipsMenu         Key = "tipsMenu"
	KeyContactsMenu     Key = "contactsMenu"
	KeyLangToggled      Key = "langToggled"
	KeySMSSent          Key = "smsSent"
	KeyInvalid          Key = "invalid"
	KeyError            Key = "error"
	KeyTimeout          Key = "timeout"
)

// Data carries the dynamic values a message may interpolate.
type Data struct {
	Fields  map[string]string
	Wards   []string
	Alert   *models.Alert
	Contact *models.Contact
}

// Field returns a named value from Fields, or "" when absent.
func (d Data) Field(name string) string {
	if d.Fields == nil {
		return ""
	}
	return d.Fields[name]
}

type table struct {
	appTitle        string
	root            string
	enterName       string
	selectWard      string
	enterVillage    string
	villageUse      string
	enterNote       string
	regConfirm      string
	regSuccess      string
	species         string
	urgency         string
	incidentType    string
	incidentConfirm string
	incidentSaved   string
	alertNone       string
	alertHeader     string
	alertsOptions   string
	tipsBody        string
	tipsOptions     string
	contactsBody    string
	contactsNone    string
	contactsOptions string
	langToggled     string
	smsSent         string
	invalid         string
	errorMsg        string
	timeout         string
}

var tables = map[models.Language]table{
	models.LanguageEnglish: {
		appTitle:        "HIFADHI LINK",
		root:            "1. Register\n2. Report Incident\n3. Check Alerts\n4. Prevention Tips\n5. Emergency Contacts\n0. Language: EN | SW",
		enterName:       "Enter Full Name:",
		selectWard:      "Select Ward:",
		enterVillage:    "Enter Village (max 24 chars):",
		villageUse:      "Village: %s\n1.Use 2.Edit",
		enterNote:       "Optional note (<= 50 chars) or 0 to skip:",
		regConfirm:      "Confirm:\n%s\n%s, %s\n1=Yes 2=Edit",
		regSuccess:      "You're registered in %s, %s. Dial anytime for alerts. Stay safe.",
		species:         "Species:\n1.Elephant 2.Buffalo 3.Lion 4.Other",
		urgency:         "Urgency:\n1.Now 2.Same day 3.Past 24h",
		incidentType:    "Type:\n1.Crop raid 2.Livestock 3.Fence/Boma 4.Human threat",
		incidentConfirm: "Confirm\nSp:%s Ur:%s Ty:%s\n%s, %s\n1=Submit 2=Cancel",
		incidentSaved:   "Saved. Case ID: %s. We may contact you.",
		alertNone:       "No alert for this ward.",
		alertHeader:     "Ward Risk: %s. Window %s\n%s",
		alertsOptions:   "1) SMS summary\n0) Back",
		tipsBody:        "Tips:\n- Use chili briquettes\n- Night patrols in groups",
		tipsOptions:     "1) SMS me tips\n0) Back",
		contactsBody:    "KWS: %s\nWard Admin: %s",
		contactsNone:    "No contacts found for ward.",
		contactsOptions: "1) SMS me contacts\n0) Back",
		langToggled:     "Language set to %s.",
		smsSent:         "SMS will be sent.",
		invalid:         "Invalid choice. Try again.",
		errorMsg:        "Service issue. Please try later.",
		timeout:         "Request timeout. Please try again.",
	},
	models.LanguageSwahili: {
		appTitle:        "HIFADHI LINK",
		root:            "1. Jisajili\n2. Ripoti Tukio\n3. Angalia Tahadhari\n4. Ushauri wa Kuzuia\n5. Mawasiliano ya Dharura\n0. Lugha: EN | SW",
		enterName:       "Weka Jina Kamili:",
		selectWard:      "Chagua Wadi:",
		enterVillage:    "Weka Kijiji (herufi 24):",
		villageUse:      "Kijiji: %s\n1.Tumia 2.Hariri",
		enterNote:       "Ujumbe hiari (<= 50) au 0 kuruka:",
		regConfirm:      "Thibitisha:\n%s\n%s, %s\n1=Ndio 2=Hariri",
		regSuccess:      "Umesajiliwa %s, %s. Kwa tahadhari, piga nambari hii wakati wowote.",
		species:         "Mnyama:\n1.Ndovu 2.Ngombe Mwitu 3.Simba 4.Nyingine",
		urgency:         "Uharaka:\n1.Sasa 2.Leo 3.Saa 24 zilizopita",
		incidentType:    "Aina:\n1.Mashamba 2.Mifugo 3.Ukuta/Boma 4.Tishio kwa binadamu",
		incidentConfirm: "Thibitisha\nSp:%s Uh:%s Ai:%s\n%s, %s\n1=Tuma 2=Ghairi",
		incidentSaved:   "Imesajiliwa. Nambari: %s.",
		alertNone:       "Hakuna tahadhari kwa wadi hii.",
		alertHeader:     "Hatari ya Wadi: %s. Saa %s\n%s",
		alertsOptions:   "1) Nitumie SMS\n0) Rudi",
		tipsBody:        "Ushauri:\n- Tumia mkaa wa pilipili\n- Doria za usiku kwa vikundi",
		tipsOptions:     "1) Nitumie SMS\n0) Rudi",
		contactsBody:    "KWS: %s\nAfisa Wadi: %s",
		contactsNone:    "Hakuna mawasiliano ya wadi.",
		contactsOptions: "1) Nitumie SMS\n0) Rudi",
		langToggled:     "Lugha %s imehifadhiwa.",
		smsSent:         "SMS itatumwa.",
		invalid:         "Chaguo si sahihi. Jaribu tena.",
		errorMsg:        "Hitilafu ya huduma. Jaribu tena.",
		timeout:         "Muda umeisha. Jaribu tena.",
	},
}

// Catalog renders localized USSD messages.
type Catalog struct {
	defaultLang models.Language
}

// NewCatalog creates a catalog falling back to the given default language.
func NewCatalog(defaultLang models.Language) *Catalog {
	if !models.IsValidLanguage(defaultLang) {
		defaultLang = models.LanguageEnglish
	}
	return &Catalog{defaultLang: defaultLang}
}

// DefaultLanguage returns the catalog fallback language.
func (c *Catalog) DefaultLanguage() models.Language {
	return c.defaultLang
}

func (c *Catalog) table(lang models.Language) (table, models.Language) {
	if tbl, ok := tables[lang]; ok {
		return tbl, lang
	}
	return tables[c.defaultLang], c.defaultLang
}

// Render produces the display text for a message key in the given language.
// Unknown languages fall back to the catalog default.
func (c *Catalog) Render(lang models.Language, key Key, data Data) string {
	tbl, lang := c.table(lang)
	switch key {
	case KeyRootMenu:
		return tbl.appTitle + "\n" + tbl.root
	case KeyEnterName:
		return tbl.enterName
	case KeySelectWard:
		return tbl.selectWard + "\n" + wardList(data.Wards)
	case KeyEnterVillage:
		return tbl.enterVillage
	case KeyVillageUseOrEdit:
		return fmt.Sprintf(tbl.villageUse, data.Field("village"))
	case KeyEnterNote:
		return tbl.enterNote
	case KeyRegConfirm:
		return fmt.Sprintf(tbl.regConfirm, data.Field("name"), data.Field("ward"), data.Field("village"))
	case KeyRegSuccess:
		return fmt.Sprintf(tbl.regSuccess, data.Field("ward"), data.Field("village"))
	case KeyIncidentSpecies:
		return tbl.species
	case KeyIncidentUrgency:
		return tbl.urgency
	case KeyIncidentType:
		return tbl.incidentType
	case KeyIncidentConfirm:
		return fmt.Sprintf(tbl.incidentConfirm,
			data.Field("species"), data.Field("urgency"), data.Field("type"),
			data.Field("ward"), data.Field("village"))
	case KeyIncidentSaved:
		return fmt.Sprintf(tbl.incidentSaved, data.Field("case_id"))
	case KeyAlertsMenu:
		return c.AlertSummary(lang, data.Alert) + "\n" + tbl.alertsOptions
	case KeyTipsMenu:
		return tbl.tipsBody + "\n" + tbl.tipsOptions
	case KeyContactsMenu:
		return c.ContactSummary(lang, data.Contact) + "\n" + tbl.contactsOptions
	case KeyLangToggled:
		toggled := fmt.Sprintf(tbl.langToggled, lang)
		return toggled + "\n\n" + tbl.appTitle + "\n" + tbl.root
	case KeySMSSent:
		return tbl.smsSent
	case KeyInvalid:
		return tbl.invalid
	case KeyError:
		return tbl.errorMsg
	case KeyTimeout:
		return tbl.timeout
	default:
		return tbl.errorMsg
	}
}

// AlertSummary renders the alert body alone, as used in SMS dispatch.
func (c *Catalog) AlertSummary(lang models.Language, alert *models.Alert) string {
	tbl, lang := c.table(lang)
	if alert == nil {
		return tbl.alertNone
	}
	return fmt.Sprintf(tbl.alertHeader, alert.Risk, alert.Window, alert.Summary(lang))
}

// TipsSummary renders the prevention tips body alone, as used in SMS dispatch.
func (c *Catalog) TipsSummary(lang models.Language) string {
	tbl, _ := c.table(lang)
	return tbl.tipsBody
}

// ContactSummary renders the contact body alone, as used in SMS dispatch.
func (c *Catalog) ContactSummary(lang models.Language, contact *models.Contact) string {
	tbl, _ := c.table(lang)
	if contact == nil {
		return tbl.contactsNone
	}
	return fmt.Sprintf(tbl.contactsBody, contact.KWSHotline, contact.WardAdmin)
}

func wardList(wards []string) string {
	var sb strings.Builder
	for i, w := range wards {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, w)
	}
	return sb.String()
}
