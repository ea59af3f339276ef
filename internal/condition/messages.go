package condition

import (
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	msgSummaryOne       = "The group role is %s"
	msgSummaryMany      = "The group role is %s or %s"
	msgSummaryNotOne    = "The group role is not %s"
	msgSummaryNotMany   = "The group role is not %s or %s"
	msgFormTitle        = "Group roles"
	msgFormDescription  = "If you select no Group roles, the condition will evaluate to TRUE for all requests."
	msgFormNegate       = "Negate the condition"
	msgFormSaved        = "Condition saved"
	msgFormIllegalValue = "An illegal choice has been detected."
)

var supported = []language.Tag{language.English, language.Indonesian}

var matcher = language.NewMatcher(supported)

func init() {
	for _, key := range []string{
		msgSummaryOne, msgSummaryMany, msgSummaryNotOne, msgSummaryNotMany,
		msgFormTitle, msgFormDescription, msgFormNegate, msgFormSaved, msgFormIllegalValue,
	} {
		_ = message.SetString(language.English, key, key)
	}
	id := map[string]string{
		msgSummaryOne:       "Peran grup adalah %s",
		msgSummaryMany:      "Peran grup adalah %s atau %s",
		msgSummaryNotOne:    "Peran grup bukan %s",
		msgSummaryNotMany:   "Peran grup bukan %s atau %s",
		msgFormTitle:        "Peran grup",
		msgFormDescription:  "Jika tidak ada peran grup yang dipilih, kondisi akan bernilai TRUE untuk semua permintaan.",
		msgFormNegate:       "Balikkan kondisi",
		msgFormSaved:        "Kondisi disimpan",
		msgFormIllegalValue: "Pilihan tidak sah terdeteksi.",
	}
	for key, value := range id {
		_ = message.SetString(language.Indonesian, key, value)
	}
}

// NewPrinter returns a printer for the supported language closest to the
// preferred tags. English is used when nothing matches.
func NewPrinter(preferred ...language.Tag) *message.Printer {
	matched, _, _ := matcher.Match(preferred...)
	base, _ := matched.Base()
	return message.NewPrinter(language.Make(base.String()))
}

// PrinterForRequest picks a printer from the Accept-Language header, falling back to fallback.
func PrinterForRequest(r *http.Request, fallback language.Tag) *message.Printer {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return NewPrinter(fallback)
	}
	return NewPrinter(tags...)
}
