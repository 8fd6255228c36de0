package itinerary

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tripsmith/internal/domain"
)

// BuildPrompt renders the model instruction for one trip request. The output
// contract is a strict JSON itinerary document so the worker can persist the
// response verbatim.
func BuildPrompt(req domain.TripRequest) string {
	tag, err := language.Parse(req.Locale)
	if err != nil {
		tag = language.English
	}
	titler := cases.Title(tag)
	destination := titler.String(strings.ToLower(strings.TrimSpace(req.Destination)))

	var b strings.Builder
	fmt.Fprintf(&b, "Compose a day-by-day travel itinerary for %s, %s to %s, for a party of %d.\n",
		destination, req.StartDate, req.EndDate, req.PartySize)
	if req.Origin != "" {
		fmt.Fprintf(&b, "The travellers depart from %s.\n", titler.String(strings.ToLower(req.Origin)))
	}
	if p := req.Profile; p != nil {
		fmt.Fprintf(&b, "Pace: %s.\n", p.Pace)
		if len(p.Interests) > 0 {
			fmt.Fprintf(&b, "Interests: %s.\n", strings.Join(p.Interests, ", "))
		}
		if p.DietaryNotes != "" {
			fmt.Fprintf(&b, "Dietary notes: %s.\n", p.DietaryNotes)
		}
		if p.BudgetCeiling > 0 {
			fmt.Fprintf(&b, "Total budget ceiling: %.0f USD.\n", p.BudgetCeiling)
		}
	}
	fmt.Fprintf(&b, "Write descriptions in locale %q.\n", req.Locale)
	b.WriteString(`Respond with JSON only, shaped as {"destination":string,"summary":string,"days":[{"date":string,"title":string,"activities":[{"time":string,"name":string,"notes":string}]}],"estimated_cost":number}.`)
	return b.String()
}
