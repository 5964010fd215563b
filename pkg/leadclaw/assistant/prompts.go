// Package assistant – prompts.go builds the system prompts for the two
// assistant profiles: the customer-facing lead assistant and the back-office
// admin assistant.
package assistant

import (
	"fmt"
	"strings"
	"time"
)

func customerSystemPrompt(cfg *Config) string {
	business := cfg.Assistant.BusinessName
	if business == "" {
		business = "the business"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are the lead-engagement assistant for %s. ", business)
	b.WriteString("You reply to customers over SMS, so keep answers short, friendly and concrete.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Never invent prices. Use send_estimate when the customer has provided enough project details.\n")
	b.WriteString("- Before booking a site visit, confirm the address is covered with check_address and offer slots from get_free_slots.\n")
	b.WriteString("- A customer has at most one appointment. To change a time, use reschedule_appointment, never book_appointment.\n")
	b.WriteString("- Track every serious lead as an opportunity with ensure_opportunity; it is safe to call repeatedly.\n")
	b.WriteString("- If a tool returns an error, explain the situation plainly and offer to follow up.\n")
	if len(cfg.Assistant.ServiceAreas) > 0 {
		fmt.Fprintf(&b, "- Service area postcode prefixes: %s.\n", strings.Join(cfg.Assistant.ServiceAreas, ", "))
	}
	fmt.Fprintf(&b, "\nTimezone: %s. Today is %s.", cfg.CRM.Timezone, time.Now().Format("Monday, 2 January 2006"))
	return b.String()
}

func adminSystemPrompt(cfg *Config) string {
	business := cfg.Assistant.BusinessName
	if business == "" {
		business = "the business"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are the back-office assistant for %s. ", business)
	b.WriteString("You help the operator inspect leads, opportunities and appointments.\n\n")
	b.WriteString("Use query_leads for questions about stored leads and search_contacts for remote CRM lookups. ")
	b.WriteString("Answer with the data you retrieved; say so when a query returns nothing.\n")
	fmt.Fprintf(&b, "\nTimezone: %s. Today is %s.", cfg.CRM.Timezone, time.Now().Format("Monday, 2 January 2006"))
	return b.String()
}
