package notifier

import (
	"fmt"
	"strings"

	"affiliate-marketplace/internal/models"
)

const (
	TemplateListingSubmitted = "listing_submitted"
	TemplateListingApproved  = "listing_approved"
	TemplateListingRejected  = "listing_rejected"
)

func defaultTemplates() map[string]models.NotificationTemplate {
	return map[string]models.NotificationTemplate{
		TemplateListingSubmitted: {
			Type:    TemplateListingSubmitted,
			Subject: "New affiliate listing submitted: {{name}}",
			Body: "A new listing is waiting for review.\n\n" +
				"ID: {{id}}\n" +
				"Name: {{name}}\n" +
				"Description: {{description}}\n" +
				"URL: {{url}}\n" +
				"Commission: {{commissionStructure}}\n" +
				"Payment terms: {{paymentTerms}}\n" +
				"Affiliate signup: {{affiliateSignupUrl}}\n" +
				"Promo materials: {{promoMaterials}}\n" +
				"Owner: {{ownerId}}\n" +
				"Owner contact: {{ownerContact}}\n" +
				"Submitted at: {{createdAt}}\n",
		},
		TemplateListingApproved: {
			Type:    TemplateListingApproved,
			Subject: "Your listing {{name}} has been approved",
			Body: "Good news! Your affiliate program \"{{name}}\" was approved and is now " +
				"visible to affiliates.\n\nListing ID: {{id}}\n",
		},
		TemplateListingRejected: {
			Type:    TemplateListingRejected,
			Subject: "Your listing {{name}} was not approved",
			Body: "Your affiliate program \"{{name}}\" was reviewed and not approved at this time.\n\n" +
				"Listing ID: {{id}}\n",
		},
	}
}

func listingData(l models.Listing) map[string]interface{} {
	data := map[string]interface{}{
		"id":                  l.ID,
		"ownerId":             l.OwnerID,
		"name":                l.Name,
		"description":         l.Description,
		"url":                 l.URL,
		"commissionStructure": l.CommissionStructure,
		"paymentTerms":        l.PaymentTerms,
		"affiliateSignupUrl":  l.AffiliateSignupURL,
		"status":              string(l.Status),
		"createdAt":           l.CreatedAt.Format("2006-01-02 15:04 MST"),
	}
	if l.OwnerContact != nil {
		data["ownerContact"] = *l.OwnerContact
	}
	if l.PromoMaterials != nil {
		data["promoMaterials"] = *l.PromoMaterials
	}
	return data
}

// renderTemplate substitutes {{key}} placeholders and blanks out any that
// have no value.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		value := ""
		switch t := v.(type) {
		case string:
			value = t
		case nil:
		default:
			value = fmt.Sprintf("%v", t)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}
