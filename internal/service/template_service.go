// internal/service/template_service.go
package service

import (
	"strings"

	"github.com/unclebandit/leadpilot-backend/internal/model"
)

func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// LeadPlaceholders exposes the lead fields a campaign template may reference.
func LeadPlaceholders(lead model.Lead) map[string]string {
	name := strings.TrimSpace(lead.Name)
	first := name
	if i := strings.IndexByte(name, ' '); i > 0 {
		first = name[:i]
	}
	return map[string]string{
		"name":       name,
		"first_name": first,
		"city":       lead.City,
		"state":      lead.State,
		"category":   lead.Category,
	}
}

// RenderForLead picks the template for the lead's status and fills it in.
// Already-contacted leads in a smart-mix run get the follow-up template.
func RenderForLead(cfg model.RunConfig, lead model.Lead) string {
	template := cfg.Template
	if cfg.Filter.Strategy == model.StrategySmartMix &&
		lead.ContactStatus == model.ContactStatusContacted &&
		strings.TrimSpace(cfg.FollowUpTemplate) != "" {
		template = cfg.FollowUpTemplate
	}
	if cfg.Filter.Strategy == model.StrategyFollowUpOnly && strings.TrimSpace(cfg.FollowUpTemplate) != "" {
		template = cfg.FollowUpTemplate
	}
	msg := RenderTemplate(template, LeadPlaceholders(lead))
	// Collapse the gap left by an empty name token ("Hi  there").
	return strings.Join(strings.FieldsFunc(msg, func(r rune) bool { return r == ' ' }), " ")
}
