package usecases

import (
	"sort"
	"strings"

	"revenda_bot/internal/entities"
)

var globalTriggers = map[string]bool{"*": true, "**": true, "***": true}

// IsGlobalRule reports whether a rule is a wildcard fallback.
func IsGlobalRule(r entities.Rule) bool {
	return r.IsGlobalTrigger || globalTriggers[strings.TrimSpace(r.TriggerText)]
}

// CallbackID extracts the id from a structured button/list reply.
func CallbackID(text string) (string, bool) {
	for _, prefix := range []string{entities.ButtonCallbackPrefix, entities.ListCallbackPrefix} {
		if strings.HasPrefix(text, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(text, prefix)), true
		}
	}
	return "", false
}

func filterAllows(r entities.Rule, status entities.ContactStatus) bool {
	f := strings.TrimSpace(r.ContactFilter)
	return f == "" || strings.EqualFold(f, entities.ContactFilterAll) || strings.EqualFold(f, string(status))
}

// orderRules sorts by priority desc with non-global rules first on ties.
func orderRules(rules []entities.Rule) []entities.Rule {
	out := make([]entities.Rule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return !IsGlobalRule(out[i]) && IsGlobalRule(out[j])
	})
	return out
}

// MatchRule selects at most one rule for an inbound text.
func MatchRule(rules []entities.Rule, text string, status entities.ContactStatus) *entities.Rule {
	ordered := orderRules(rules)

	if id, ok := CallbackID(text); ok {
		for i := range ordered {
			r := ordered[i]
			if filterAllows(r, status) && strings.EqualFold(strings.TrimSpace(r.TriggerText), id) {
				return &r
			}
		}
		return nil
	}

	msg := strings.ToLower(strings.TrimSpace(text))
	if msg == "" {
		return nil
	}

	for i := range ordered {
		r := ordered[i]
		if IsGlobalRule(r) || !filterAllows(r, status) {
			continue
		}
		trigger := strings.ToLower(strings.TrimSpace(r.TriggerText))
		if trigger == "" {
			continue
		}
		if msg == trigger || strings.Contains(msg, trigger) {
			return &r
		}
	}

	for i := range ordered {
		r := ordered[i]
		if IsGlobalRule(r) && filterAllows(r, status) {
			return &r
		}
	}
	return nil
}
