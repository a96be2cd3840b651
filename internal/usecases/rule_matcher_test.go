package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revenda_bot/internal/entities"
)

func rule(id int64, trigger string, priority int) entities.Rule {
	return entities.Rule{ID: id, TriggerText: trigger, Priority: priority, IsActive: true, ContactFilter: entities.ContactFilterAll}
}

func TestMatchRuleSubstringAndExact(t *testing.T) {
	rules := []entities.Rule{rule(1, "preço", 0), rule(2, "catalogo", 0)}

	got := MatchRule(rules, "Qual o PREÇO do kit?", entities.ContactNew)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)

	got = MatchRule(rules, "catalogo", entities.ContactNew)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.ID)

	assert.Nil(t, MatchRule(rules, "bom dia", entities.ContactNew))
}

func TestMatchRulePrefersNonGlobal(t *testing.T) {
	global := rule(1, "*", 100)
	specific := rule(2, "oi", 0)

	got := MatchRule([]entities.Rule{global, specific}, "oi tudo bem", entities.ContactNew)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.ID)

	got = MatchRule([]entities.Rule{global, specific}, "qualquer coisa", entities.ContactNew)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)
}

func TestMatchRulePriorityWins(t *testing.T) {
	low := rule(1, "kit", 1)
	high := rule(2, "kit", 9)
	got := MatchRule([]entities.Rule{low, high}, "quero o kit", entities.ContactKnown)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.ID)
}

func TestMatchRuleGlobalFlagAndStarVariants(t *testing.T) {
	flagged := rule(1, "fallback", 0)
	flagged.IsGlobalTrigger = true
	stars := rule(2, "***", 5)

	got := MatchRule([]entities.Rule{flagged, stars}, "fallback", entities.ContactNew)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.ID, "flagged rule must not match as a keyword")
}

func TestMatchRuleContactFilter(t *testing.T) {
	clientsOnly := rule(1, "boleto", 5)
	clientsOnly.ContactFilter = "CLIENT"
	everyone := rule(2, "boleto", 1)

	got := MatchRule([]entities.Rule{clientsOnly, everyone}, "boleto", entities.ContactNew)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.ID)

	got = MatchRule([]entities.Rule{clientsOnly, everyone}, "boleto", entities.ContactClient)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)
}

func TestMatchRuleSkipsInactive(t *testing.T) {
	off := rule(1, "kit", 10)
	off.IsActive = false
	assert.Nil(t, MatchRule([]entities.Rule{off}, "kit", entities.ContactNew))
}

func TestMatchRuleCallback(t *testing.T) {
	byID := rule(1, "btn_planos", 0)
	global := rule(2, "*", 0)
	substring := rule(3, "planos", 10)

	got := MatchRule([]entities.Rule{global, substring, byID}, "__BUTTON__:BTN_PLANOS", entities.ContactNew)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)

	got = MatchRule([]entities.Rule{global, substring}, "__LIST__:row_9", entities.ContactNew)
	assert.Nil(t, got, "callbacks never fall back to globals or substrings")
}

func TestMatchRuleReturnsAtMostOne(t *testing.T) {
	rules := []entities.Rule{rule(1, "a", 0), rule(2, "ab", 0), rule(3, "*", 0), rule(4, "abc", 0)}
	got := MatchRule(rules, "abc", entities.ContactNew)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID, "stable order keeps the first equal-priority rule")
}
