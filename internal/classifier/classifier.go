// Package classifier maps free-text requests to a closed label set used
// for provider routing. Classification is pure keyword matching over a
// fixed bilingual (Italian/English) vocabulary; it never blocks, calls
// out, or fails.
package classifier

import (
	"strings"

	"ai-orchestra/internal/models"
)

type rule struct {
	label    models.Label
	keywords []string
}

// Rule order is part of the contract: code vocabulary is checked first
// because code questions often also contain analysis-sounding words.
var rules = []rule{
	{models.LabelCode, []string{
		"codice", "code", "funzione", "function", "bug", "debug", "api",
		"database", "sql", "python", "javascript", "typescript", "react",
		"script", "algoritmo", "classe", "metodo", "array", "json",
		"html", "css", "endpoint", "backend", "frontend",
	}},
	{models.LabelCreative, []string{
		"scrivi", "write", "storia", "story", "poesia", "poem",
		"creativo", "creative", "articolo", "article", "blog",
		"racconto", "romanzo", "canzone", "email", "lettera",
	}},
	{models.LabelAnalysis, []string{
		"analiz", "analy", "dati", "data", "grafico", "chart",
		"statistic", "csv", "excel", "tabella", "confronta",
		"compare", "trend", "metrica", "report",
	}},
	{models.LabelRealtime, []string{
		"oggi", "today", "attual", "current", "news", "notizie",
		"ultimo", "latest", "tempo reale",
	}},
	{models.LabelReasoning, []string{
		"spiega", "explain", "perché", "why", "come funziona",
		"how does", "ragion", "reason", "logic", "matematica",
		"math", "teoria", "filosofia", "dimostrazione",
	}},
}

// Classify returns exactly one label for any input. The first rule with
// a matching keyword wins; inputs matching nothing are conversation.
func Classify(text string) models.Label {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.label
			}
		}
	}
	return models.LabelConversation
}

// Labels returns the full closed label set, in rule order plus the
// default.
func Labels() []models.Label {
	out := make([]models.Label, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.label)
	}
	return append(out, models.LabelConversation)
}
