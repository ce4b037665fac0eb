package tui

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?\n]+[.!?]*`)
)

// highlightBestSentence emphasizes the sentence of an answer sharing the most
// words with the question. Text without any overlap is returned unchanged.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" || strings.Contains(text, "\n") {
		return text
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return text
	}
	spans := sentenceRe.FindAllStringIndex(text, -1)
	if len(spans) < 2 {
		return text
	}
	bestIdx, bestScore := -1, 0
	for i, sp := range spans {
		if score := tokenOverlapScore(qTokens, text[sp[0]:sp[1]]); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx < 0 {
		return text
	}
	sp := spans[bestIdx]
	lead := len(text[sp[0]:sp[1]]) - len(strings.TrimLeft(text[sp[0]:sp[1]], " "))
	start := sp[0] + lead
	return text[:start] + highlightStyle.Render(text[start:sp[1]]) + text[sp[1]:]
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
