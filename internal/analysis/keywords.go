package analysis

import (
	"regexp"
	"sort"
	"strings"
)

var wordPattern = regexp.MustCompile(`\b[a-z]{3,}\b`)

var stopwords = toSet(
	"the", "and", "but", "for", "with", "was", "were", "been", "being", "have", "has", "had",
	"does", "did", "will", "would", "could", "should", "may", "might", "must", "can", "this",
	"that", "these", "those", "you", "she", "they", "them", "your", "his", "her", "its", "our",
	"their", "are", "not", "all", "any", "just", "very", "too", "also", "than", "then", "there",
	"here", "what", "which", "who", "when", "where", "why", "how", "out", "off", "over", "under",
	"again", "once", "only", "own", "same", "some", "such", "few", "more", "most", "other", "into",
	"from", "about", "after", "before", "because", "while", "each", "both", "doing", "him", "myself",
	"yourself", "itself", "themselves", "ours", "yours", "theirs", "don", "didn", "doesn", "isn",
	"wasn", "aren", "won", "get", "got", "one", "really", "even", "much", "still",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}

// tokenize lowercases text and keeps words of three or more letters that
// are not stopwords, in order of appearance.
func tokenize(text string) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	out := words[:0]
	for _, word := range words {
		if _, skip := stopwords[word]; !skip {
			out = append(out, word)
		}
	}
	return out
}

// topKeywords ranks words by frequency across texts. Ties keep the order in
// which words first appeared.
func topKeywords(texts []string, limit int) []string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for _, text := range texts {
		for _, word := range tokenize(text) {
			if _, ok := firstSeen[word]; !ok {
				firstSeen[word] = len(firstSeen)
			}
			counts[word]++
		}
	}

	words := make([]string, 0, len(counts))
	for word := range counts {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return firstSeen[words[i]] < firstSeen[words[j]]
	})

	if limit > 0 && len(words) > limit {
		words = words[:limit]
	}
	return words
}

// documentFrequency counts the texts that contain term.
func documentFrequency(term string, texts []string) int {
	count := 0
	for _, text := range texts {
		if strings.Contains(strings.ToLower(text), term) {
			count++
		}
	}
	return count
}
