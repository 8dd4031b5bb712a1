// Package version implements abstract-version pattern matching: splitting a
// version string into word/wildcard tokens, testing whether a pattern
// matches a candidate, and picking the first matching tag from an ordered
// list.
package version

import (
	"regexp"

	"github.com/imagestack/imagestack/pkg/errors"
)

var tokenRe = regexp.MustCompile(`[\w*]+`)

// Split tokenizes a version string along runs of word characters and `*`,
// dropping the non-word separators between them. "1.2.*" -> ["1", "2", "*"].
func Split(v string) []string {
	matches := tokenRe.FindAllString(v, -1)
	if matches == nil {
		return []string{}
	}
	return matches
}

// Match reports whether pattern matches candidate: candidate must have at
// least as many tokens as pattern, and every non-"*" pattern token must
// equal the candidate's token at the same index.
func Match(pattern, candidate string) bool {
	patternTokens := Split(pattern)
	candidateTokens := Split(candidate)
	if len(candidateTokens) < len(patternTokens) {
		return false
	}
	for i, t := range patternTokens {
		if t != "*" && t != candidateTokens[i] {
			return false
		}
	}
	return true
}

// Find returns the first tag in tags that satisfies target. The literal
// target "latest" always returns tags[0]. Tag ordering is significant and
// must already reflect the caller's desired precedence (newest-first).
func Find(target string, tags []string) (string, error) {
	if target == "latest" {
		if len(tags) == 0 {
			return "", errors.Resolution(errors.ErrEmptyTagList.Error())
		}
		return tags[0], nil
	}
	for _, t := range tags {
		if Match(target, t) {
			return t, nil
		}
	}
	return "", errors.Resolution("no matching tags for " + target + ": " + errors.ErrNoMatchingTag.Error())
}
