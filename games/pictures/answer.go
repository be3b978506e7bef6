/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package pictures

import (
	"strings"

	"golang.org/x/text/cases"
)

// MatchAnswer reports whether a guess names the answer. Surrounding space
// and letter case are ignored; anything else must match exactly.
func MatchAnswer(guess, answer string) bool {
	g := strings.TrimSpace(guess)
	if g == "" {
		return false
	}

	return cases.Fold().String(g) == cases.Fold().String(strings.TrimSpace(answer))
}
