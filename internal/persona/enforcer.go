// Package persona enforces the agent's mandated dialect: Jordanian Arabic
// only, with zero tolerance for English output.
package persona

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/rs/zerolog/log"
)

// englishPatterns is the fixed lexical pattern set for disallowed-language
// detection. The final pattern catches any longer Latin-script word.
var englishPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(the|and|is|are|was|were|have|has|had)\b`),
	regexp.MustCompile(`(?i)\b(this|that|these|those|what|when|where|why|how)\b`),
	regexp.MustCompile(`(?i)\b(experience|salary|job|work|candidate|interview)\b`),
	regexp.MustCompile(`(?i)\b(years?|months?|days?|time|because|actually)\b`),
	regexp.MustCompile(`\b[a-zA-Z]{4,}\b`),
}

// arabicScriptRe strips Arabic script and whitespace, leaving the residue the
// statistical identifier inspects.
var arabicScriptRe = regexp.MustCompile(`[\x{0600}-\x{06FF}\s]+`)

// residueMinLen is the minimum residue length worth running language
// identification on; shorter fragments are too noisy to classify.
const residueMinLen = 10

// substitution is one MSA (formal) to Jordanian (colloquial) replacement.
// Ordered: multi-word phrases must apply before their suffixes.
type substitution struct {
	formal     string
	colloquial string
}

var msaToJordanian = []substitution{
	{"كيف حالك", "كيفك"},
	{"هل لديك", "عندك"},
	{"لماذا", "ليش"},
	{"ماذا", "شو"},
	{"أين", "وين"},
	{"متى", "إيمتى"},
	{"سوف", "راح"},
	{"سأقوم", "راح"},
	{"أريد", "بدي"},
	{"أنت", "انت"},
	{"لديك", "عندك"},
	{"ذلك", "هاد"},
	{"هذا", "هاد"},
	{"ممتاز", "كتير منيح"},
	{"جيد", "منيح"},
}

// jordanianMarkers are colloquial tokens whose presence signals the dialect
// is holding. At least one is expected per utterance.
var jordanianMarkers = []string{
	"شو", "ليش", "وين", "كيفك", "راح", "عم", "بدي",
	"هيك", "منيح", "كتير", "شوي", "هسا", "بعدين",
	"يعني", "انت", "عندك", "حكيلي", "شفت",
}

// EnforcementResult reports the outcome of enforcing persona rules on one
// utterance. CorrectedUtterance carries the substituted text even when the
// result is invalid, so callers can choose to discard or keep it.
type EnforcementResult struct {
	Valid              bool
	Error              string
	CorrectedUtterance string
	WeakDialect        bool
}

// Enforcer checks and corrects utterances against the dialect rules.
type Enforcer struct {
	violations int
}

// NewEnforcer returns a fresh Enforcer.
func NewEnforcer() *Enforcer {
	return &Enforcer{}
}

// Enforce applies the persona rules in order: disallowed-language detection
// (invalid on hit, no auto-fix — naive substitution cannot repair grammar),
// then MSA-to-Jordanian lexical substitution regardless of validity, then a
// soft check for at least one Jordanian marker.
func (e *Enforcer) Enforce(utterance string) EnforcementResult {
	res := EnforcementResult{Valid: true}

	if found, detail := detectEnglish(utterance); found {
		e.violations++
		res.Valid = false
		res.Error = detail
	}

	corrected := utterance
	for _, s := range msaToJordanian {
		corrected = strings.ReplaceAll(corrected, s.formal, s.colloquial)
	}
	res.CorrectedUtterance = corrected

	if !hasJordanianMarker(corrected) {
		res.WeakDialect = true
		log.Warn().Str("utterance", truncate(corrected, 60)).Msg("Weak Jordanian dialect in generated utterance")
	}

	return res
}

// Violations returns how many disallowed-language hits this enforcer has seen.
func (e *Enforcer) Violations() int {
	return e.violations
}

func detectEnglish(text string) (bool, string) {
	for _, re := range englishPatterns {
		if m := re.FindString(text); m != "" {
			return true, fmt.Sprintf("disallowed language token %q", m)
		}
	}

	// Statistical fallback on the non-Arabic residue.
	residue := arabicScriptRe.ReplaceAllString(text, "")
	if len(residue) > residueMinLen {
		info := whatlanggo.Detect(residue)
		if info.Lang == whatlanggo.Eng && info.IsReliable() {
			return true, "disallowed language detected in script residue"
		}
	}

	return false, ""
}

func hasJordanianMarker(text string) bool {
	for _, marker := range jordanianMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
