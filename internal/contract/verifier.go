package contract

import (
	"fmt"
	"regexp"
	"strconv"
)

// SalaryTolerance is the relative delta above which a spoken salary figure is
// treated as a hallucination rather than casual rounding. Heuristic, tunable.
const SalaryTolerance = 0.5

// experienceSanityBound excludes absurd figures (ages, years like 2024) from
// being read as experience claims.
const experienceSanityBound = 50

// Longer unit alternatives first: Go regexp alternation is leftmost-first.
var (
	durationRe = regexp.MustCompile(`(\d+)\s*(سنوات|سنين|سنة|years|year)`)
	currencyRe = regexp.MustCompile(`(\d+)\s*(دنانير|دينار|JOD)`)
)

// VerificationResult reports the outcome of checking one utterance.
type VerificationResult struct {
	Valid              bool
	Error              string
	CorrectedUtterance string
}

// Verifier checks generated utterances against a fact contract and
// auto-corrects numeric mismatches before they reach speech synthesis.
type Verifier struct {
	contract *FactContract
}

// NewVerifier returns a Verifier bound to the given contract.
func NewVerifier(c *FactContract) *Verifier {
	return &Verifier{contract: c}
}

// Verify scans the utterance for duration and currency mentions that
// contradict the contract. Only the first mismatch found is corrected per
// call; callers re-invoke if they want further passes. Verification never
// fails the turn: on mismatch it returns Valid=false plus the corrected text.
// Corrections splice at the match's byte offsets, so an identical substring
// earlier in the utterance is never touched.
func (v *Verifier) Verify(utterance string) VerificationResult {
	for _, m := range durationRe.FindAllStringSubmatchIndex(utterance, -1) {
		n, err := strconv.Atoi(utterance[m[2]:m[3]])
		if err != nil {
			continue
		}
		if n <= 0 || n >= experienceSanityBound {
			continue
		}
		if n == v.contract.yearsOfExperience {
			continue
		}
		unit := utterance[m[4]:m[5]]
		corrected := utterance[:m[0]] +
			fmt.Sprintf("%d %s", v.contract.yearsOfExperience, unit) +
			utterance[m[1]:]
		return VerificationResult{
			Valid: false,
			Error: fmt.Sprintf("hallucination: utterance stated %d years, contract says %d",
				n, v.contract.yearsOfExperience),
			CorrectedUtterance: corrected,
		}
	}

	for _, m := range currencyRe.FindAllStringSubmatchIndex(utterance, -1) {
		amount, err := strconv.Atoi(utterance[m[2]:m[3]])
		if err != nil {
			continue
		}
		if amount == v.contract.expectedSalary {
			continue
		}
		delta := float64(amount - v.contract.expectedSalary)
		if delta < 0 {
			delta = -delta
		}
		// Casual rounding is tolerated; only large relative deltas are flagged.
		if v.contract.expectedSalary > 0 && delta <= SalaryTolerance*float64(v.contract.expectedSalary) {
			continue
		}
		unit := utterance[m[4]:m[5]]
		corrected := utterance[:m[0]] +
			fmt.Sprintf("%d %s", v.contract.expectedSalary, unit) +
			utterance[m[1]:]
		return VerificationResult{
			Valid: false,
			Error: fmt.Sprintf("salary hallucination: utterance stated %d, contract says %d",
				amount, v.contract.expectedSalary),
			CorrectedUtterance: corrected,
		}
	}

	return VerificationResult{Valid: true, CorrectedUtterance: utterance}
}
