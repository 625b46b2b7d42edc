package persona

import "regexp"

// RedirectNote is appended to the candidate's transcribed input when it is
// predominantly English. The prompt builder sees it as context, so the next
// generated reply steers back to Arabic in the agent's own words.
const RedirectNote = "[ملاحظة للنظام: المتقدم حكى بالإنجليزي - ذكّريه بلطف إنه المقابلة بالعربي]"

var latinWordRe = regexp.MustCompile(`\b[a-zA-Z]{3,}\b`)

// candidateEnglishThreshold is how many Latin-script words mark the
// candidate's input as predominantly English.
const candidateEnglishThreshold = 2

// CandidateMonitor watches the candidate's own words. Unlike the agent-side
// Enforcer it never fails a turn; it only supplies a redirect note the
// prompt builder may use.
type CandidateMonitor struct{}

// NewCandidateMonitor returns a CandidateMonitor.
func NewCandidateMonitor() *CandidateMonitor {
	return &CandidateMonitor{}
}

// Check reports whether the input is predominantly in the disallowed
// language, and if so returns the contextual redirect note.
func (m *CandidateMonitor) Check(input string) (bool, string) {
	words := latinWordRe.FindAllString(input, -1)
	if len(words) >= candidateEnglishThreshold {
		return true, RedirectNote
	}
	return false, ""
}
