package payee

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CheckFallbackName is used for check payees whose description names nobody.
const CheckFallbackName = "Check"

var (
	// Matches "Check #1234", "CHECK 5678", "Check No. 999", "Check Paid #1234".
	checkPayeePattern = regexp.MustCompile(`(?i)^check\s+(paid\s+)?(#|no\.?)?\s*\d+$`)
	bareCheckPattern  = regexp.MustCompile(`(?i)^check\s*#?\d+$`)

	// Tried in order; each has exactly one capture group for the payee name.
	// Shapes: "Check #1234 - Payee", "Check #1234 to Payee",
	// "Check payment to Payee", "Check #1234 payable to Payee".
	extractionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)check\s*#?\d+\s*[-–]\s*(.+?)(?:\s*[-–]|$)`),
		regexp.MustCompile(`(?i)check\s*#?\d+\s*to\s+(.+?)(?:\s*[-–]|$)`),
		regexp.MustCompile(`(?i)check\s+payment\s+to\s+(.+?)(?:\s*[-–]|$)`),
		regexp.MustCompile(`(?i)check\s*#?\d+\s*payable\s+to\s+(.+?)(?:\s*[-–]|$)`),
	}
)

// Normalize collapses check-number payees ("Check #1234") into a meaningful
// name taken from the description, or "Check" when none can be found.
// Any other payee is returned unchanged.
func Normalize(rawPayee, description string) string {
	if rawPayee == "" {
		return rawPayee
	}
	if !checkPayeePattern.MatchString(rawPayee) {
		return rawPayee
	}
	if name := extractFromDescription(description); name != "" {
		return name
	}
	return CheckFallbackName
}

func extractFromDescription(description string) string {
	if description == "" {
		return ""
	}
	for _, re := range extractionPatterns {
		m := re.FindStringSubmatch(description)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if name != "" && !bareCheckPattern.MatchString(name) {
			return name
		}
	}
	return ""
}

// CleanName puts a payee name into canonical form for lookup: NFC unicode,
// trimmed, with inner whitespace runs collapsed.
func CleanName(name string) string {
	return strings.Join(strings.Fields(norm.NFC.String(name)), " ")
}
