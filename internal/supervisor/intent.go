package supervisor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ISL270/multi-agent-ai-realtor/internal/booking"
	"github.com/ISL270/multi-agent-ai-realtor/internal/state"
)

var (
	schedulingPattern = regexp.MustCompile(`(?i)\b(book|booking|schedule|viewing|visit|appointment|come (and )?see|see (it|this|that|the (place|property|apartment|villa|house)))\b`)

	// Words that only mean scheduling when nothing else in the message
	// describes a property, or when a time or viewing word is attached.
	// "available apartments" is a search.
	weakSchedulingPattern  = regexp.MustCompile(`(?i)\b(availab\w*|tours?|slots?)\b`)
	timedSchedulingPattern = regexp.MustCompile(`(?i)\b(availab\w*|slots?)\s+(on|for|at|this|next|tomorrow|today|to (view|visit|see)|times?|slots?|dates?|days?|(mon|tues|wednes|thurs|fri|satur|sun)day)\b|\b(when|times?|dates?|days?)\b[^.?!]*\b(availab\w*|slots?)\b|\b(take|arrange|do|go on) a tour\b|\btour (it|this|that|the (place|property|apartment|villa|house))\b`)

	propertyPattern = regexp.MustCompile(`(?i)\b(apartments?|flats?|villas?|houses?|homes?|townhouses?|duplex(es)?|penthouses?|studios?|chalets?|propert(y|ies)|listings?|bed(room)?s?|bath(room)?s?|price|budget|million|egp|usd|under|below|above|over|cheap(er|est)?|expensive|bigger|smaller|larger|sqm|m2|square met(er|re)s?|area|pool|gym|garden|parking|sort|search|find|looking for)\b|\$\s?\d`)

	showAgainPattern = regexp.MustCompile(`(?i)\bshow (me )?(them|those|these|the (results|properties|listings)|it) again\b|\b(show|see) again\b`)

	greetingPattern = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|good (morning|afternoon|evening)|salam|hiya)\b[\s!.,]*(there)?[\s!.,]*$`)

	farewellPattern = regexp.MustCompile(`(?i)^\s*(bye|goodbye|good bye|see you|that'?s all|that is all|no,? thanks?|nothing else)\b`)

	thanksPattern = regexp.MustCompile(`(?i)^\s*(thanks|thank you|thx|cheers)\b[\s!.]*$`)
)

// profile fact patterns; group 1 is the value.
var (
	namePattern     = regexp.MustCompile(`(?i)\b(?:my name is|call me)\s+([a-z][a-z'\-]*(?:\s[a-z][a-z'\-]*){0,2})`)
	jobPattern      = regexp.MustCompile(`(?i)\b(?:i work as(?: an?)?|my job is(?: an?)?|i'?m employed as(?: an?)?)\s+([a-z][a-z \-]{1,40}?)(?:[,.!]|\s+and\b|$)`)
	phonePattern    = regexp.MustCompile(`(?i)\b(?:phone|mobile|cell|number)(?:\s+number)?(?:\s+is|:)?\s*(\+?[0-9][0-9 \-]{6,18}[0-9])`)
	barePhone       = regexp.MustCompile(`^\s*(\+?[0-9][0-9 \-]{6,18}[0-9])\s*[.!]?\s*$`)
	childrenPattern = regexp.MustCompile(`(?i)\bi have (\d{1,2}|no|one|two|three|four|five|six) (?:kids?|children|child|sons?|daughters?)\b`)
	cityPattern     = regexp.MustCompile(`(?i)\bi live in\s+([a-z][a-z \-]{1,40}?)(?:[,.!]|\s+(?:and|with|but)\b|$)`)
	preferPattern   = regexp.MustCompile(`(?i)\bi (?:prefer|always wanted|would love)\s+([^.,!?]{3,80})`)
)

var smallNumbers = map[string]int{"no": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6}

func hasSchedulingIntent(msg string) bool {
	if schedulingPattern.MatchString(msg) {
		return true
	}
	if !weakSchedulingPattern.MatchString(msg) {
		return false
	}
	return !hasPropertyIntent(msg) || timedSchedulingPattern.MatchString(msg)
}

func hasPropertyIntent(msg string) bool { return propertyPattern.MatchString(msg) }
func wantsShowAgain(msg string) bool    { return showAgainPattern.MatchString(msg) }
func isGreeting(msg string) bool        { return greetingPattern.MatchString(msg) }
func isFarewell(msg string) bool        { return farewellPattern.MatchString(msg) }
func isThanks(msg string) bool          { return thanksPattern.MatchString(msg) }

// profileFacts finds self-descriptions in msg that are not already stored
// in p. Commands come out in ProfileKeys order.
func profileFacts(msg string, p state.UserProfile) []state.Command {
	found := make(map[string]any)

	if m := namePattern.FindStringSubmatch(msg); m != nil {
		if name := cutName(m[1]); name != "" {
			found[state.ProfileName] = name
		}
	}
	if m := jobPattern.FindStringSubmatch(msg); m != nil {
		found[state.ProfileJob] = strings.TrimSpace(m[1])
	}
	if m := phonePattern.FindStringSubmatch(msg); m != nil && booking.PhonePattern.MatchString(m[1]) {
		found[state.ProfilePhone] = m[1]
	} else if m := barePhone.FindStringSubmatch(msg); m != nil && booking.PhonePattern.MatchString(m[1]) {
		found[state.ProfilePhone] = m[1]
	}
	if m := childrenPattern.FindStringSubmatch(msg); m != nil {
		word := strings.ToLower(m[1])
		if n, ok := smallNumbers[word]; ok {
			found[state.ProfileNumOfChildren] = n
		} else if n, err := strconv.Atoi(word); err == nil {
			found[state.ProfileNumOfChildren] = n
		}
	}
	if m := cityPattern.FindStringSubmatch(msg); m != nil {
		found[state.ProfileCityOfResidence] = titleCase(m[1])
	}
	if m := preferPattern.FindStringSubmatch(msg); m != nil {
		found[state.ProfilePropertyPreferences] = strings.TrimSpace(m[1])
	}

	var cmds []state.Command
	for _, key := range state.ProfileKeys {
		v, ok := found[key]
		if !ok {
			continue
		}
		if stored, set := p.Get(key); set && stored == display(v) {
			continue
		}
		cmds = append(cmds, state.SetUserProfileField{Key: key, Value: v})
	}
	return cmds
}

func display(v any) string {
	switch t := v.(type) {
	case int:
		return strconv.Itoa(t)
	case string:
		return t
	}
	return ""
}

var nameStopWords = map[string]bool{"and": true, "i": true, "i'm": true, "im": true, "from": true, "but": true, "with": true, "looking": true, "here": true}

// cutName keeps the words of a captured name up to the first stop word.
func cutName(s string) string {
	var kept []string
	for _, w := range strings.Fields(s) {
		if nameStopWords[strings.ToLower(w)] {
			break
		}
		kept = append(kept, w)
	}
	return titleCase(strings.Join(kept, " "))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
