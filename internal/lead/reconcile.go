package lead

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"

	"github.com/sells-group/lead-engine/internal/model"
)

// HasData reports whether an enrichment pass found anything worth showing.
func HasData(d *model.EnrichedData) bool {
	if d == nil {
		return false
	}
	return strings.TrimSpace(d.Summary) != "" ||
		d.LinkedInURL != "" ||
		len(d.Emails) > 0 ||
		len(d.Phones) > 0
}

// SortByConfidence returns a copy of infos ordered high, medium, low.
// Equal confidences keep their input order.
func SortByConfidence(infos []model.EnrichedContactInfo) []model.EnrichedContactInfo {
	out := make([]model.EnrichedContactInfo, len(infos))
	copy(out, infos)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence.Rank() < out[j].Confidence.Rank()
	})
	return out
}

// BestEmail picks the email to send downstream: the top enriched email,
// then the lead's own email, then empty.
func BestEmail(l model.Lead) string {
	if l.EnrichedData != nil && len(l.EnrichedData.Emails) > 0 {
		return SortByConfidence(l.EnrichedData.Emails)[0].Value
	}
	if l.HasEmail() {
		return l.Email
	}
	return ""
}

// BestPhone is BestEmail for phone numbers.
func BestPhone(l model.Lead) string {
	if l.EnrichedData != nil && len(l.EnrichedData.Phones) > 0 {
		return SortByConfidence(l.EnrichedData.Phones)[0].Value
	}
	if l.HasPhone() {
		return l.Phone
	}
	return ""
}

// MergeEmails combines email candidates from several sources. See merge.
func MergeEmails(sources ...[]model.EnrichedContactInfo) []model.EnrichedContactInfo {
	return merge(emailKey, sources)
}

// MergePhones combines phone candidates from several sources. See merge.
func MergePhones(sources ...[]model.EnrichedContactInfo) []model.EnrichedContactInfo {
	return merge(phoneKey, sources)
}

// merge deduplicates candidates by canonical key, keeping the first-seen
// spelling and the best confidence. Masked candidates never reach the
// output; equal-length masked candidates that overlay into one complete
// value contribute it at low confidence.
func merge(key func(string) string, sources [][]model.EnrichedContactInfo) []model.EnrichedContactInfo {
	var (
		out    []model.EnrichedContactInfo
		index  = make(map[string]int)
		masked = make(map[int][]string)
		order  []int
	)

	add := func(info model.EnrichedContactInfo) {
		k := key(info.Value)
		if i, ok := index[k]; ok {
			if info.Confidence.Rank() < out[i].Confidence.Rank() {
				out[i].Confidence = info.Confidence
			}
			return
		}
		index[k] = len(out)
		out = append(out, info)
	}

	for _, src := range sources {
		for _, info := range src {
			v := strings.TrimSpace(info.Value)
			if model.IsNotFound(v) {
				continue
			}
			if IsMasked(v) {
				n := utf8.RuneCountInString(v)
				if _, seen := masked[n]; !seen {
					order = append(order, n)
				}
				masked[n] = append(masked[n], v)
				continue
			}
			add(model.EnrichedContactInfo{Value: v, Confidence: model.ParseConfidence(string(info.Confidence))})
		}
	}

	for _, n := range order {
		if v, ok := Reconstruct(masked[n]); ok {
			add(model.EnrichedContactInfo{Value: v, Confidence: model.ConfidenceLow})
		}
	}

	return SortByConfidence(out)
}

func emailKey(v string) string {
	return cases.Fold().String(strings.TrimSpace(v))
}

func phoneKey(v string) string {
	narrow := width.Narrow.String(v)
	var b strings.Builder
	for _, r := range narrow {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return cases.Fold().String(strings.TrimSpace(v))
	}
	return b.String()
}

// IsMasked reports whether v hides some of its characters behind '*',
// '•', '…' or a run of three or more 'x'.
func IsMasked(v string) bool {
	for _, m := range maskPositions([]rune(v)) {
		if m {
			return true
		}
	}
	return false
}

// Reconstruct overlays partially masked values of equal length. It
// succeeds only when every position is revealed by at least one value and
// no two values disagree on a revealed character.
func Reconstruct(masked []string) (string, bool) {
	if len(masked) == 0 {
		return "", false
	}

	var (
		size   = -1
		result []rune
		filled []bool
	)
	for _, v := range masked {
		runes := []rune(v)
		if size < 0 {
			size = len(runes)
			result = make([]rune, size)
			filled = make([]bool, size)
		}
		if len(runes) != size {
			return "", false
		}
		hidden := maskPositions(runes)
		for i, r := range runes {
			if hidden[i] {
				continue
			}
			if filled[i] {
				if unicode.ToLower(result[i]) != unicode.ToLower(r) {
					return "", false
				}
				continue
			}
			result[i] = r
			filled[i] = true
		}
	}

	for _, ok := range filled {
		if !ok {
			return "", false
		}
	}
	return string(result), true
}

func maskPositions(runes []rune) []bool {
	hidden := make([]bool, len(runes))
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '*', '•', '…':
			hidden[i] = true
		case 'x', 'X':
			j := i
			for j < len(runes) && (runes[j] == 'x' || runes[j] == 'X') {
				j++
			}
			if j-i >= 3 {
				for k := i; k < j; k++ {
					hidden[k] = true
				}
			}
			i = j - 1
		}
	}
	return hidden
}
