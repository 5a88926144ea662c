package parser

import (
	"regexp"
	"strings"
)

var featureWords = []struct {
	word    string
	feature string
}{
	{"wireless", "wireless connectivity"},
	{"bluetooth", "Bluetooth"},
	{"usb-c", "USB-C"},
	{"rechargeable", "rechargeable battery"},
	{"waterproof", "waterproof"},
	{"water resistant", "water resistant"},
	{"portable", "portable design"},
	{"ergonomic", "ergonomic design"},
	{"noise cancelling", "noise cancelling"},
	{"stainless steel", "stainless steel"},
	{"cotton", "cotton"},
	{"leather", "leather"},
	{"organic", "organic"},
	{"adjustable", "adjustable"},
	{"foldable", "foldable"},
	{"lightweight", "lightweight"},
	{"led", "LED"},
	{"smart", "smart features"},
}

var (
	capacityPattern = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:gb|tb|mah|ml|l|oz|w|inch|in|cm|mm)\b`)
	packPattern     = regexp.MustCompile(`(?i)\b(\d+)\s?(?:-\s?)?(?:pack|pcs|pieces|count)\b`)
)

// Features lists the notable properties spelled out in a product name.
func Features(name string) []string {
	lower := strings.ToLower(name)
	var out []string
	for _, fw := range featureWords {
		if containsWord(lower, fw.word) {
			out = append(out, fw.feature)
		}
	}
	if m := capacityPattern.FindString(name); m != "" {
		out = append(out, strings.TrimSpace(m))
	}
	if m := packPattern.FindStringSubmatch(name); m != nil {
		out = append(out, "pack of "+m[1])
	}
	return out
}

// Describe writes a short description for records the site did not describe.
func Describe(name string) string {
	name = CleanText(name)
	if name == "" {
		return ""
	}
	features := Features(name)
	if len(features) == 0 {
		return name
	}
	return name + ". Features: " + strings.Join(features, ", ") + "."
}

func containsWord(text, word string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], word)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(word)
		if (start == 0 || !isWordByte(text[start-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
