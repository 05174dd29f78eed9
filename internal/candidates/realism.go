package candidates

import "strings"

// DefaultBlocklist is the built-in scenario realism blocklist (spec.md
// §4.7.2), grounded verbatim on validators/scenario_realism.py's
// DEFAULT_BLOCKLIST.
var DefaultBlocklist = []string{
	"魔法", "魔幻", "咒语", "巫师", "穿越", "外星", "异世界", "超能力", "科幻", "未来世界", "时空旅行", "量子穿梭",
	"magic", "wizard", "spell", "time travel", "alien", "sci-fi", "science fiction", "superpower",
}

// FindUnrealisticTerm returns the first blocklist term found in text
// (case-insensitively), or "" if text is clean. A nil/empty blocklist
// falls back to DefaultBlocklist.
func FindUnrealisticTerm(text string, blocklist []string) string {
	if text == "" {
		return ""
	}
	terms := blocklist
	if len(terms) == 0 {
		terms = DefaultBlocklist
	}
	lowered := strings.ToLower(text)
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(term)) {
			return term
		}
	}
	return ""
}
