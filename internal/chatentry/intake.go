package chatentry

import "strings"

// minutesPerLesson is the conversion spec.md §4.10 states: a bare lesson
// count (no explicit duration) is normalized to minutes at 40 per lesson,
// carried from utils/intake.py's intake normalization.
const minutesPerLesson = 40

// classroomModeAliases maps free-text classroom descriptions onto the
// fixed classroom_mode vocabulary constraints expect.
var classroomModeAliases = map[string]string{
	"in-person":   "normal",
	"in person":   "normal",
	"traditional": "normal",
	"classroom":   "normal",
	"remote":      "remote",
	"online":      "remote",
	"virtual":     "remote",
	"hybrid":      "hybrid",
	"blended":     "hybrid",
	"常规教室":        "normal",
	"机房":          "computer_lab",
	"通识课实验室":      "general_lab",
}

// DurationFromLessonCount converts a lesson count into minutes.
func DurationFromLessonCount(lessonCount int) int {
	if lessonCount <= 0 {
		return 0
	}
	return lessonCount * minutesPerLesson
}

// NormalizeClassroomMode maps a free-text classroom type onto the fixed
// classroom_mode vocabulary, defaulting to "normal" for anything
// unrecognized.
func NormalizeClassroomMode(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if mode, ok := classroomModeAliases[key]; ok {
		return mode
	}
	return "normal"
}

// NormalizeDuration resolves intake duration fields: an explicit
// duration_minutes wins; otherwise a lesson_count is converted via
// DurationFromLessonCount; otherwise 0 (caller defaults downstream).
func NormalizeDuration(durationMinutes, lessonCount int) int {
	if durationMinutes > 0 {
		return durationMinutes
	}
	return DurationFromLessonCount(lessonCount)
}
