// Package estimation provides duration and context-size estimates for
// tasks. Durations come from plan annotations like "30m" or "2h30m",
// with a per-category heuristic for plans that carry none. Context usage
// is counted in tokens with the cl100k_base encoding, falling back to a
// character heuristic when the encoding is unavailable.
package estimation

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/Flickinny11/symphony/internal/models"
)

var (
	simpleDurRegex  = regexp.MustCompile(`^(\d+)\s*([mh])$`)
	complexDurRegex = regexp.MustCompile(`^(\d+)h(\d+)m$`)
	bareNumberRegex = regexp.MustCompile(`^(\d+)$`)
)

// ParseDuration parses estimate strings as they appear in plans:
// "30m", "1h", "2h30m", bare numbers as minutes, and anything the
// standard duration syntax accepts.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if matches := simpleDurRegex.FindStringSubmatch(s); len(matches) > 2 {
		val, _ := strconv.Atoi(matches[1])
		if matches[2] == "m" {
			return time.Duration(val) * time.Minute, nil
		}
		return time.Duration(val) * time.Hour, nil
	}

	if matches := complexDurRegex.FindStringSubmatch(s); len(matches) > 2 {
		hours, _ := strconv.Atoi(matches[1])
		minutes, _ := strconv.Atoi(matches[2])
		return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
	}

	if matches := bareNumberRegex.FindStringSubmatch(s); len(matches) > 1 {
		minutes, _ := strconv.Atoi(matches[1])
		return time.Duration(minutes) * time.Minute, nil
	}

	return time.ParseDuration(s)
}

// categoryBase is the baseline estimate for a task with one file and no
// dependencies, by specialty.
var categoryBase = map[models.AgentCategory]time.Duration{
	models.CategoryArchitect:   45 * time.Minute,
	models.CategoryFrontend:    30 * time.Minute,
	models.CategoryBackend:     30 * time.Minute,
	models.CategoryDatabase:    25 * time.Minute,
	models.CategoryIntegration: 35 * time.Minute,
	models.CategoryTesting:     20 * time.Minute,
	models.CategoryDeployment:  15 * time.Minute,
}

// EstimateTask produces a deterministic duration estimate for a task
// that carries none: a category baseline, widened per additional file
// and per dependency, capped at four hours.
func EstimateTask(task *models.Task) time.Duration {
	base, ok := categoryBase[task.Category]
	if !ok {
		base = 30 * time.Minute
	}

	est := base
	if extra := len(task.Files) - 1; extra > 0 {
		est += time.Duration(extra) * 10 * time.Minute
	}
	est += time.Duration(len(task.Dependencies)) * 5 * time.Minute

	if est > 4*time.Hour {
		est = 4 * time.Hour
	}
	return est
}

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

func loadEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			encoding = enc
		}
	})
	return encoding
}

// CountTokens counts tokens with the cl100k_base encoding, falling back
// to EstimateTokens when the encoding cannot be loaded.
func CountTokens(text string) int {
	if enc := loadEncoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return EstimateTokens(text)
}

// EstimateTokens is the cheap heuristic: max(runes/4, word count), at
// least 1 for non-empty text.
func EstimateTokens(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	runes := len([]rune(trimmed))
	words := len(strings.Fields(trimmed))
	estimate := runes / 4
	if estimate < words {
		estimate = words
	}
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}

// TruncateToTokens cuts text down to roughly maxTokens, appending an
// ellipsis when anything was dropped. Used to compact a retiring agent's
// shared state before seeding its successor.
func TruncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	if enc := loadEncoding(); enc != nil {
		tokens := enc.Encode(text, nil, nil)
		if len(tokens) <= maxTokens {
			return text
		}
		return enc.Decode(tokens[:maxTokens]) + "..."
	}
	runes := []rune(text)
	limit := maxTokens * 4
	if limit >= len(runes) {
		return text
	}
	return string(runes[:limit]) + "..."
}
