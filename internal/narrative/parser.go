// Package narrative extracts a structured story from free-form model output.
//
// The generator is asked for a plain-text contract (a 标题： line, the story
// body, then a 故事里的小道理： section with numbered lines) but nothing
// enforces it, so parsing is best-effort: every missing marker degrades to a
// fixed fallback and Parse never fails.
package narrative

import (
	"regexp"
	"strings"
)

const (
	titleLabel     = "标题："
	takeawaysLabel = "故事里的小道理："

	// FallbackTitle is used when no title line is found.
	FallbackTitle = "无题"
)

// FallbackTakeaways is substituted when no numbered takeaways are parsed.
// Changing these values is an observable behavior change for consumers.
var FallbackTakeaways = []string{"勇敢面对挑战", "相信自己"}

var (
	titleRe    = regexp.MustCompile(titleLabel + `(.*?)\n`)
	numberedRe = regexp.MustCompile(`^\d+\.\s*`)
)

// Narrative is an immutable parse result. Takeaways is never empty.
type Narrative struct {
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Takeaways []string `json:"takeaways"`
}

// Parse extracts {title, body, takeaways} from a text blob.
func Parse(text string) Narrative {
	title := FallbackTitle
	titleLoc := titleRe.FindStringSubmatchIndex(text)
	if titleLoc != nil {
		title = strings.TrimSpace(text[titleLoc[2]:titleLoc[3]])
	}

	var body string
	var takeaways []string

	if idx := strings.Index(text, takeawaysLabel); idx != -1 {
		start := 0
		if titleLoc != nil {
			start = titleLoc[1]
		}
		body = strings.TrimSpace(strings.Replace(text[start:idx], "---", "", 1))

		for _, line := range strings.Split(text[idx:], "\n") {
			if !numberedRe.MatchString(line) {
				continue
			}
			item := strings.TrimSpace(numberedRe.ReplaceAllString(line, ""))
			if item == "" {
				continue
			}
			takeaways = append(takeaways, item)
		}
	} else {
		// No takeaways section: body is the whole text minus the first
		// title line.
		if titleLoc != nil {
			body = strings.TrimSpace(text[:titleLoc[0]] + text[titleLoc[1]:])
		} else {
			body = strings.TrimSpace(text)
		}
	}

	if len(takeaways) == 0 {
		takeaways = append([]string(nil), FallbackTakeaways...)
	}

	return Narrative{Title: title, Body: body, Takeaways: takeaways}
}
