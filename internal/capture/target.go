package capture

import (
	"strings"
	"unicode/utf8"

	"github.com/leshachaplin/mouselog/internal/domain"
)

const (
	maxTargetText    = 50
	truncationMarker = "..."
)

func describeTarget(el Element, event *domain.Event) {
	if el == nil {
		return
	}

	event.TargetTag = ptr(strings.ToLower(el.TagName()))
	if id, ok := el.Attribute("id"); ok {
		event.TargetID = ptr(id)
	}
	if class, ok := el.Attribute("class"); ok {
		event.TargetClass = ptr(class)
	}
	if text, ok := truncateText(el.InnerText()); ok {
		event.TargetText = ptr(text)
	}
}

// truncateText counts characters, not bytes, so a multi-byte character is
// never split.
func truncateText(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	if utf8.RuneCountInString(text) <= maxTargetText {
		return text, true
	}

	n := 0
	for i := range text {
		if n == maxTargetText {
			return text[:i] + truncationMarker, true
		}
		n++
	}
	return text, true
}
