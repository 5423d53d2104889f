package content

import (
	"strconv"
	"strings"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// EscapeHTML escapes content text for Telegram HTML parse mode.
func EscapeHTML(text string) string {
	if text == "" {
		return ""
	}
	return htmlEscaper.Replace(text)
}

// TryNoun returns the Russian noun form matching the attempt count.
func TryNoun(count int) string {
	switch {
	case count == 1:
		return "попытка"
	case count >= 2 && count <= 4:
		return "попытки"
	default:
		return "попыток"
	}
}

// IntervalText renders the cool-down window as human-readable text.
func IntervalText(hours int) string {
	days := (hours + 12) / 24
	switch {
	case days == 1:
		return "1 день"
	case days > 1 && days < 5:
		return strconv.Itoa(days) + " дня"
	case days >= 5:
		return strconv.Itoa(days) + " дней"
	default:
		return strconv.Itoa(hours) + " часов"
	}
}

// FillFail substitutes the remaining attempt count into a fail template.
func FillFail(text string, remaining int) string {
	text = strings.ReplaceAll(text, "{count}", strconv.Itoa(remaining))
	return strings.ReplaceAll(text, "{try_noun}", TryNoun(remaining))
}

// FillTryLater substitutes the cool-down interval into a tryLater template.
func FillTryLater(text string, hours int) string {
	return strings.ReplaceAll(text, "{interval}", IntervalText(hours))
}
