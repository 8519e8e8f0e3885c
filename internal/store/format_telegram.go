package store

import (
	"fmt"
	"strings"
)

const telegramMaxChars = 3800

// TrimTelegram cuts s to fit in a single Telegram message.
func TrimTelegram(s string) string {
	s = strings.TrimRight(s, "\n")
	runes := []rune(s)
	if len(runes) <= telegramMaxChars {
		return s
	}
	suffix := "\n… (truncated)"
	suffixRunes := []rune(suffix)
	limit := telegramMaxChars - len(suffixRunes)
	if limit < 1 {
		return string(runes[:telegramMaxChars])
	}
	return string(runes[:limit]) + suffix
}

func telegramCategoryEmoji(c Category) string {
	switch c {
	case Active:
		return "📝"
	case Done:
		return "✅"
	case Postponed:
		return "⏳"
	case Cancelled:
		return "🚫"
	default:
		return ""
	}
}

func telegramCategoryLabel(c Category) string {
	name := c.Label()
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	if emoji := telegramCategoryEmoji(c); emoji != "" {
		return emoji + " " + name
	}
	return name
}

// RenderTelegramList renders the tasks in c as a Telegram message.
func (s *Store) RenderTelegramList(c Category) (string, error) {
	names, err := s.List(c)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s (%d)\n\n", telegramCategoryLabel(c), len(names)))
	if len(names) == 0 {
		b.WriteString(fmt.Sprintf("No %s tasks.\n", c.Label()))
		return TrimTelegram(b.String()), nil
	}
	for _, name := range names {
		b.WriteString("• ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	return TrimTelegram(b.String()), nil
}

// RenderTelegramTask renders one task's content under its name.
func RenderTelegramTask(name, content string) string {
	var b strings.Builder
	b.WriteString("📄 ")
	b.WriteString(name)
	b.WriteString("\n\n")
	if body := strings.TrimSpace(content); body != "" {
		b.WriteString(body)
	} else {
		b.WriteString("(empty)")
	}
	return TrimTelegram(b.String())
}
