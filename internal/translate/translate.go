package translate

import (
	"context"
	"strings"
)

// Translator — контракт для dispatcher и AI-ветки.
type Translator interface {
	// Translate переводит text c sourceLang на targetLang (ISO 639-1).
	// При любой ошибке бекенда возвращается исходный текст и ошибка:
	// вызывающий доставляет оригинал, а не роняет fan-out.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)

	// DetectLanguage определяет язык текста, когда источник неизвестен.
	DetectLanguage(ctx context.Context, text string) (string, error)
}

// NormalizeLang приводит BCP-47 теги к базовому коду бекенда:
// "EN" -> "en", "fr-CA" -> "fr", "en_US" -> "en".
func NormalizeLang(code string) string {
	lang := strings.ToLower(strings.TrimSpace(code))
	if idx := strings.IndexAny(lang, "-_"); idx >= 0 {
		lang = lang[:idx]
	}
	return lang
}
