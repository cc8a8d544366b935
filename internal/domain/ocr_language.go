package domain

import "strings"

// OCRLanguage язык распознавания текста
type OCRLanguage string

const (
	OCRLanguageUnknown            OCRLanguage = "UNKNOWN"
	OCRLanguageAuto               OCRLanguage = "AUTO"
	OCRLanguageEnglish            OCRLanguage = "ENGLISH"
	OCRLanguageChinese            OCRLanguage = "CHINESE"
	OCRLanguageChineseTraditional OCRLanguage = "CHINESE_TRADITIONAL"
	OCRLanguageKorean             OCRLanguage = "KOREAN"
	OCRLanguageJapanese           OCRLanguage = "JAPANESE"
	OCRLanguageLatin              OCRLanguage = "LATIN"
	OCRLanguageDevanagari         OCRLanguage = "DEVANAGARI"
	OCRLanguageCyrillic           OCRLanguage = "CYRILLIC"
	OCRLanguageArabic             OCRLanguage = "ARABIC"
	OCRLanguageTamil              OCRLanguage = "TAMIL"
	OCRLanguageTelugu             OCRLanguage = "TELUGU"
	OCRLanguageKannada            OCRLanguage = "KANNADA"
	OCRLanguageThai               OCRLanguage = "THAI"
	OCRLanguageGreek              OCRLanguage = "GREEK"
	OCRLanguageEslav              OCRLanguage = "ESLAV"
)

var ocrLanguages = map[OCRLanguage]string{
	OCRLanguageAuto:               "",
	OCRLanguageEnglish:            "English",
	OCRLanguageChinese:            "Simplified Chinese",
	OCRLanguageChineseTraditional: "Traditional Chinese",
	OCRLanguageKorean:             "Korean",
	OCRLanguageJapanese:           "Japanese",
	OCRLanguageLatin:              "Latin script",
	OCRLanguageDevanagari:         "Devanagari script",
	OCRLanguageCyrillic:           "Cyrillic script",
	OCRLanguageArabic:             "Arabic",
	OCRLanguageTamil:              "Tamil",
	OCRLanguageTelugu:             "Telugu",
	OCRLanguageKannada:            "Kannada",
	OCRLanguageThai:               "Thai",
	OCRLanguageGreek:              "Greek",
	OCRLanguageEslav:              "Old Church Slavonic",
}

// ParseOCRLanguage разбирает язык; пустая строка означает AUTO
func ParseOCRLanguage(s string) (OCRLanguage, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return OCRLanguageAuto, nil
	}
	lang := OCRLanguage(s)
	if !lang.IsValid() {
		return "", ErrInvalidOption
	}
	return lang, nil
}

// IsValid проверяет, что язык можно выбрать. UNKNOWN выбрать нельзя.
func (l OCRLanguage) IsValid() bool {
	_, ok := ocrLanguages[l]
	return ok
}

// DisplayName человекочитаемое название для подсказки модели OCR
func (l OCRLanguage) DisplayName() string {
	return ocrLanguages[l]
}

func (l OCRLanguage) String() string {
	return string(l)
}
