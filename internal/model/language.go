package model

import "fmt"

// Language is a supported translation language, identified by its lowercase
// ISO 639-1 code. Codes are matched exactly: "EN" is not a valid alias for
// "en".
type Language string

const (
	English    Language = "en"
	Spanish    Language = "es"
	French     Language = "fr"
	German     Language = "de"
	Portuguese Language = "pt"
	Japanese   Language = "ja"
	Korean     Language = "ko"
	Chinese    Language = "zh"
	Arabic     Language = "ar"
	Russian    Language = "ru"
	Hindi      Language = "hi"
)

// Languages lists every supported language in a stable order, used for
// listings and documentation.
var Languages = []Language{
	English, Spanish, French, German, Portuguese,
	Japanese, Korean, Chinese, Arabic, Russian, Hindi,
}

var displayNames = map[Language]string{
	English:    "English",
	Spanish:    "Spanish",
	French:     "French",
	German:     "German",
	Portuguese: "Portuguese",
	Japanese:   "Japanese",
	Korean:     "Korean",
	Chinese:    "Chinese",
	Arabic:     "Arabic",
	Russian:    "Russian",
	Hindi:      "Hindi",
}

// InvalidLanguageError reports a code outside the supported set.
type InvalidLanguageError struct {
	Code string
}

func (e *InvalidLanguageError) Error() string {
	return fmt.Sprintf("unsupported language code %q", e.Code)
}

// ParseLanguage validates a presented language code. Matching is exact and
// case-sensitive; no trimming or normalization is applied.
func ParseLanguage(code string) (Language, error) {
	l := Language(code)
	if _, ok := displayNames[l]; !ok {
		return "", &InvalidLanguageError{Code: code}
	}
	return l, nil
}

// DisplayName returns the English name of the language, as used in the
// translation prompt.
func (l Language) DisplayName() string {
	return displayNames[l]
}
