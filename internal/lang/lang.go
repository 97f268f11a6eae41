// Package lang resolves caller-supplied language codes and records which
// languages the OCR and speech engines can serve.
package lang

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Language is a resolved language code.
type Language struct {
	Code   string // normalized input, e.g. "zh-cn"
	Base   string // base subtag, e.g. "zh"
	Script string // ISO 15924 script, e.g. "Hans"
}

// UnsupportedLanguageError is returned for codes that are not valid BCP 47
// language tags at all. Codes that parse but have no dedicated rules degrade
// to defaults instead.
type UnsupportedLanguageError struct {
	Code string
	Err  error
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("unsupported language %q", e.Code)
}

func (e *UnsupportedLanguageError) Unwrap() error { return e.Err }

// Resolve parses code into a Language.
func Resolve(code string) (Language, error) {
	norm := strings.ToLower(strings.TrimSpace(code))
	if norm == "" {
		return Language{}, &UnsupportedLanguageError{Code: code}
	}
	tag, err := language.Parse(norm)
	if err != nil {
		return Language{}, &UnsupportedLanguageError{Code: code, Err: err}
	}
	base, conf := tag.Base()
	if conf == language.No || base.String() == "und" {
		return Language{}, &UnsupportedLanguageError{Code: code}
	}
	script, _ := tag.Script()
	return Language{
		Code:   norm,
		Base:   base.String(),
		Script: script.String(),
	}, nil
}

// Spaceless reports whether the script does not separate words with spaces.
func (l Language) Spaceless() bool {
	switch l.Script {
	case "Hans", "Hant", "Jpan", "Thai", "Khmr", "Laoo", "Mymr":
		return true
	}
	return false
}

// Name returns the English name of l, e.g. "Turkish".
func Name(l Language) string {
	tag, err := language.Parse(l.Code)
	if err != nil {
		return l.Code
	}
	if n := display.English.Tags().Name(tag); n != "" {
		return n
	}
	return l.Code
}

// TTSLanguages are the languages the multilingual speech engines accept.
var TTSLanguages = []string{
	"en", "es", "fr", "de", "it", "pt", "pl", "tr",
	"ru", "nl", "cs", "ar", "zh-cn", "ja", "hu", "ko",
}

// tesseractCodes maps base languages to tesseract traineddata names where
// they differ from ISO 639-3.
var tesseractCodes = map[string]string{
	"zh": "chi_sim",
	"az": "aze",
	"sr": "srp",
	"uz": "uzb",
}

// ocrBases are the base languages with tesseract models in a standard install.
var ocrBases = []string{
	"af", "ar", "az", "be", "bg", "bn", "ca", "cs", "cy", "da", "de", "el",
	"en", "es", "et", "eu", "fa", "fi", "fr", "ga", "gl", "he", "hi", "hr",
	"hu", "hy", "id", "is", "it", "ja", "ka", "kk", "ko", "lt", "lv", "mk",
	"ml", "mn", "mr", "ms", "nl", "no", "pl", "pt", "ro", "ru", "sk", "sl",
	"sq", "sr", "sv", "sw", "ta", "te", "th", "tr", "uk", "ur", "uz", "vi",
	"zh",
}

// SupportsOCR reports whether the OCR engine has a model for l.
func SupportsOCR(l Language) bool {
	return slices.Contains(ocrBases, l.Base)
}

// Tesseract returns the tesseract language name for l.
func Tesseract(l Language) string {
	if l.Base == "zh" && (l.Script == "Hant" || strings.HasSuffix(l.Code, "-tw") || strings.HasSuffix(l.Code, "-hk")) {
		return "chi_tra"
	}
	if code, ok := tesseractCodes[l.Base]; ok {
		return code
	}
	base, err := language.ParseBase(l.Base)
	if err != nil {
		return l.Base
	}
	return base.ISO3()
}

// Valid returns the sorted languages supported by both OCR and speech.
func Valid() []string {
	var out []string
	for _, code := range TTSLanguages {
		l, err := Resolve(code)
		if err != nil {
			continue
		}
		if SupportsOCR(l) {
			out = append(out, code)
		}
	}
	slices.Sort(out)
	return out
}

// IsValid reports whether code is in Valid.
func IsValid(code string) bool {
	return slices.Contains(Valid(), strings.ToLower(strings.TrimSpace(code)))
}
