package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ArticleLength - код целевого размера статьи (количество условных разделов).
// Клиенты исторически присылают его и числом, и строкой ("4"), поэтому
// десериализация принимает оба варианта.
type ArticleLength int

// Допустимые значения ArticleLength.
var allowedArticleLengths = map[ArticleLength]bool{4: true, 5: true, 6: true, 8: true, 10: true}

// UnmarshalJSON принимает как 4, так и "4".
func (l *ArticleLength) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	v, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("articleLength: ожидалось число, получено %q: %w", string(data), err)
	}
	*l = ArticleLength(v)
	return nil
}

// BodyIterations возвращает количество BODY-итераций пайплайна:
// ceil((articleLength - 2) / 2), каждая итерация покрывает два условных раздела.
func (l ArticleLength) BodyIterations() int {
	n := int(l) - 2
	if n <= 0 {
		return 1
	}
	return (n + 1) / 2
}

// Headings - переопределения заголовков для отдельных этапов генерации.
type Headings struct {
	Introduction string `json:"introduction,omitempty"`
	MainBody     string `json:"mainBody,omitempty"`
	Conclusion   string `json:"conclusion,omitempty"`
}

// ReferenceTexts - вспомогательные справочные тексты, передаваемые отдельно от
// запроса (out-of-band) и потребляемые ровно один раз за прогон.
type ReferenceTexts struct {
	InfoContent    string `json:"infoContent,omitempty"`
	SampleText     string `json:"sampleText,omitempty"`
	SampleKeywords string `json:"sampleKeywords,omitempty"`
}

// GenerationRequest - валидированный запрос на генерацию поста.
// Description и LayoutStructure обязательны, остальные поля опциональны.
type GenerationRequest struct {
	Description        string        `json:"description"`
	ArticleLength      ArticleLength `json:"articleLength"`
	LayoutStructure    string        `json:"layoutStructure"`
	CallToAction       string        `json:"callToAction,omitempty"`
	ToneOfVoice        string        `json:"toneOfVoice,omitempty"`
	LanguageComplexity string        `json:"languageComplexity,omitempty"`
	VocabularyLevel    string        `json:"vocabularyLevel,omitempty"`
	FormalityLevel     string        `json:"formalityLevel,omitempty"`
	VoiceTempo         string        `json:"voiceTempo,omitempty"`
	Keywords           []string      `json:"keywords,omitempty"`
	ReferenceLink      string        `json:"referenceLink,omitempty"`
	Headings           Headings      `json:"headings,omitempty"`
	Subheadings        []string      `json:"subheadings,omitempty"`

	// Ключ, по которому перед прогоном забираются (и удаляются) справочные
	// тексты из ReferenceTextStore.
	ReferenceTextsKey string `json:"referenceTextsKey,omitempty"`

	// Заполняется оркестратором из ReferenceTextStore, не приходит с клиента.
	ReferenceTexts ReferenceTexts `json:"-"`
}

// Validate проверяет обязательные поля запроса.
func (r *GenerationRequest) Validate() error {
	if r.Description == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if r.LayoutStructure == "" {
		return fmt.Errorf("%w: layoutStructure is required", ErrValidation)
	}
	if !allowedArticleLengths[r.ArticleLength] {
		return fmt.Errorf("%w: articleLength must be one of 4, 5, 6, 8, 10 (got %d)", ErrValidation, r.ArticleLength)
	}
	return nil
}

// компилируемая проверка, что ArticleLength реализует json.Unmarshaler
var _ json.Unmarshaler = (*ArticleLength)(nil)
