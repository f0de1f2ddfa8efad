package prompt_test

import (
	"strings"
	"testing"

	"post-server/internal/model"
	"post-server/internal/prompt"

	"github.com/stretchr/testify/assert"
)

func baseRequest() model.GenerationRequest {
	return model.GenerationRequest{
		Description:     "urban beekeeping",
		ArticleLength:   4,
		LayoutStructure: "magazine",
	}
}

func TestCompose_IntroductionContainsTopicAndRules(t *testing.T) {
	req := baseRequest()
	instr := prompt.Compose(prompt.StageIntroduction, 0, req)

	assert.Contains(t, instr, "urban beekeeping")
	assert.Contains(t, instr, "introduction")
	// Опциональные поля пусты - их фраз быть не должно
	assert.NotContains(t, instr, "Tone of voice")
	assert.NotContains(t, instr, "call to action")
	assert.NotContains(t, instr, "keywords")
}

func TestCompose_OptionalClausesPresentWhenSet(t *testing.T) {
	req := baseRequest()
	req.ToneOfVoice = "playful"
	req.Keywords = []string{"honey", "rooftop hives"}
	instr := prompt.Compose(prompt.StageIntroduction, 0, req)

	assert.Contains(t, instr, "Tone of voice: playful.")
	assert.Contains(t, instr, "honey, rooftop hives")
}

func TestCompose_HeadingOverridesApplyToOwnStageOnly(t *testing.T) {
	req := baseRequest()
	req.Headings = model.Headings{
		Introduction: "Why Bees",
		MainBody:     "City Hives",
		Conclusion:   "Final Buzz",
	}
	req.Subheadings = []string{"Rooftops", "Balconies"}

	intro := prompt.Compose(prompt.StageIntroduction, 0, req)
	assert.Contains(t, intro, "Why Bees")
	assert.NotContains(t, intro, "City Hives")
	assert.NotContains(t, intro, "Final Buzz")

	body1 := prompt.Compose(prompt.StageBody, 1, req)
	assert.Contains(t, body1, "City Hives")
	assert.Contains(t, body1, "Rooftops; Balconies")
	assert.NotContains(t, body1, "Why Bees")

	// Вторая и последующие BODY-итерации не несут заголовков/подзаголовков
	body2 := prompt.Compose(prompt.StageBody, 2, req)
	assert.NotContains(t, body2, "City Hives")
	assert.NotContains(t, body2, "Rooftops")

	concl := prompt.Compose(prompt.StageConclusion, 0, req)
	assert.Contains(t, concl, "Final Buzz")
	assert.NotContains(t, concl, "City Hives")
}

func TestCompose_BodyForbidsRepetition(t *testing.T) {
	instr := prompt.Compose(prompt.StageBody, 2, baseRequest())
	assert.Contains(t, instr, "Do not repeat")
	assert.Contains(t, instr, "part 2")
}

func TestCompose_ConclusionCarriesCallToAction(t *testing.T) {
	req := baseRequest()
	req.CallToAction = "Start your first hive today"
	instr := prompt.Compose(prompt.StageConclusion, 0, req)
	assert.Contains(t, instr, "Start your first hive today")
}

func TestCompose_ReferencesListMarkupAndLink(t *testing.T) {
	req := baseRequest()
	req.ReferenceLink = "https://example.org/bees"
	instr := prompt.Compose(prompt.StageReferences, 0, req)
	assert.Contains(t, instr, "<ul>")
	assert.Contains(t, instr, "<li>")
	assert.Contains(t, instr, "https://example.org/bees")
}

func TestCompose_ReferenceTextsEmbedded(t *testing.T) {
	req := baseRequest()
	req.ReferenceTexts = model.ReferenceTexts{
		InfoContent:    "Bees pollinate a third of crops.",
		SampleText:     "A breezy magazine voice.",
		SampleKeywords: "apiary, pollination",
	}
	instr := prompt.Compose(prompt.StageIntroduction, 0, req)
	assert.Contains(t, instr, "Bees pollinate a third of crops.")
	assert.Contains(t, instr, "A breezy magazine voice.")
	assert.Contains(t, instr, "apiary, pollination")
}

func TestSystemPrompt_ForbidsDocumentWrapper(t *testing.T) {
	sys := prompt.SystemPrompt(baseRequest())
	assert.Contains(t, sys, "<html>")
	assert.Contains(t, sys, "magazine")
	assert.True(t, strings.Contains(sys, "HTML markup only"))
}

func TestCompose_IsDeterministic(t *testing.T) {
	req := baseRequest()
	req.Keywords = []string{"a", "b"}
	assert.Equal(t,
		prompt.Compose(prompt.StageIntroduction, 0, req),
		prompt.Compose(prompt.StageIntroduction, 0, req))
}
