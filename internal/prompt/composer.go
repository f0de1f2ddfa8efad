package prompt

import (
	"fmt"
	"strings"

	"post-server/internal/model"
)

// Stage - этап пайплайна генерации.
type Stage string

const (
	StageIntroduction Stage = "introduction"
	StageBody         Stage = "body"
	StageConclusion   Stage = "conclusion"
	StageReferences   Stage = "references"
)

// SystemPrompt возвращает системную инструкцию, общую для всех этапов прогона:
// роль модели и жесткие правила разметки. Отправляется первым сообщением
// в каждом вызове AI.
func SystemPrompt(req model.GenerationRequest) string {
	var sb strings.Builder
	sb.WriteString("You are a professional long-form content writer. You write one article across several turns, one section per turn.\n")
	sb.WriteString("Strict output rules:\n")
	sb.WriteString("- Output HTML markup only. Never wrap the output in <html>, <head> or <body> tags.\n")
	sb.WriteString("- Use inline style attributes for styling.\n")
	sb.WriteString("- Heading text must be bold: wrap heading text in <b> inside the heading tag.\n")
	sb.WriteString("- Body text goes in <p> tags with style=\"font-size:16px\".\n")
	sb.WriteString("- Never output explanations, meta commentary or markdown.\n")
	fmt.Fprintf(&sb, "Layout structure of the article: %s.\n", req.LayoutStructure)
	return sb.String()
}

// Compose детерминированно собирает текст инструкции для этапа stage.
// iteration имеет смысл только для StageBody (нумерация с 1).
// Отсутствующие опциональные поля запроса не оставляют плейсхолдеров:
// соответствующая фраза просто опускается.
func Compose(stage Stage, iteration int, req model.GenerationRequest) string {
	switch stage {
	case StageIntroduction:
		return composeIntroduction(req)
	case StageBody:
		return composeBody(iteration, req)
	case StageConclusion:
		return composeConclusion(req)
	case StageReferences:
		return composeReferences(req)
	default:
		return ""
	}
}

func composeIntroduction(req model.GenerationRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write the introduction section of an article on the following topic: %s.\n", req.Description)
	if req.Headings.Introduction != "" {
		fmt.Fprintf(&sb, "Use exactly this heading for the introduction: %q.\n", req.Headings.Introduction)
	}
	writeStyleClauses(&sb, req)
	writeReferenceTextClauses(&sb, req)
	if len(req.Keywords) > 0 {
		fmt.Fprintf(&sb, "Naturally work in these keywords across the article, starting now: %s.\n", strings.Join(req.Keywords, ", "))
	}
	sb.WriteString("Write only the introduction. Do not write the main body or the conclusion yet.\n")
	return sb.String()
}

func composeBody(iteration int, req model.GenerationRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Continue the article with main body part %d, covering the next two sections of the topic.\n", iteration)
	if iteration == 1 {
		if req.Headings.MainBody != "" {
			fmt.Fprintf(&sb, "Open the main body with this heading: %q.\n", req.Headings.MainBody)
		}
		if len(req.Subheadings) > 0 {
			fmt.Fprintf(&sb, "Use these subheadings for the sections, in order: %s.\n", strings.Join(req.Subheadings, "; "))
		}
	}
	sb.WriteString("Do not repeat anything you have already written. Continue in the same voice and style, relying on the conversation so far for context.\n")
	return sb.String()
}

func composeConclusion(req model.GenerationRequest) string {
	var sb strings.Builder
	sb.WriteString("Continue the article with its conclusion.\n")
	if req.Headings.Conclusion != "" {
		fmt.Fprintf(&sb, "Use exactly this heading for the conclusion: %q.\n", req.Headings.Conclusion)
	}
	if req.CallToAction != "" {
		fmt.Fprintf(&sb, "End the conclusion with this call to action: %q.\n", req.CallToAction)
	}
	sb.WriteString("Do not repeat earlier content. Do not add a references list yet.\n")
	return sb.String()
}

func composeReferences(req model.GenerationRequest) string {
	var sb strings.Builder
	sb.WriteString("Append a references section to the article: a list of link-like sources relevant to the topic.\n")
	sb.WriteString("Format it as <ul> with one <li> per source, source title in <i> tags.\n")
	if req.ReferenceLink != "" {
		fmt.Fprintf(&sb, "Include this link as the first reference: %s.\n", req.ReferenceLink)
	}
	sb.WriteString("Do not repeat any article content, output only the list.\n")
	return sb.String()
}

// writeStyleClauses добавляет фразы про тон и стиль; пустые поля пропускаются.
func writeStyleClauses(sb *strings.Builder, req model.GenerationRequest) {
	if req.ToneOfVoice != "" {
		fmt.Fprintf(sb, "Tone of voice: %s.\n", req.ToneOfVoice)
	}
	if req.LanguageComplexity != "" {
		fmt.Fprintf(sb, "Language complexity: %s.\n", req.LanguageComplexity)
	}
	if req.VocabularyLevel != "" {
		fmt.Fprintf(sb, "Vocabulary level: %s.\n", req.VocabularyLevel)
	}
	if req.FormalityLevel != "" {
		fmt.Fprintf(sb, "Formality level: %s.\n", req.FormalityLevel)
	}
	if req.VoiceTempo != "" {
		fmt.Fprintf(sb, "Voice tempo: %s.\n", req.VoiceTempo)
	}
}

// writeReferenceTextClauses добавляет вспомогательные справочные тексты,
// если они были переданы out-of-band для этого прогона.
func writeReferenceTextClauses(sb *strings.Builder, req model.GenerationRequest) {
	if req.ReferenceTexts.InfoContent != "" {
		fmt.Fprintf(sb, "Use the following background information:\n%s\n", req.ReferenceTexts.InfoContent)
	}
	if req.ReferenceTexts.SampleText != "" {
		fmt.Fprintf(sb, "Imitate the writing style of this sample:\n%s\n", req.ReferenceTexts.SampleText)
	}
	if req.ReferenceTexts.SampleKeywords != "" {
		fmt.Fprintf(sb, "Take additional keyword inspiration from: %s.\n", req.ReferenceTexts.SampleKeywords)
	}
}
