package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
)

func buildDecompositionPrompt(query string, categories []domain.Category) string {
	var table strings.Builder
	for _, category := range categories {
		table.WriteString(fmt.Sprintf("- %s: %s\n", NormalizeCategory(category.Name), strings.TrimSpace(category.Description)))
	}

	return fmt.Sprintf(`You split a user query into simple sub-questions.
Each sub-question must be answerable from exactly one knowledge source below.

Knowledge sources:
%s
Return only a comma-separated list where every item has the exact shape
[CATEGORY]Question
Use only the category names listed above. No numbering, no explanations.
Write a comma inside a question as \\, so it does not split the item.
Example: [CATEGORY_A]First question?,[CATEGORY_B]Second question?

Query:
%s
`, table.String(), strings.TrimSpace(query))
}

func buildSubQuestionPrompt(question, context string) string {
	return fmt.Sprintf(`Answer the question only from the context below.
If the context is insufficient, say it directly.

Question:
%s

Context:
%s
`, question, context)
}

func buildMergePrompt(query string, answers []string) string {
	return fmt.Sprintf(`You are given a user query and answers to its sub-questions.
Validate the answers against each other, drop contradictions or unsupported
claims, and combine them into one coherent answer to the query.
If no answers are given, say that the query could not be answered.

Query:
%s

Answers:
%s
`, strings.TrimSpace(query), strings.Join(answers, "\n"))
}

func buildHyDEPrompt(query string) string {
	return fmt.Sprintf(`Write a short factual passage that answers the question below.
It is used only to search a document store, so prefer concrete terms.

Question:
%s
`, query)
}

func buildStepBackPrompt(query string) string {
	return fmt.Sprintf(`Rewrite the question below as a more generic step-back question
about the underlying concept or background. Return only the question.

Question:
%s
`, query)
}
