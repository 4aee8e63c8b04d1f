package genai

import "strings"

// PromptPrefix frames every online question as coming to a Khmer-speaking
// study assistant.
const PromptPrefix = "ជាអ្នកជំនួយផ្នែកសិក្សាដែលនិយាយភាសាខ្មែរ។ "

// maxQuestionRunes caps the user text forwarded to a provider.
const maxQuestionRunes = 1000

// AnswerPrompt builds the prompt sent for question.
func AnswerPrompt(question string) string {
	question = strings.TrimSpace(question)
	if r := []rune(question); len(r) > maxQuestionRunes {
		question = string(r[:maxQuestionRunes])
	}
	return PromptPrefix + question
}

// Generation parameters shared by all providers.
const (
	answerTemperature = 0.4
	answerMaxTokens   = 800
)
