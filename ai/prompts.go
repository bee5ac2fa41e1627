package ai

import (
	"fmt"
	"strings"
)

// DefaultLanguage is the answer language when none is configured.
const DefaultLanguage = "English"

const tutorSystemPrompt = `You are an AI tutor helping a student study %s.
Your tone is professional but friendly. Be helpful and patient, and keep explanations clear and concise.
If you do not know the answer, say so instead of guessing.
Use examples where they help understanding.
Format mathematical expressions in LaTeX, using $...$ for inline math and $$...$$ for display math.
Always answer in %s.`

// SubjectContext renders a topic as it appears in tutoring prompts,
// for example "'Linear Algebra' (lecture)".
func SubjectContext(topicName, kind string) string {
	subject := fmt.Sprintf("'%s'", strings.TrimSpace(topicName))
	if kind = strings.TrimSpace(kind); kind != "" {
		subject += " (" + kind + ")"
	}
	return subject
}

// TutorSystemPrompt builds the system prompt for a topic.
func TutorSystemPrompt(topicName, kind, language string) string {
	if strings.TrimSpace(language) == "" {
		language = DefaultLanguage
	}
	return fmt.Sprintf(tutorSystemPrompt, SubjectContext(topicName, kind), language)
}

// StudentQuestion wraps a raw question the way the tutor expects it.
func StudentQuestion(topicName, kind, question string) string {
	return fmt.Sprintf("As a student learning %s, I have the following question: %s",
		SubjectContext(topicName, kind), strings.TrimSpace(question))
}
