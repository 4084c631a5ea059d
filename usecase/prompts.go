package usecase

import (
	"fmt"
	"strings"
)

// rolePlayPrompt asks the model for its next in-character line
func rolePlayPrompt(cctx *ConversationContext) string {
	s := cctx.Scenario
	var b strings.Builder
	fmt.Fprintf(&b, "You are playing the role of %s and the user is %s. ", s.AIRole, s.UserRole)
	fmt.Fprintf(&b, "The situation is: %s. ", s.Situation)
	fmt.Fprintf(&b, "Stay fully in character as %s. ", s.AIRole)
	b.WriteString("Use natural, simple English that new and intermediate learners can easily understand. ")
	b.WriteString("Keep your response short and true to the role you are in (1 to 4 sentences). ")
	b.WriteString("Avoid special characters like brackets or symbols. ")
	b.WriteString("Do not refer to the user with any placeholder like a name in brackets. Do not include asterisks in your response. ")
	b.WriteString("Ask an open-ended question that fits the situation and encourages the user to speak more.")
	b.WriteString("\nHere is the conversation so far:\n")
	b.WriteString(cctx.Transcript(SenderLabel))
	fmt.Fprintf(&b, "\nNow respond as %s.", s.AIRole)
	return b.String()
}

// refinementPrompt asks the model to turn raw scenario input into a
// coherent role-play and open it
func refinementPrompt(userRole, aiRole, situation string) string {
	return fmt.Sprintf(`You are an AI assistant designed to engage in role-playing scenarios to help new and intermediate English learners practice natural, real-life conversation. You will be provided with a user role, an AI role, and a situation. These inputs may be incomplete, vague, or inconsistent. Your task is to:

Analyze the given user role, AI role, and situation.
Refine them into a coherent and logical scenario. Adjust roles or situations that do not make sense together and make assumptions where necessary to create a plausible context.
Use common, everyday words suitable for new and intermediate learners.
User role and AI role: 1-2 words.
Once you have a refined scenario, write the first response of the AI in that scenario.

Return your output as a JSON object in the following format:
{
  "refined_user_role": "[your refined user role]",
  "refined_ai_role": "[your refined AI role]",
  "refined_situation": "[your refined situation]",
  "response": "[your first response as refined_ai_role to the user]",
  "ai_gender": "[female or male, based on refined_ai_role and refined_situation]"
}

Here are the inputs:
User role: %s
AI role: %s
Situation: %s
`, userRole, aiRole, situation)
}

// feedbackPrompt asks for a single critique of the current utterance with
// explanations in the learner's native language
func feedbackPrompt(transcription string, cctx *ConversationContext, nativeLanguage string) string {
	s := cctx.Scenario
	previous := cctx.Transcript(DisplayLabel)
	if previous == "" {
		previous = "No previous exchanges"
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	fmt.Fprintf(&b, "- User role: %s\n", s.UserRole)
	fmt.Fprintf(&b, "- AI role: %s\n", s.AIRole)
	fmt.Fprintf(&b, "- Situation: %s\n\n", s.Situation)
	fmt.Fprintf(&b, "Previous exchanges:\n\"\"\"\n%s\n\"\"\"\n\n", previous)
	fmt.Fprintf(&b, "Current student's speech: %q\n\n", transcription)
	b.WriteString("You are an expert English teacher providing feedback on a student's speech. ")
	b.WriteString("This feedback is shown when the user clicks the feedback button, so do not greet the user or add anything else.\n")
	b.WriteString("Note: the speech was transcribed from audio and may lack punctuation. Do not comment on this.\n")
	fmt.Fprintf(&b, "Write the feedback as a single string, as a native English speaker who explains in %s:\n", nativeLanguage)
	b.WriteString("- Analyze the answer and point out grammar and vocabulary mistakes.\n")
	b.WriteString("- Suggest better words or phrases to sound more natural.\n")
	b.WriteString("- Give 2-3 improved versions of the sentence that stay close to the original and fit the learner's level.\n")
	b.WriteString("- Analyze the grammatical structure of your suggested sentence (subject, verb, complement, clauses) and compare it with the original.\n")
	b.WriteString("- If the answer is very short, unclear or off-topic, give a simpler model answer without going far beyond the learner's level.\n\n")
	b.WriteString("Return only the feedback string.")
	return b.String()
}
