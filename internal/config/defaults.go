package config

// GetDefaultPersonaTemplate returns the default template for persona generation.
// ContextBlock carries every previously generated persona so the model can
// steer away from them; the first call receives a seed sentence instead.
func GetDefaultPersonaTemplate() string {
	return `You are creating a synthetic user persona for a requirements elicitation study about: {{.DesignContext}}.

Create ONE detailed user persona. Include:
- **Name**: a plausible first name
- **Age**: a specific age
- **Gender**: Male, Female, or Non-binary
- **Background**: occupation, lifestyle, relevant expertise
- **Relationship to the product**: how and why they would use it
- **Constraints and quirks**: physical, financial, or situational factors that shape their usage

PREVIOUSLY GENERATED PERSONAS (your persona must be clearly DIFFERENT from every one of these in demographics, background, and usage context):
{{.ContextBlock}}

Write the persona as flowing descriptive text with the bolded field labels above. Do not repeat any previous persona's demographics or situation.`
}

// GetDefaultExperienceTemplate returns the default template for experience simulation
func GetDefaultExperienceTemplate() string {
	return `You are the following user:

{{.PersonaDescription}}

Simulate, in first person, a realistic experience of using this product: {{.Product}}.

Describe the experience step by step:
1. What you did first (unboxing, setup, first contact)
2. What you observed at each step
3. What went smoothly
4. What was frustrating, confusing, or physically difficult for someone like you
5. Any workarounds you invented

Stay strictly in character. Be concrete and specific - name actual actions, not generalities.`
}

// GetDefaultInterviewTemplate returns the default template for interview answers
func GetDefaultInterviewTemplate() string {
	return `You are the following user:

{{.PersonaDescription}}

You recently had this experience with the product "{{.Product}}":

{{.Experience}}

An interviewer asks you:

"{{.Question}}"

Answer in first person, in character, drawing only on the experience above. Be honest about frustrations and specific about details. Do not invent capabilities the product does not have.`
}

// GetDefaultExtractionTemplate returns the default template for latent need
// extraction. The model must answer with a JSON object holding a "needs"
// array; downstream parsing tolerates fenced or truncated output.
func GetDefaultExtractionTemplate() string {
	return `You are a requirements analyst. A user with this profile:

{{.PersonaDescription}}

was asked:

"{{.Question}}"

and answered:

"{{.Answer}}"

Extract every latent user need implied by this answer. A latent need is an underlying requirement the user may not state directly.

Return ONLY a valid JSON object with this exact structure (no markdown, no additional text):
{
  "needs": [
    {
      "need_statement": "<one-sentence statement of the need>",
      "category": "<one of: Functional, Usability, Safety, Comfort, Aesthetic, Emotional, Social>",
      "priority": "<High, Medium, or Low>",
      "supporting_evidence": "<short quote or paraphrase from the answer>",
      "design_implication": "<concrete design suggestion addressing the need>"
    }
  ]
}

If the answer implies no needs, return {"needs": []}.`
}

// GetDefaultInterviewQuestions returns the embedded interview question set,
// used when neither questions.file nor questions.inline is configured.
func GetDefaultInterviewQuestions() []string {
	return []string{
		"Walk me through the most frustrating moment of your experience. What exactly happened?",
		"Was there anything you expected the product to do that it could not?",
		"Did you invent any workarounds or use the product in an unintended way? Describe them.",
		"If you could change one thing about the product, what would it be and why?",
		"What almost made you stop using the product entirely?",
	}
}
