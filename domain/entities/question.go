package entities

// Question is a single assessment question. The sequence is fixed at process
// start and insertion order is display order.
type Question struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	HelpText string `json:"help_text,omitempty"`
	Category string `json:"category"`
}

const alexIntroduction = `Hi! I'm Alex, your AI business strategist. I'm here to help you discover how AI can transform your business operations and save you time.

Over the next few minutes, I'll ask you about your business, understand your challenges, and identify specific AI solutions that could help you grow. At the end, you'll receive a personalized report with practical recommendations and ROI estimates.

Let's start with getting to know your business. Tell me, what do you do and who are your customers?`

var assessmentQuestions = []Question{
	{
		ID:       "business-context",
		Text:     alexIntroduction,
		HelpText: "This helps me understand your industry and core business model",
		Category: "business-overview",
	},
	{
		ID:       "key-challenges",
		Text:     "What are the biggest challenges or pain points your business is facing right now?",
		HelpText: "Think about operational, financial, or strategic challenges",
		Category: "challenges",
	},
	{
		ID:       "growth-goals",
		Text:     "What are your main goals for business growth in the next 6-12 months?",
		HelpText: "Consider revenue targets, market expansion, or operational improvements",
		Category: "goals",
	},
	{
		ID:       "competitive-landscape",
		Text:     "Who are your main competitors and what sets your business apart from them?",
		HelpText: "This helps identify your unique value proposition",
		Category: "competition",
	},
	{
		ID:       "resource-constraints",
		Text:     "What resources (time, budget, team) do you have available to tackle these challenges?",
		HelpText: "Understanding constraints helps prioritize recommendations",
		Category: "resources",
	},
}

// Questions returns the fixed assessment question sequence in display order.
func Questions() []Question {
	out := make([]Question, len(assessmentQuestions))
	copy(out, assessmentQuestions)
	return out
}

// QuestionCount returns the number of questions in the fixed sequence.
func QuestionCount() int {
	return len(assessmentQuestions)
}

// QuestionByID looks up a question in the fixed sequence. The second return
// value reports whether the ID is known.
func QuestionByID(id string) (Question, bool) {
	for _, q := range assessmentQuestions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}
