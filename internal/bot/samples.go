package bot

import (
	"context"
	"slices"
	"strings"

	"github.com/go-telegram/bot/models"
)

type sample struct {
	Name  string
	Title string
	Text  string
}

var samples = []sample{
	{
		Name:  "technology",
		Title: "Technology article",
		Text: "Artificial intelligence has moved from research labs into everyday products. " +
			"Recommendation engines decide which videos and songs people see next, and language models " +
			"answer support tickets and draft emails. Self-driving prototypes share city streets with " +
			"buses and cyclists. Progress in natural language processing lets assistants follow complex " +
			"questions with surprising accuracy. The same systems raise hard questions about privacy, " +
			"about jobs that may disappear and about who is accountable when an automated decision goes " +
			"wrong. Regulators in several regions are drafting rules for high risk uses, while companies " +
			"publish their own principles. Balancing innovation with responsibility will decide whether " +
			"the technology benefits society as a whole.",
	},
	{
		Name:  "business",
		Title: "Business report",
		Text: "Third quarter results were strong across every business unit. Revenue reached 2.8 billion " +
			"dollars, up 24 percent year over year. Cloud services drove most of the growth, contributing " +
			"42 percent of revenue and growing 35 percent. International markets accounted for 38 percent " +
			"of revenue and grew 28 percent. Operating margin widened to 22.1 percent thanks to cost " +
			"optimization and economies of scale. Enterprise customer count rose 15 percent and retention " +
			"stayed at 94 percent. Investments in machine learning and security products position the " +
			"company for continued leadership, although management expects hiring costs to rise next year.",
	},
	{
		Name:  "science",
		Title: "Scientific study",
		Text: "A study in cognitive neuroscience followed 200 adults for 18 months while they learned to " +
			"play a musical instrument. Brain scans taken every six months showed new connections forming " +
			"in regions that handle motor control, hearing and memory, while existing pathways grew " +
			"stronger. The changes appeared in every age group, including participants over seventy, which " +
			"challenges the idea that the brain only adapts during narrow critical periods. The authors " +
			"argue the results matter for stroke rehabilitation and for education, and they plan a follow " +
			"up study on whether the gains persist after practice stops.",
	},
}

func findSample(name string) (sample, bool) {
	i := slices.IndexFunc(samples, func(s sample) bool {
		return s.Name == strings.ToLower(strings.TrimSpace(name))
	})
	if i < 0 {
		return sample{}, false
	}

	return samples[i], true
}

func sampleNames() []string {
	names := make([]string, 0, len(samples))
	for _, s := range samples {
		names = append(names, s.Name)
	}

	return names
}

func getSampleKeyboard() *models.InlineKeyboardMarkup {
	buttons := make([]models.InlineKeyboardButton, 0, len(samples))

	for _, s := range samples {
		buttons = append(buttons, button(s.Title, callbackSamplePrefix+s.Name))
	}

	return inlineKeyboard(append(chunkButtons(buttons, keyboardRowSize), returnRow())...)
}

// handleSampleCommand summarizes a built-in sample text with the current
// settings, or lists the samples when name is empty.
func (b *Bot) handleSampleCommand(ctx context.Context, chatID int64, name string) error {
	if name == "" {
		return b.sendMessageWithKeyboard(ctx, chatID, "📄 *Choose a sample text:*", getSampleKeyboard())
	}

	s, ok := findSample(name)
	if !ok {
		return b.sendMessageWithKeyboard(ctx, chatID, unknownValueText("sample", name, sampleNames()), b.returnKeyboard)
	}

	return b.summarizeAndReply(ctx, chatID, s.Text, s.Title)
}
