package wizard

import (
	"fmt"
	"strings"

	"github.com/kvaty/gatekeeper-bot/internal/content"
	"github.com/kvaty/gatekeeper-bot/internal/render"
)

const (
	defaultRuleButton = "Понятно"
	backButton        = "⬅️ Назад"
	retryButton       = "Попробовать снова"
)

func ruleView(step content.Step, index int) render.View {
	label := step.ButtonText
	if label == "" {
		label = defaultRuleButton
	}

	actions := []render.Action{{Label: label, Token: tokenRulesNext}}
	if index > 0 {
		actions = append(actions, render.Action{Label: backButton, Token: tokenRulesBack})
	}

	return render.View{
		Text:    content.EscapeHTML(step.Text),
		Image:   step.Image,
		Actions: actions,
	}
}

// questionView duplicates the options into a blockquote in the body because
// long option texts get truncated on buttons.
func questionView(step content.Step, index, total int) render.View {
	var text strings.Builder
	fmt.Fprintf(&text, "<b>Вопрос %d/%d</b>\n\n", index+1, total)
	text.WriteString(content.EscapeHTML(step.Text))

	if len(step.Options) > 0 {
		text.WriteString("\n\n<blockquote>")
		for i, option := range step.Options {
			if i > 0 {
				text.WriteString("\n")
			}
			fmt.Fprintf(&text, "%d. %s", i+1, content.EscapeHTML(option))
		}
		text.WriteString("</blockquote>")
	}

	actions := make([]render.Action, 0, len(step.Options)+1)
	for i, option := range step.Options {
		actions = append(actions, render.Action{
			Label: fmt.Sprintf("%d. %s", i+1, option),
			Token: fmt.Sprintf("%s%d", tokenAnswerPrefix, i),
		})
	}

	if index > 0 {
		actions = append(actions, render.Action{Label: backButton, Token: tokenQuestionsBack})
	}

	return render.View{
		Text:    text.String(),
		Image:   step.Image,
		Actions: actions,
	}
}

func serviceView(step content.Step, text string, actions ...render.Action) render.View {
	if text == "" {
		text = step.Text
	}

	return render.View{
		Text:    text,
		Image:   step.Image,
		Actions: actions,
	}
}
