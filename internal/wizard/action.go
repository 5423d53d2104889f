// Package wizard drives the verification flow: rule pages, the quiz, scoring,
// and the pass/fail outcome.
package wizard

import (
	"strconv"
	"strings"
)

// Callback tokens emitted by wizard keyboards. Tokens are namespaced per stage
// so a delayed press from the previous stage is recognizably foreign.
const (
	tokenRulesNext     = "rules_next"
	tokenRulesBack     = "rules_back"
	tokenAnswerPrefix  = "q_"
	tokenQuestionsBack = "q_back"
	tokenRestartPrefix = "restart_verification:"
)

// ActionKind tags parsed callback actions.
type ActionKind int

const (
	// ActionUnknown is any token the wizard did not produce, or produced for
	// a state that no longer exists. Guarded, never fatal.
	ActionUnknown ActionKind = iota
	// ActionRulesNext advances to the next rule page.
	ActionRulesNext
	// ActionRulesBack returns to the previous rule page.
	ActionRulesBack
	// ActionAnswer submits an answer index for the current question.
	ActionAnswer
	// ActionQuestionsBack returns to the previous question.
	ActionQuestionsBack
	// ActionRestart re-enters the flow for the chat carried in the token.
	ActionRestart
)

// Action is a validated, tagged wizard input.
type Action struct {
	Kind          ActionKind
	AnswerIndex   int
	RestartChatID int64
}

// ParseAction classifies a raw callback token. Validation of the answer index
// against the current question happens in the questions stage, where the
// option count is known.
func ParseAction(token string) Action {
	switch token {
	case tokenRulesNext:
		return Action{Kind: ActionRulesNext}
	case tokenRulesBack:
		return Action{Kind: ActionRulesBack}
	case tokenQuestionsBack:
		return Action{Kind: ActionQuestionsBack}
	}

	if rest, ok := strings.CutPrefix(token, tokenRestartPrefix); ok {
		chatID, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return Action{Kind: ActionUnknown}
		}
		return Action{Kind: ActionRestart, RestartChatID: chatID}
	}

	if rest, ok := strings.CutPrefix(token, tokenAnswerPrefix); ok {
		index, err := strconv.Atoi(rest)
		if err != nil {
			return Action{Kind: ActionUnknown}
		}
		return Action{Kind: ActionAnswer, AnswerIndex: index}
	}

	return Action{Kind: ActionUnknown}
}

// RestartToken builds the callback token for the retry button.
func RestartToken(chatID int64) string {
	return tokenRestartPrefix + strconv.FormatInt(chatID, 10)
}
