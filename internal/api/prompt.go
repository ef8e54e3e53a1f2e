package api

import (
	"fmt"
	"math"
	"strings"

	"github.com/kalambet/kaiwa/internal/chat"
)

const assistantPromptBase = "あなたは親切で知識豊富なAIアシスタントです。ユーザーの質問に丁寧に回答してください。"

// buildSystemPrompt composes the assistant system prompt, appending the
// user profile so replies adapt to what has been learned so far.
func buildSystemPrompt(profile []chat.ProfileAttribute) string {
	var sb strings.Builder
	sb.WriteString(assistantPromptBase)

	if len(profile) > 0 {
		sb.WriteString("\n\n以下はユーザーのプロファイル情報です。回答のスタイルや内容をこのプロファイルに合わせて調整してください：\n")
		for _, attr := range profile {
			fmt.Fprintf(&sb, "- %s: %s (確信度: %d%%)\n", attr.Key, attr.Value, int(math.Round(attr.Confidence*100)))
		}
	}

	return sb.String()
}
