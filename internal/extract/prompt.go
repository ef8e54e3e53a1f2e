package extract

import (
	"fmt"
	"strings"

	"github.com/kalambet/kaiwa/internal/chat"
)

const systemPromptBase = `あなたはユーザープロファイル分析の専門家です。
会話履歴を分析し、ユーザーの属性を抽出してください。

抽出する属性の例：
- 技術レベル（初級/中級/上級）
- 主要言語（プログラミング言語）
- 関心領域（フロントエンド開発、バックエンドなど）
- コミュニケーションスタイル（簡潔・技術的、丁寧・詳細など）
- 好みのフレームワーク
- 回答の詳細度（簡潔を好む、詳細な説明を好むなど）

上記以外にも会話から読み取れる属性があれば自由に追加してください。
confidence は会話内容からどの程度確信が持てるかを 0.0〜1.0 で表します。
会話に根拠が薄い属性は含めないでください（confidence 0.3 未満は除外）。`

// BuildSystemPrompt returns the analysis system prompt, folding in the
// current profile so the model updates rather than restarts from scratch.
func BuildSystemPrompt(current []chat.ProfileAttribute) string {
	var sb strings.Builder
	sb.WriteString(systemPromptBase)

	if len(current) > 0 {
		sb.WriteString("\n\n現在のプロファイル（参考、必要に応じて更新してください）：\n")
		for _, attr := range current {
			fmt.Fprintf(&sb, "- %s: %s (confidence: %g)\n", attr.Key, attr.Value, attr.Confidence)
		}
		sb.WriteString("\n既存の属性を更新するか、新しい属性を追加してください。会話内容と矛盾する場合は更新してください。")
	}

	return sb.String()
}

// BuildUserPrompt flattens the transcript into the analysis request.
func BuildUserPrompt(messages []chat.ChatMessage) string {
	var sb strings.Builder
	sb.WriteString("以下の会話履歴からユーザーのプロファイルを抽出してください：\n\n")
	for i, m := range messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		speaker := "アシスタント"
		if m.Role == chat.RoleUser {
			speaker = "ユーザー"
		}
		fmt.Fprintf(&sb, "%s: %s", speaker, m.Content)
	}
	return sb.String()
}
