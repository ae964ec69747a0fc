package prompts

import (
	"fmt"
	"strings"

	"github.com/arcanelabs/tarot-backend/internal/tarot"
)

const (
	imageryChunksPerCard = 3
	imageryChunkMaxChars = 300
)

// ImageryFallback is emitted verbatim when no visual-description chunks were
// retrieved; the model is not called in that case.
const ImageryFallback = "牌面在光影之间静静铺开,每一张牌都在等待被看见的时刻。"

// Imagery builds the streamed imagery prompt from the dealt cards and the
// visual chunks harvested per card. Output language is Chinese for the
// current deployment.
func Imagery(cards []tarot.DealtCard, questionDomain string, visualChunks map[string][]string) (system, prompt string) {
	system = "你是一位塔罗意象诗人。你用简体中文描绘牌阵的画面,语言优美而凝练,不做占卜结论。"

	var b strings.Builder
	fmt.Fprintf(&b, "问题领域:%s\n\n牌阵中的牌:\n", questionDomain)
	for _, dc := range cards {
		if dc.Card == nil {
			continue
		}
		orientation := "正位"
		if dc.IsReversed {
			orientation = "逆位"
		}
		fmt.Fprintf(&b, "- %s(%s),位置:%s\n", dc.Card.DisplayName(), orientation, dc.Position)

		refs := visualChunks[dc.Card.ID.String()]
		if len(refs) > imageryChunksPerCard {
			refs = refs[:imageryChunksPerCard]
		}
		for _, ref := range refs {
			fmt.Fprintf(&b, "  画面参考:%s\n", Truncate(ref, imageryChunkMaxChars))
		}
	}
	b.WriteString("\n请用一段连贯的文字描绘这个牌阵呈现的整体画面与氛围,不超过两百字。")
	return system, b.String()
}

// Truncate cuts s to at most max runes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
