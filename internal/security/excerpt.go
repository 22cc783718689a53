package security

import (
	"strings"

	"golang.org/x/net/html"
)

// DefaultExcerptLength は旅行記一覧に表示する抜粋の最大文字数。
const DefaultExcerptLength = 160

// Excerpt はHTMLからテキストのみを取り出し、空白を詰めてmaxRunes文字以内に切り詰める。
// 切り詰めた場合は末尾に"…"を付ける。script/style要素の中身は含めない。
// maxRunesが0以下の場合は切り詰めない。
func Excerpt(rawHTML string, maxRunes int) string {
	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))

	var sb strings.Builder
	skipDepth := 0

loop:
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			break loop

		case html.StartTagToken:
			if isRawTextTag(tokenizer) {
				skipDepth++
			}

		case html.EndTagToken:
			if isRawTextTag(tokenizer) && skipDepth > 0 {
				skipDepth--
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			sb.Write(tokenizer.Text())
			sb.WriteByte(' ')
		}
	}

	text := strings.Join(strings.Fields(sb.String()), " ")

	runes := []rune(text)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return text
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}

func isRawTextTag(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style":
		return true
	default:
		return false
	}
}
