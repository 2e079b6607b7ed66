package pipeline

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize 是单个切块的目标字符数。
const DefaultChunkSize = 1000

var paragraphSep = regexp.MustCompile(`\n\n+`)

// ChunkParagraphs 按段落（连续两个以上换行）切分文本，贪心地把相邻段落拼到同一个切块里。
// 当前切块非空且加上下一段后超过 limit 个字符时另起一块；段落本身超长时不再细分。
// 返回的切块去掉首尾空白，空块被丢弃。
func ChunkParagraphs(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkSize
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var chunks []string
	flush := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			chunks = append(chunks, s)
		}
	}

	current := ""
	currentLen := 0
	for _, p := range paragraphSep.Split(text, -1) {
		pLen := utf8.RuneCountInString(p)
		if current != "" && currentLen+pLen > limit {
			flush(current)
			current, currentLen = p, pLen
			continue
		}
		if current != "" {
			current += "\n\n"
			currentLen += 2
		}
		current += p
		currentLen += pLen
	}
	flush(current)
	return chunks
}
