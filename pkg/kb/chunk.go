package kb

import (
	"strconv"
	"strings"
)

// DefaultChunkSize is the soft passage length limit in bytes.
const DefaultChunkSize = 800

// Passage is a searchable slice of an article.
type Passage struct {
	ID        string   `json:"id"`
	ArticleID string   `json:"article_id"`
	Title     string   `json:"title"`
	Text      string   `json:"text"`
	Tags      []string `json:"tags,omitempty"`
}

// Chunk splits an article into passages on blank lines, packing paragraphs
// until adding the next would exceed size. A single paragraph longer than
// size becomes its own passage.
func Chunk(a Article, size int) []Passage {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var (
		out []Passage
		cur strings.Builder
	)
	flush := func() {
		text := strings.TrimSpace(cur.String())
		cur.Reset()
		if text == "" {
			return
		}
		out = append(out, Passage{
			ID:        a.ID + "#" + strconv.Itoa(len(out)),
			ArticleID: a.ID,
			Title:     a.Title,
			Text:      text,
			Tags:      a.Tags,
		})
	}
	for _, para := range strings.Split(strings.ReplaceAll(a.Body, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+2+len(para) > size {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()
	return out
}
