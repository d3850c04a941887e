package kb

import (
	"bufio"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

// Article is one knowledge-base document.
type Article struct {
	ID    string   `yaml:"id"`
	Title string   `yaml:"title"`
	Body  string   `yaml:"body"`
	Tags  []string `yaml:"tags"`
}

// LoadFS reads every .md, .yaml and .yml file under fsys. The article ID is
// the slash path without extension. Markdown articles take their title from
// the first "# " heading; YAML articles carry title, body and tags fields.
func LoadFS(fsys fs.FS) ([]Article, error) {
	var out []Article
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		ext := path.Ext(p)
		id := strings.TrimSuffix(p, ext)
		var a *Article
		switch ext {
		case ".md":
			data, err := fs.ReadFile(fsys, p)
			if err != nil {
				return err
			}
			a = parseMarkdown(id, string(data))
		case ".yaml", ".yml":
			data, err := fs.ReadFile(fsys, p)
			if err != nil {
				return err
			}
			a = &Article{}
			if err := yaml.Unmarshal(data, a); err != nil {
				return fmt.Errorf("kb: parse %s: %w", p, err)
			}
			if a.ID == "" {
				a.ID = id
			}
			if a.Title == "" {
				a.Title = path.Base(id)
			}
		default:
			return nil
		}
		if strings.TrimSpace(a.Body) == "" {
			return nil
		}
		out = append(out, *a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b Article) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func parseMarkdown(id, text string) *Article {
	a := &Article{ID: id, Title: path.Base(id)}
	var body strings.Builder
	sc := bufio.NewScanner(strings.NewReader(text))
	titled := false
	for sc.Scan() {
		line := sc.Text()
		if !titled && strings.HasPrefix(line, "# ") {
			a.Title = strings.TrimSpace(line[2:])
			titled = true
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	a.Body = strings.TrimSpace(body.String())
	return a
}
