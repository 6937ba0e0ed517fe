package loader

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/pkg/logger"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

type FileConfig struct {
	DocsPath string
}

// FileLoader reads markdown and HTML files below a docs directory.
type FileLoader struct {
	config FileConfig
	md     goldmark.Markdown
}

func NewFileLoader(config FileConfig) *FileLoader {
	return &FileLoader{
		config: config,
		md:     goldmark.New(),
	}
}

func isMarkdown(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".md" || ext == ".markdown"
}

func isHTML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".html" || ext == ".htm"
}

// LoadAll walks the docs directory in lexical order. Files that cannot be read
// or parsed are logged and skipped. A missing docs directory is an error.
func (l *FileLoader) LoadAll(ctx context.Context) ([]models.Document, error) {
	info, err := os.Stat(l.config.DocsPath)
	if err != nil {
		return nil, models.ConfigError("docs path %s: %v", l.config.DocsPath, err)
	}
	if !info.IsDir() {
		return nil, models.ConfigError("docs path %s is not a directory", l.config.DocsPath)
	}

	var paths []string
	err = filepath.WalkDir(l.config.DocsPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("cannot read %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if isMarkdown(d.Name()) || isHTML(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var documents []models.Document
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := l.LoadFile(path)
		if err != nil {
			logger.Warn("failed to load %s: %v", path, err)
			continue
		}
		documents = append(documents, doc)
	}

	logger.Info("loaded %d documents from %s", len(documents), l.config.DocsPath)
	return documents, nil
}

// LoadFile converts one file to plain text and attaches its metadata.
func (l *FileLoader) LoadFile(path string) (models.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.Document{}, err
	}

	html := raw
	if isMarkdown(path) {
		var buf bytes.Buffer
		if err := l.md.Convert(raw, &buf); err != nil {
			return models.Document{}, fmt.Errorf("rendering markdown: %w", err)
		}
		html = buf.Bytes()
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return models.Document{}, fmt.Errorf("parsing html: %w", err)
	}
	doc.Find("script, style").Remove()

	rel, err := filepath.Rel(l.config.DocsPath, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)

	category := filepath.ToSlash(filepath.Dir(rel))
	if category == "." {
		category = "root"
	}

	return models.Document{
		Content: normalizeText(doc.Text()),
		Metadata: map[string]any{
			models.MetaSource:   rel,
			models.MetaFilePath: path,
			models.MetaFileName: filepath.Base(path),
			models.MetaCategory: category,
			models.MetaTitle:    titleOf(doc, path),
		},
	}, nil
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(blankRuns.ReplaceAllString(text, "\n\n"))
}

// titleOf prefers <title>, then the first heading, then the file name.
func titleOf(doc *goquery.Document, path string) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
