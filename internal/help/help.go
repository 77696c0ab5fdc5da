// Package help renders the short usage notes shown beside each viewer.
package help

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"
)

//go:embed notes/*.md
var notesFS embed.FS

var (
	notePolicy  = newNotePolicy()
	labelPolicy = bluemonday.StrictPolicy()
	markdown    = goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Typographer))
)

// Note is a rendered viewer note.
type Note struct {
	Key     string
	Title   string
	Summary string
	HTML    template.HTML
}

type frontMatter struct {
	Title   string `yaml:"title"`
	Summary string `yaml:"summary"`
}

// Notes holds every note keyed by widget name.
type Notes struct {
	byKey map[string]Note
}

// Load renders the embedded notes.
func Load() (*Notes, error) {
	return LoadFS(notesFS, "notes")
}

// LoadFS renders every *.md file under dir in fsys. The file stem is the note key.
func LoadFS(fsys fs.FS, dir string) (*Notes, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("help: read notes: %w", err)
	}
	notes := &Notes{byKey: make(map[string]Note, len(entries))}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".md" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("help: read %s: %w", entry.Name(), err)
		}
		key := strings.TrimSuffix(entry.Name(), ".md")
		note, err := render(key, data)
		if err != nil {
			return nil, err
		}
		notes.byKey[key] = note
	}
	return notes, nil
}

// Lookup returns the note for key.
func (n *Notes) Lookup(key string) (Note, bool) {
	if n == nil {
		return Note{}, false
	}
	note, ok := n.byKey[strings.ToLower(strings.TrimSpace(key))]
	return note, ok
}

// Keys lists the loaded note keys.
func (n *Notes) Keys() []string {
	if n == nil {
		return nil
	}
	keys := make([]string, 0, len(n.byKey))
	for key := range n.byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// StripTags reduces an untrusted label to plain text.
func StripTags(label string) string {
	return strings.Join(strings.Fields(html.UnescapeString(labelPolicy.Sanitize(label))), " ")
}

func render(key string, data []byte) (Note, error) {
	fm, body := splitFrontMatter(string(data))
	var front frontMatter
	if strings.TrimSpace(fm) != "" {
		if err := yaml.Unmarshal([]byte(fm), &front); err != nil {
			return Note{}, fmt.Errorf("help: parse front matter %s: %w", key, err)
		}
	}

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return Note{}, fmt.Errorf("help: render %s: %w", key, err)
	}

	return Note{
		Key:     key,
		Title:   strings.TrimSpace(front.Title),
		Summary: strings.TrimSpace(front.Summary),
		HTML:    template.HTML(strings.TrimSpace(string(notePolicy.SanitizeBytes(buf.Bytes())))),
	}, nil
}

func splitFrontMatter(input string) (string, string) {
	input = strings.TrimLeft(input, "\ufeff")
	lines := strings.Split(input, "\n")
	if strings.TrimSpace(lines[0]) != "---" {
		return "", input
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[1:i], "\n"), strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\n\r")
		}
	}
	return "", input
}

func newNotePolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("p", "code", "span")
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return policy
}
