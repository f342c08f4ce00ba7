// Package prompt expands @file mentions in user input into attached file contents.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	. "github.com/roelfdiedericks/aiorch/internal/logging"
)

// DefaultMaxFileBytes caps a single attachment.
const DefaultMaxFileBytes = 256 * 1024

// AttachmentsHeader separates the message from inlined files.
const AttachmentsHeader = "--- Attached files ---"

// mentionPattern matches @path/to/file.ext
var mentionPattern = regexp.MustCompile(`@([\w./-]+\.\w+)`)

// Attachment is a file resolved from a mention.
type Attachment struct {
	Name    string // as written after '@'
	Path    string // resolved absolute path
	Content string
}

// Engine rewrites user input before it is sent to a model.
type Engine struct {
	Root         string // mentions resolve against this directory; "" = cwd
	MaxFileBytes int64  // 0 = DefaultMaxFileBytes
}

// New returns an engine rooted at root.
func New(root string) *Engine {
	return &Engine{Root: root}
}

// Mentions returns the distinct file names mentioned in input, in order.
func Mentions(input string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range mentionPattern.FindAllStringSubmatch(input, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Process replaces each resolvable mention of a text file with [File: name] and appends the
// file contents in fenced blocks after AttachmentsHeader. Unresolvable
// mentions are left as written. When no mention resolves the input is
// returned unchanged.
func (e *Engine) Process(input string) (string, []Attachment) {
	names := Mentions(input)
	if len(names) == 0 {
		return input, nil
	}

	var attached []Attachment
	for _, name := range names {
		a, err := e.load(name)
		if err != nil {
			L_debug("prompt: mention not attached", "file", name, "error", err)
			continue
		}
		attached = append(attached, a)
	}
	if len(attached) == 0 {
		return input, nil
	}

	resolved := make(map[string]bool, len(attached))
	for _, a := range attached {
		resolved[a.Name] = true
	}
	out := mentionPattern.ReplaceAllStringFunc(input, func(m string) string {
		if name := m[1:]; resolved[name] {
			return "[File: " + name + "]"
		}
		return m
	})

	var trailer strings.Builder
	trailer.WriteString("\n\n" + AttachmentsHeader + "\n")
	for _, a := range attached {
		fmt.Fprintf(&trailer, "\nFile: %s\n```\n%s\n```\n", a.Name, a.Content)
		L_info("prompt: attached file", "file", a.Name, "bytes", len(a.Content))
	}
	return out + trailer.String(), attached
}

func (e *Engine) load(name string) (Attachment, error) {
	root := e.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Attachment{}, err
		}
		root = wd
	}

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, name)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Attachment{}, err
	}
	if !info.Mode().IsRegular() {
		return Attachment{}, fmt.Errorf("%s is not a regular file", path)
	}

	limit := e.MaxFileBytes
	if limit <= 0 {
		limit = DefaultMaxFileBytes
	}
	if info.Size() > limit {
		return Attachment{}, fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), limit)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, err
	}
	if mt := mimetype.Detect(data); !isText(mt) {
		return Attachment{}, fmt.Errorf("%s is %s, not text", path, mt.String())
	}
	return Attachment{Name: name, Path: path, Content: string(data)}, nil
}

// isText reports whether mt is text/plain or derives from it (json, csv, source code).
func isText(mt *mimetype.MIME) bool {
	for ; mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return true
		}
	}
	return false
}
