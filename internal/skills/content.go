package skills

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadContent (C4) reads a skill's documentation file once, strips any
// front-matter block, and splits the remainder into sections on level-2/3
// headings, capturing fenced code blocks along the way.
func LoadContent(dir string) (*Content, error) {
	path := filepath.Join(dir, SkillFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", SkillFilename, err)
	}

	_, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("strip front-matter: %w", err)
	}

	content := &Content{Raw: string(body)}

	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var current *Section
	var buf strings.Builder
	var inCode bool
	var codeLang string
	var codeBuf strings.Builder

	flushSection := func() {
		if current != nil {
			current.Body = strings.TrimSpace(buf.String())
			content.Sections = append(content.Sections, *current)
		}
		buf.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			if inCode {
				content.CodeBlocks = append(content.CodeBlocks, CodeBlock{
					Language: codeLang,
					Code:     strings.TrimRight(codeBuf.String(), "\n"),
				})
				codeBuf.Reset()
				inCode = false
			} else {
				inCode = true
				codeLang = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
			}
			buf.WriteString(line)
			buf.WriteByte('\n')
			continue
		}
		if inCode {
			codeBuf.WriteString(line)
			codeBuf.WriteByte('\n')
			buf.WriteString(line)
			buf.WriteByte('\n')
			continue
		}

		if depth, title, ok := headingDepth(trimmed); ok && (depth == 2 || depth == 3) {
			flushSection()
			current = &Section{Title: title}
			continue
		}

		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan content: %w", err)
	}
	flushSection()

	return content, nil
}

// headingDepth reports the markdown heading depth of a trimmed line (the
// number of leading '#' characters) and its title text, if it is a heading.
func headingDepth(trimmed string) (depth int, title string, ok bool) {
	if !strings.HasPrefix(trimmed, "#") {
		return 0, "", false
	}
	i := 0
	for i < len(trimmed) && trimmed[i] == '#' {
		i++
	}
	if i == 0 || i > 6 {
		return 0, "", false
	}
	return i, strings.TrimSpace(trimmed[i:]), true
}
