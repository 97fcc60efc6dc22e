package memory

import "strings"

// section records where one "## Name" block lives inside a document.
// insertAt is the byte offset where a new bullet line belongs: the newline
// separating the body from the next header, or the end of the document.
type section struct {
	name     string
	insertAt int
}

// sectionIndex maps section names to body positions for one document.
// It is rebuilt lazily when the document changes, so section upserts never
// rescan with pattern matching. Header names are compared literally and may
// contain any characters.
type sectionIndex struct {
	sections []section
}

// parseSections scans a markdown document for level-two headers. A document
// with no headers yields an empty index; its whole content is treated as one
// unlabeled preamble rather than an error.
func parseSections(doc string) *sectionIndex {
	idx := &sectionIndex{}
	offset := 0
	for offset <= len(doc) {
		lineEnd := strings.IndexByte(doc[offset:], '\n')
		var next int
		var line string
		if lineEnd < 0 {
			line = doc[offset:]
			next = len(doc) + 1
		} else {
			line = doc[offset : offset+lineEnd]
			next = offset + lineEnd + 1
		}

		if strings.HasPrefix(line, "## ") {
			// Close the previous section at the newline before this header.
			if n := len(idx.sections); n > 0 {
				end := offset
				if end > 0 && doc[end-1] == '\n' {
					end--
				}
				idx.sections[n-1].insertAt = end
			}
			idx.sections = append(idx.sections, section{
				name:     strings.TrimSpace(line[3:]),
				insertAt: len(doc),
			})
		}
		offset = next
	}
	return idx
}

// find returns the first section with the given name, matched literally.
func (idx *sectionIndex) find(name string) (section, bool) {
	for _, s := range idx.sections {
		if s.name == name {
			return s, true
		}
	}
	return section{}, false
}
