package ragstore

import "fmt"

// ChunkSize and ChunkOverlap match §6: "chunked at ~1000 characters with
// 200-character overlap."
const (
	ChunkSize    = 1000
	ChunkOverlap = 200
)

// ChunkText splits already-extracted document text into overlapping
// chunks. PDF text extraction itself is an external collaborator (§1); this
// takes the extracted text as a given and only does the splitting BuildIndex
// needs. idPrefix namespaces chunk IDs per source document.
func ChunkText(idPrefix, text string, tag ChunkTag) []Chunk {
	if text == "" {
		return nil
	}
	var chunks []Chunk
	step := ChunkSize - ChunkOverlap
	n := 0
	for start := 0; start < len(text); start += step {
		end := start + ChunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, Chunk{
			ID:   fmt.Sprintf("%s:%d", idPrefix, n),
			Text: text[start:end],
			Tag:  tag,
		})
		n++
		if end == len(text) {
			break
		}
	}
	return chunks
}
