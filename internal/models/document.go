package models

// Metadata keys shared by loaders, the chunker and the vector stores.
const (
	MetaSource      = "source"
	MetaFilePath    = "filePath"
	MetaFileName    = "fileName"
	MetaCategory    = "category"
	MetaTitle       = "title"
	MetaURL         = "url"
	MetaChunkIndex  = "chunkIndex"
	MetaTotalChunks = "totalChunks"
)

// Document is a loaded piece of documentation. It is never mutated after loading.
type Document struct {
	Content  string
	Metadata map[string]any
}

// Source returns the document's source identifier or "Unknown".
func (d Document) Source() string {
	return sourceOf(d.Metadata)
}

// Chunk is a bounded fragment of a Document. Metadata is the parent's metadata
// plus chunkIndex and totalChunks.
type Chunk struct {
	Content  string
	Metadata map[string]any
}

func sourceOf(meta map[string]any) string {
	if s, ok := meta[MetaSource].(string); ok && s != "" {
		return s
	}
	return "Unknown"
}

// CloneMetadata returns a shallow copy of meta that is safe to extend.
func CloneMetadata(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+2)
	for k, v := range meta {
		out[k] = v
	}
	return out
}
