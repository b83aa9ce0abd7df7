package models

const (
	MetaSource     = "source"
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
	MetaChunkID    = "chunk_id"
	MetaTask       = "task"

	ContextSeparator = "\n---\n"
	ThinkTag         = `(?s)<think>.*?</think>`
)

var (
	ContextPromptTemplate = `<document>
%s
</document>
Here is the chunk we want to situate within the whole document
<chunk>
%s
</chunk>
Please give a short succinct context to situate this chunk within the overall medical document for the purposes of improving search retrieval of the chunk. Mention the document type and date if they are known. Answer only with the succinct context and nothing else.
`
)
