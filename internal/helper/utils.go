package helper

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/schema"

	"medical-rag/internal/models"
)

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %v", err)
	}
	return id.String(), nil
}

// pretty print
func PrettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Msg("Error pretty printing")
	}
	fmt.Println(string(b))
}

func CreateFolder(path string) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, 0o755)
}

// ReadText returns the trimmed content of a text file, or "" for an empty path.
func ReadText(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// FormatSources lists the distinct "source p.N" references of docs, in first-seen order.
func FormatSources(docs []schema.Document) string {
	seen := make(map[string]bool)
	var refs []string
	for _, doc := range docs {
		src, _ := doc.Metadata[models.MetaSource].(string)
		if src == "" {
			continue
		}
		ref := src
		if page, ok := doc.Metadata[models.MetaPage]; ok {
			ref = fmt.Sprintf("%s p.%v", src, page)
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return strings.Join(refs, "\n")
}

// StringMetadata flattens metadata values to strings for stores that only keep string maps.
func StringMetadata(meta map[string]any) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = fmt.Sprint(v)
	}
	return out
}
