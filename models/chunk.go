package models

// ChunkSpan is a chunk-sized slice of normalized text with its character
// offsets in the source unit. Produced by the chunker, before any metadata
// or identity is attached.
type ChunkSpan struct {
	Text  string
	Start int
	End   int
}

// Chunk is the atomic retrievable unit. Text is always populated, even for
// images, where it holds the caption or a placeholder description.
type Chunk struct {
	ChunkID    string                 `json:"chunk_id" bson:"chunk_id"`
	DocumentID string                 `json:"document_id" bson:"document_id"`
	SourceName string                 `json:"source_name" bson:"source_name"`
	Text       string                 `json:"text" bson:"text"`
	Modality   Modality               `json:"modality" bson:"modality"`
	Order      int                    `json:"order" bson:"order"`
	StartIndex int                    `json:"start_index" bson:"start_index"`
	EndIndex   int                    `json:"end_index" bson:"end_index"`
	Page       int                    `json:"page,omitempty" bson:"page,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
}
