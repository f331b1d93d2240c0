package chunker

type ChunkerConfig struct {
	ChunkSize int // target chunk size in characters
	Overlap   int // characters shared between consecutive chunks
}

// Chunker splits text into ordered, overlapping fixed-size segments.
// Boundaries are pure character offsets, so the same input and
// configuration always produce the same chunk sequence.
type Chunker struct {
	config ChunkerConfig
}

func NewWithConfig(config ChunkerConfig) *Chunker {
	if config.ChunkSize == 0 {
		config.ChunkSize = 500
	}
	if config.Overlap < 0 {
		config.Overlap = 0
	}
	if config.Overlap >= config.ChunkSize {
		config.Overlap = config.ChunkSize - 1
	}

	return &Chunker{
		config: config,
	}
}

// Split returns the chunk sequence for text. Every chunk is at most
// ChunkSize characters; only the final chunk may be shorter. Empty
// input yields no chunks.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	size := c.config.ChunkSize
	step := size - c.config.Overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// Reassemble inverts Split: it concatenates chunks while trimming the
// configured overlap from every chunk after the first.
func (c *Chunker) Reassemble(chunks []string) string {
	if len(chunks) == 0 {
		return ""
	}

	out := []rune(chunks[0])
	for _, chunk := range chunks[1:] {
		runes := []rune(chunk)
		if c.config.Overlap < len(runes) {
			out = append(out, runes[c.config.Overlap:]...)
		}
	}
	return string(out)
}
