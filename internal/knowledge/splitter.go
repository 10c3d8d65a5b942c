package knowledge

import "strings"

// Splitter breaks long text into overlapping chunks suitable for embedding.
// It prefers to split on paragraph boundaries, then lines, then words, and
// hard-cuts only when a single word exceeds the chunk size.
type Splitter struct {
	chunkSize int
	overlap   int
}

// DefaultChunkSize and DefaultOverlap are tuned for short policy and FAQ
// documents where a chunk should hold a few related statements.
const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
)

// NewSplitter creates a Splitter. Non-positive chunkSize falls back to
// DefaultChunkSize; overlap is clamped below chunkSize.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultOverlap
		if overlap >= chunkSize {
			overlap = chunkSize / 10
		}
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}
}

var separators = []string{"\n\n", "\n", " "}

// Split chunks text. Every returned chunk is non-empty and, except when a
// single unbroken token exceeds the chunk size, at most chunkSize long.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return s.split(text, separators)
}

func (s *Splitter) split(text string, seps []string) []string {
	if len(text) <= s.chunkSize {
		return []string{text}
	}
	if len(seps) == 0 {
		return s.hardCut(text)
	}

	sep := seps[0]
	parts := strings.Split(text, sep)

	pieces := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if len(part) > s.chunkSize {
			pieces = append(pieces, s.split(part, seps[1:])...)
		} else {
			pieces = append(pieces, part)
		}
	}

	return s.merge(pieces, sep)
}

// merge joins consecutive pieces with sep up to the chunk size, carrying a
// tail of trailing pieces into the next chunk to provide overlap.
func (s *Splitter) merge(pieces []string, sep string) []string {
	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, sep))

		// Keep trailing pieces within the overlap budget as the seed of
		// the next chunk.
		var tail []string
		tailLen := 0
		for i := len(current) - 1; i >= 0; i-- {
			pieceLen := len(current[i])
			if tailLen > 0 {
				pieceLen += len(sep)
			}
			if tailLen+pieceLen > s.overlap {
				break
			}
			tail = append([]string{current[i]}, tail...)
			tailLen += pieceLen
		}
		current = tail
		currentLen = tailLen
	}

	for _, piece := range pieces {
		addition := len(piece)
		if currentLen > 0 {
			addition += len(sep)
		}
		if currentLen+addition > s.chunkSize {
			flush()
			// Recompute in case the carried tail plus piece still
			// overflows; drop the tail then.
			addition = len(piece)
			if currentLen > 0 {
				addition += len(sep)
			}
			if currentLen+addition > s.chunkSize {
				current = nil
				currentLen = 0
				addition = len(piece)
			}
		}
		current = append(current, piece)
		currentLen += addition
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, sep))
	}

	return chunks
}

func (s *Splitter) hardCut(text string) []string {
	step := s.chunkSize - s.overlap
	if step <= 0 {
		step = s.chunkSize
	}
	var chunks []string
	for start := 0; start < len(text); start += step {
		end := start + s.chunkSize
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks
}
