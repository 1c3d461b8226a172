// Package stream emulates incremental delivery for backends that only
// produce a complete response. The backend call is fully synchronous; once
// its text is available, Frames replays it as a finite framed sequence
// matching the Ollama NDJSON streaming contract.
//
// The chunking stage is pure and decoupled from response collection, so a
// genuine streaming backend can replace the collection stage later without
// touching the framing.
package stream

// DefaultChunkSize is the fixed chunk width used when no override is
// configured.
const DefaultChunkSize = 40

// Frame is one emulated streaming event. The terminal frame has Done=true
// and empty Content.
type Frame struct {
	Content string
	Done    bool
}

// Split cuts text into fixed-size chunks, never splitting a UTF-8 rune.
// Empty text yields a single empty chunk so streaming clients still receive
// one content frame before the terminal frame.
func Split(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return []string{""}
	}
	chunks := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// Frames converts a complete response text into the full emulated frame
// sequence. Each call produces a fresh sequence; concatenating the Content
// of every frame reproduces text exactly.
func Frames(text string, size int) []Frame {
	chunks := Split(text, size)
	frames := make([]Frame, 0, len(chunks)+1)
	for _, c := range chunks {
		frames = append(frames, Frame{Content: c})
	}
	frames = append(frames, Frame{Done: true})
	return frames
}
