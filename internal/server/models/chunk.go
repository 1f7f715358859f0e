package models

// Chunk is one ordered binary segment of a stored file. For a committed file
// the sequence numbers form a contiguous range [0, n-1] and the lengths sum to
// the parent video's ContentLength.
type Chunk struct {
	FileID string
	Seq    int
	Data   []byte
	Length int
}
