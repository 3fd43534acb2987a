package langid

// Guess is a best-guess language with its confidence in [0, 1]. Language is
// a lowercase ISO 639-1 code.
type Guess struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// Span is a fragment of the analysed text attributed to Language. Start and
// End are byte offsets into the text, End exclusive. Chars is the number of
// characters in the fragment.
type Span struct {
	Language  string `json:"language"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Chars     int    `json:"chars"`
	WordCount int    `json:"word_count"`
}

// Len is the size of the fragment in characters.
func (s Span) Len() int {
	return s.Chars
}
