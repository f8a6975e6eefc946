package analysis

// Stopwords is a set of tokens to drop before indexing or querying.
type Stopwords map[string]struct{}

// NewStopwords builds a Stopwords set from a word list.
func NewStopwords(words []string) Stopwords {
	s := make(Stopwords, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// Contains reports whether word is a stopword.
func (s Stopwords) Contains(word string) bool {
	if s == nil {
		return false
	}
	_, ok := s[word]
	return ok
}
