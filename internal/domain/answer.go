package domain

// Answer is the outcome of one retrieval-augmented query: the generated
// prose plus citations into the forum threads that grounded it.
type Answer struct {
	Text  string
	Links []Link
}
