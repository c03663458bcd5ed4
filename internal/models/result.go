package models

// Result is a successful provider reply: the HTTP status it came with and the
// parsed body, which is empty for no-content replies.
type Result struct {
	StatusCode int
	Value      Value
}
