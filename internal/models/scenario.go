package models

// Scenario is the puzzle unit: a public narrative plus a private solution.
// In room mode the solution ships to every member at game start (the
// Questioner is trusted); in single-player mode it is withheld until the
// game ends.
type Scenario struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Solution string `json:"solution,omitempty"`
}

// Redacted returns a copy with the solution stripped, for payloads where the
// player must not see it yet.
func (s Scenario) Redacted() Scenario {
	s.Solution = ""
	return s
}

// Complete reports whether all three fields are present, as required for a
// custom scenario submitted by the Questioner.
func (s Scenario) Complete() bool {
	return s.Title != "" && s.Content != "" && s.Solution != ""
}
