package domain

// Intent maps keyword patterns to a fixed reply. Patterns are matched as
// case-insensitive substrings; empty entries never match.
type Intent struct {
	Name     string   `json:"name"`
	Patterns []string `json:"patterns"`
	Reply    string   `json:"reply"`
}

// Clone returns a copy that shares no backing array with i.
func (i Intent) Clone() Intent {
	c := i
	if i.Patterns != nil {
		c.Patterns = append([]string(nil), i.Patterns...)
	}
	return c
}

// CloneIntents deep-copies a slice of intents. A nil input yields an empty,
// non-nil slice so JSON renders [] rather than null.
func CloneIntents(intents []Intent) []Intent {
	out := make([]Intent, len(intents))
	for i, it := range intents {
		out[i] = it.Clone()
	}
	return out
}

// DefaultIntents is the rule set a fresh process starts with.
func DefaultIntents() []Intent {
	return []Intent{
		{Name: "greeting", Patterns: []string{"hi", "hello", "hey"}, Reply: "Hello 👋! How can I help you today?"},
		{Name: "price", Patterns: []string{"price", "fees", "cost"}, Reply: "Our pricing depends on the service. Which service are you looking for?"},
		{Name: "timing", Patterns: []string{"open", "time", "hours", "timing"}, Reply: "We are open 10:00 AM to 8:00 PM (Mon-Sat)."},
		{Name: "appointment", Patterns: []string{"book", "appointment", "slot"}, Reply: "Share your preferred date and time and we will confirm."},
	}
}
