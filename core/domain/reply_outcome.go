package domain

// Sentiment is the coarse mood label attached to AI fallback requests.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// ReplySource tells which path of the reply pipeline produced the text.
type ReplySource string

const (
	ReplySourceIntent   ReplySource = "intent"
	ReplySourceAI       ReplySource = "ai"
	ReplySourceFallback ReplySource = "fallback"
)

// Reply is the outcome of reply generation. Text is always usable. When the
// AI path failed, Source is ReplySourceFallback and Err holds the cause.
type Reply struct {
	Text      string
	Source    ReplySource
	Intent    string
	Sentiment Sentiment
	Err       error
}

// Failed reports whether the AI fallback was attempted and did not succeed.
func (r Reply) Failed() bool {
	return r.Source == ReplySourceFallback
}
