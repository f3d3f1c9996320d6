// internal/model/reply.go
package model

type Intent int

const (
	IntentNeutral Intent = iota
	IntentWon
	IntentLost
	IntentNegotiation
	IntentInfo
	// IntentUnparsed marks generator output that could not be decoded.
	IntentUnparsed
)

var intentNames = map[Intent]string{
	IntentNeutral:     "neutral",
	IntentWon:         "won",
	IntentLost:        "lost",
	IntentNegotiation: "negotiation",
	IntentInfo:        "info",
	IntentUnparsed:    "unparsed",
}

func (i Intent) String() string {
	if s, ok := intentNames[i]; ok {
		return s
	}
	return "neutral"
}

// ParseIntent maps a generator label onto an Intent; unknown labels are neutral.
func ParseIntent(label string) Intent {
	for k, v := range intentNames {
		if v == label && k != IntentUnparsed {
			return k
		}
	}
	return IntentNeutral
}

// Reply is the structured result of one generation.
type Reply struct {
	Intent        Intent
	Value         *float64
	ExtractedName string
	Parts         []string
	Reasoning     string
}

type GatewaySettings struct {
	BaseURL  string `json:"base_url"`
	Instance string `json:"instance"`
	APIKey   string `json:"-"`
}
