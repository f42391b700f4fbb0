package classifier

import (
	"regexp"
	"strings"

	"courier/pkg/models"
)

// Intent labels produced by Classify.
const (
	IntentOrderStatus = "order_status"
	IntentGreeting    = "greeting"
	IntentCancelOrder = "cancel_order"
	IntentBotIdentity = "bot_identity"
	IntentUnknown     = "unknown"
)

const (
	matchConfidence   = 0.85
	unknownConfidence = 0.40
)

type rule struct {
	intent  string
	pattern *regexp.Regexp
}

// Rule order matters: the first match wins, so the more specific
// order_status beats a greeting embedded in the same sentence.
//
// \b in Go regexp is ASCII-only, so accented forms (olá, você) are matched
// without boundary anchors.
var rules = []rule{
	{IntentOrderStatus, regexp.MustCompile(`\b(status|pedido|tracking)\b`)},
	{IntentGreeting, regexp.MustCompile(`\b(oi|ola)\b|olá`)},
	{IntentCancelOrder, regexp.MustCompile(`\b(cancel(ar)?|remover)\b`)},
	{IntentBotIdentity, regexp.MustCompile(`\bseu nome\b|quem (é|eh) você|quem (é|eh) (voce|vc)\b`)},
}

// Classifier assigns an intent to a message body. It is pure and stateless;
// a single shared instance is safe for concurrent use.
type Classifier struct{}

func New() *Classifier {
	return &Classifier{}
}

func (c *Classifier) Classify(text string) models.Classification {
	lowered := strings.ToLower(strings.TrimSpace(text))
	for _, r := range rules {
		if r.pattern.MatchString(lowered) {
			return models.Classification{Intent: r.intent, Confidence: matchConfidence}
		}
	}
	return models.Classification{Intent: IntentUnknown, Confidence: unknownConfidence}
}
