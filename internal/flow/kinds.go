package flow

import "strings"

// Draft holds renderer input that has been typed but not submitted yet.
// Advancing a free-text or contact step without an explicit answer reads it.
type Draft struct {
	Text  string `json:"text,omitempty"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// kindHandler is the capability set of one step kind.
type kindHandler struct {
	// requiresAnswer marks kinds whose answer must be present in the final snapshot.
	requiresAnswer bool
	// synthesize derives an answer when the caller supplies none.
	synthesize func(d Draft) (Answer, bool)
	// accepts is the validity predicate checked before anything is written.
	accepts func(def Definition, a Answer) bool
}

var kindHandlers = map[Kind]kindHandler{
	KindWelcome: {
		requiresAnswer: true,
		synthesize:     confirmTrue,
		accepts:        isConfirmation,
	},
	KindReflection: {
		requiresAnswer: false,
		synthesize:     confirmTrue,
		accepts:        isConfirmation,
	},
	KindSingleChoice: {
		requiresAnswer: true,
		synthesize:     func(Draft) (Answer, bool) { return Answer{}, false },
		accepts: func(_ Definition, a Answer) bool {
			return a.Kind == AnswerChoice && a.Value != ""
		},
	},
	KindFreeText: {
		requiresAnswer: true,
		synthesize: func(d Draft) (Answer, bool) {
			return Text(d.Text), true
		},
		accepts: func(_ Definition, a Answer) bool {
			return a.Kind == AnswerText && strings.TrimSpace(a.Value) != ""
		},
	},
	KindContact: {
		requiresAnswer: true,
		synthesize: func(d Draft) (Answer, bool) {
			return ContactAnswer(d.Name, d.Phone), true
		},
		accepts: func(_ Definition, a Answer) bool {
			return a.Kind == AnswerContact &&
				strings.TrimSpace(a.Contact.Name) != "" &&
				strings.TrimSpace(a.Contact.Phone) != ""
		},
	},
}

func confirmTrue(Draft) (Answer, bool) { return Confirm(true), true }

func isConfirmation(_ Definition, a Answer) bool { return a.Kind == AnswerConfirmation }

// RequiresAnswer reports whether steps of kind k must appear in a completed snapshot.
func RequiresAnswer(k Kind) bool {
	return kindHandlers[k].requiresAnswer
}

// answerForValue maps a renderer "select" value onto the answer shape of def.
func answerForValue(def Definition, value string) (Answer, bool) {
	switch def.Kind {
	case KindSingleChoice:
		return Choice(value), true
	case KindFreeText:
		return Text(value), true
	case KindWelcome, KindReflection:
		return Confirm(true), true
	default:
		return Answer{}, false
	}
}
