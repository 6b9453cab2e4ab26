// Package classifier provides the deterministic keyword heuristics used to
// tag reviews with a sentiment and a set of topics.
//
// The package is pure: no I/O happens after construction, no logging, and a
// Keyword value is read-only so it is safe for concurrent use. Callers that
// need a different model can satisfy the Classifier interface instead.
//
// Scoring:
//
//	tokens = runs of [a-z'] in the lowercased text
//	score  = clamp(round2((pos - neg) / len(tokens)), -1, 1)
//	label  = Positive if score > 0.15, Negative if score < -0.15, else Neutral
//
// Topic confidence for a bucket with hits > 0 is
// round2(0.5 + min(0.5, hits/len(tokens))). Texts without any bucket hit get
// the single fallback topic at 0.5.
package classifier

import (
	"math"
	"regexp"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/customer-voice-api/internal/domain"
)

// Label thresholds on the rounded score.
const (
	PositiveThreshold = 0.15
	NegativeThreshold = -0.15

	// FallbackConfidence is attached to the fallback topic.
	FallbackConfidence = 0.5
)

// Sentiment is the polarity result for a piece of text.
type Sentiment struct {
	Label domain.SentimentLabel `json:"label"`
	Score float64               `json:"score"`
}

// TopicScore is a topic label with the classifier confidence in [0.5, 1].
type TopicScore struct {
	Label      string  `json:"topic_label"`
	Confidence float64 `json:"topic_confidence"`
}

// Classifier is the capability consumed by ingestion and /analyze.
type Classifier interface {
	Score(text string) Sentiment
	Topics(text string) []TopicScore
}

type bucket struct {
	label    string
	keywords map[string]struct{}
}

// Keyword is the lexicon-driven Classifier.
type Keyword struct {
	positive map[string]struct{}
	negative map[string]struct{}
	buckets  []bucket
	fallback string
}

var _ Classifier = (*Keyword)(nil)

// New builds a Keyword classifier from lex. The lexicon is validated first.
func New(lex Lexicon) (*Keyword, error) {
	if err := lex.Validate(); err != nil {
		return nil, err
	}
	k := &Keyword{
		positive: toSet(lex.Positive),
		negative: toSet(lex.Negative),
		buckets:  make([]bucket, 0, len(lex.Topics)),
		fallback: lex.Fallback,
	}
	for _, t := range lex.Topics {
		k.buckets = append(k.buckets, bucket{label: t.Label, keywords: toSet(t.Keywords)})
	}
	return k, nil
}

// Default returns a classifier over DefaultLexicon.
func Default() *Keyword {
	k, err := New(DefaultLexicon())
	if err != nil {
		panic(err)
	}
	return k
}

// Score computes the sentiment of text. Empty or wordless text is Neutral/0.
func (k *Keyword) Score(text string) Sentiment {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return Sentiment{Label: domain.SentimentNeutral, Score: 0}
	}
	pos, neg := 0, 0
	for _, tok := range tokens {
		if _, ok := k.positive[tok]; ok {
			pos++
		}
		if _, ok := k.negative[tok]; ok {
			neg++
		}
	}
	score := clamp(round2(float64(pos-neg)/float64(len(tokens))), -1, 1)
	return Sentiment{Label: LabelFor(score), Score: score}
}

// Topics returns every bucket that matched, in lexicon order, or the
// fallback topic when nothing matched.
func (k *Keyword) Topics(text string) []TopicScore {
	tokens := tokenize(text)
	out := make([]TopicScore, 0, 2)
	if len(tokens) > 0 {
		n := float64(len(tokens))
		for _, b := range k.buckets {
			hits := 0
			for _, tok := range tokens {
				if _, ok := b.keywords[tok]; ok {
					hits++
				}
			}
			if hits == 0 {
				continue
			}
			out = append(out, TopicScore{
				Label:      b.label,
				Confidence: round2(0.5 + math.Min(0.5, float64(hits)/n)),
			})
		}
	}
	if len(out) == 0 {
		out = append(out, TopicScore{Label: k.fallback, Confidence: FallbackConfidence})
	}
	return out
}

// LabelFor maps a score to its discrete label.
func LabelFor(score float64) domain.SentimentLabel {
	switch {
	case score > PositiveThreshold:
		return domain.SentimentPositive
	case score < NegativeThreshold:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

var wordRE = regexp.MustCompile(`[a-z']+`)

func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	// A Caser keeps state, so one per call.
	lower := cases.Lower(language.Und).String(s)
	return wordRE.FindAllString(lower, -1)
}

func toSet(words []string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
