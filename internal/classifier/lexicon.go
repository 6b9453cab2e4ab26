package classifier

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFallback is the topic assigned when no bucket matches.
const DefaultFallback = "General Feedback"

// TopicBucket is a named keyword set.
type TopicBucket struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// Lexicon holds the word lists behind a Keyword classifier. Topic order is
// significant: it is the order topics are reported in.
type Lexicon struct {
	Positive []string      `yaml:"positive"`
	Negative []string      `yaml:"negative"`
	Topics   []TopicBucket `yaml:"topics"`
	Fallback string        `yaml:"fallback"`
}

// DefaultLexicon returns the built-in word lists.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Positive: []string{
			"love", "great", "good", "amazing", "fast", "helpful", "useful",
			"polish", "improved", "excellent", "happy", "awesome",
		},
		Negative: []string{
			"bad", "slow", "crash", "broken", "missing", "late", "confusing",
			"poor", "terrible", "hate", "bug", "issue", "problem", "wait",
		},
		Topics: []TopicBucket{
			{Label: "Dashboard UX", Keywords: []string{"dashboard", "chart", "insight", "ui", "ux"}},
			{Label: "Email Digests", Keywords: []string{"digest", "email", "summary"}},
			{Label: "Integrations", Keywords: []string{"integration", "sync", "api", "hubspot", "export"}},
			{Label: "Support Response", Keywords: []string{"support", "response", "helpdesk"}},
			{Label: "Mobile Experience", Keywords: []string{"mobile", "phone", "ios", "android"}},
			{Label: "Performance", Keywords: []string{"slow", "fast", "load"}},
		},
		Fallback: DefaultFallback,
	}
}

// LoadLexicon reads a YAML lexicon from path. An empty path yields the
// default lexicon.
func LoadLexicon(path string) (Lexicon, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultLexicon(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("read lexicon: %w", err)
	}
	return ParseLexicon(bytes.NewReader(b))
}

// ParseLexicon decodes a YAML lexicon, lowercases and trims every word, and
// validates the result. A missing fallback label defaults to DefaultFallback.
func ParseLexicon(r io.Reader) (Lexicon, error) {
	var lex Lexicon
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&lex); err != nil {
		if errors.Is(err, io.EOF) {
			return Lexicon{}, errors.New("lexicon: empty document")
		}
		return Lexicon{}, fmt.Errorf("decode lexicon: %w", err)
	}
	lex.Positive = normalizeWords(lex.Positive)
	lex.Negative = normalizeWords(lex.Negative)
	for i := range lex.Topics {
		lex.Topics[i].Label = strings.TrimSpace(lex.Topics[i].Label)
		lex.Topics[i].Keywords = normalizeWords(lex.Topics[i].Keywords)
	}
	lex.Fallback = strings.TrimSpace(lex.Fallback)
	if lex.Fallback == "" {
		lex.Fallback = DefaultFallback
	}
	if err := lex.Validate(); err != nil {
		return Lexicon{}, err
	}
	return lex, nil
}

// Validate checks that every word set is non-empty and topic labels are
// unique and distinct from the fallback.
func (l Lexicon) Validate() error {
	if len(l.Positive) == 0 {
		return errors.New("lexicon: positive word list is empty")
	}
	if len(l.Negative) == 0 {
		return errors.New("lexicon: negative word list is empty")
	}
	if strings.TrimSpace(l.Fallback) == "" {
		return errors.New("lexicon: fallback topic label is empty")
	}
	seen := make(map[string]struct{}, len(l.Topics))
	for i, t := range l.Topics {
		if t.Label == "" {
			return fmt.Errorf("lexicon: topic %d has no label", i)
		}
		if len(t.Keywords) == 0 {
			return fmt.Errorf("lexicon: topic %q has no keywords", t.Label)
		}
		if t.Label == l.Fallback {
			return fmt.Errorf("lexicon: topic %q collides with the fallback label", t.Label)
		}
		if _, dup := seen[t.Label]; dup {
			return fmt.Errorf("lexicon: duplicate topic label %q", t.Label)
		}
		seen[t.Label] = struct{}{}
	}
	return nil
}

func normalizeWords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, w := range in {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}
