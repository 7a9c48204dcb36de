package sentiment

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/jonreiter/govader"
	"go.uber.org/zap"

	"github.com/custlens-org/custlens/dataset"
)

// ============================================================================
// SENTIMENT ANALYZER — VADER polarity scoring plus topic keywords
// ============================================================================

// Label buckets a compound score. VADER convention: anything inside
// (-0.05, 0.05) is noise.
type Label string

const (
	LabelPositive Label = "Positive"
	LabelNegative Label = "Negative"
	LabelNeutral  Label = "Neutral"
)

// LabelOf classifies a compound score.
func LabelOf(compound float64) Label {
	switch {
	case compound >= 0.05:
		return LabelPositive
	case compound <= -0.05:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

// Review is one scored text row.
type Review struct {
	Text     string  `json:"text"`
	Compound float64 `json:"compound"`
	Label    Label   `json:"label"`
}

// Topic is a recurring theme: its top keywords by weighted frequency.
type Topic struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// Result is a full sentiment run over a dataset's review column.
type Result struct {
	Reviews     []Review      `json:"-"`
	Counts      map[Label]int `json:"counts"`
	MeanScore   float64       `json:"mean_score"`
	Topics      []Topic       `json:"topics"`
	RowsScored  int           `json:"rows_scored"`
	RowsSkipped int           `json:"rows_skipped"`
}

// Analyzer scores review text. Safe for reuse across datasets; not safe for
// concurrent use.
type Analyzer struct {
	vader *govader.SentimentIntensityAnalyzer
	log   *zap.SugaredLogger
}

func NewAnalyzer(log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{
		vader: govader.NewSentimentIntensityAnalyzer(),
		log:   log.Sugar(),
	}
}

// Analyze scores every row of the "ReviewText" column. Empty cells are
// skipped, not scored as neutral.
func (a *Analyzer) Analyze(ds *dataset.Dataset) (*Result, error) {
	col, ok := ds.Column("ReviewText")
	if !ok {
		return nil, fmt.Errorf("sentiment: dataset has no ReviewText column")
	}

	res := &Result{Counts: map[Label]int{LabelPositive: 0, LabelNegative: 0, LabelNeutral: 0}}
	var cleaned []string
	var total float64
	for _, text := range col.Values {
		if strings.TrimSpace(text) == "" {
			res.RowsSkipped++
			continue
		}
		// VADER reads punctuation and casing as intensity, so score raw text
		score := a.vader.PolarityScores(text).Compound
		label := LabelOf(score)
		res.Reviews = append(res.Reviews, Review{Text: text, Compound: score, Label: label})
		res.Counts[label]++
		total += score
		cleaned = append(cleaned, cleanText(text))
	}
	res.RowsScored = len(res.Reviews)
	if res.RowsScored > 0 {
		res.MeanScore = total / float64(res.RowsScored)
	}
	res.Topics = extractTopics(cleaned, 5, 10)

	a.log.Infow("sentiment scored",
		"rows", res.RowsScored, "skipped", res.RowsSkipped, "mean", res.MeanScore)
	return res, nil
}

// cleanText lowercases and strips everything but letters and spaces, the
// normalization used before keyword extraction.
func cleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLower(r) || r == ' ' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ============================================================================
// TOPIC EXTRACTION
// ============================================================================

// extractTopics groups the corpus vocabulary into nTopics buckets of
// co-occurring terms ranked by document frequency, topWords keywords each.
// Terms shorter than 3 runes and stopwords are dropped.
func extractTopics(cleaned []string, nTopics, topWords int) []Topic {
	if len(cleaned) == 0 {
		return nil
	}

	df := make(map[string]int)
	docTerms := make([]map[string]struct{}, len(cleaned))
	for i, doc := range cleaned {
		terms := make(map[string]struct{})
		for _, w := range strings.Fields(doc) {
			if len(w) < 3 || stopwords[w] {
				continue
			}
			terms[w] = struct{}{}
		}
		docTerms[i] = terms
		for w := range terms {
			df[w]++
		}
	}
	if len(df) == 0 {
		return nil
	}

	vocab := make([]string, 0, len(df))
	for w := range df {
		vocab = append(vocab, w)
	}
	sort.Slice(vocab, func(i, j int) bool {
		if df[vocab[i]] != df[vocab[j]] {
			return df[vocab[i]] > df[vocab[j]]
		}
		return vocab[i] < vocab[j]
	})

	if len(vocab) < nTopics {
		nTopics = len(vocab)
	}
	if nTopics == 0 {
		return nil
	}

	// Seed each topic with one of the most frequent terms, then attach the
	// remaining vocabulary to the seed it co-occurs with most.
	topics := make([]Topic, nTopics)
	seeds := vocab[:nTopics]
	buckets := make([][]string, nTopics)
	for t, seed := range seeds {
		buckets[t] = []string{seed}
	}
	for _, w := range vocab[nTopics:] {
		best, bestCo := 0, -1
		for t, seed := range seeds {
			co := 0
			for _, terms := range docTerms {
				if _, okW := terms[w]; !okW {
					continue
				}
				if _, okS := terms[seed]; okS {
					co++
				}
			}
			if co > bestCo {
				bestCo = co
				best = t
			}
		}
		if len(buckets[best]) < topWords {
			buckets[best] = append(buckets[best], w)
		}
	}

	for t := range topics {
		topics[t] = Topic{Name: fmt.Sprintf("Topic %d", t+1), Keywords: buckets[t]}
	}
	return topics
}

var stopwords = map[string]bool{
	"the": true, "and": true, "was": true, "for": true, "this": true,
	"that": true, "with": true, "are": true, "but": true, "not": true,
	"you": true, "all": true, "have": true, "had": true, "has": true,
	"they": true, "our": true, "out": true, "its": true, "from": true,
	"were": true, "been": true, "very": true, "will": true, "would": true,
	"there": true, "their": true, "what": true, "when": true, "which": true,
	"your": true, "can": true, "could": true, "just": true, "about": true,
	"get": true, "got": true, "also": true, "than": true, "then": true,
	"them": true, "some": true, "one": true, "only": true, "more": true,
	"did": true, "she": true, "him": true, "her": true, "his": true,
}
