package core

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// CategoryUnknown is the reserved output category meaning "no category met
// the confidence threshold". It is never a valid input category.
const CategoryUnknown = "UNK"

var (
	// ErrReservedCategory is returned when the reserved name UNK is used as
	// a training or input category.
	ErrReservedCategory = errors.New(`category name "UNK" is reserved`)
	// ErrInvalidThreshold is returned when a classification threshold lies
	// outside [0, 1].
	ErrInvalidThreshold = errors.New("classification threshold must be within [0, 1]")
	// ErrInvalidFolds is returned when cross-validation is requested with
	// fewer than 2 folds.
	ErrInvalidFolds = errors.New("cross-validation needs at least 2 folds")
)

// CheckCategory rejects the reserved category name.
func CheckCategory(name string) error {
	if name == CategoryUnknown {
		return ErrReservedCategory
	}
	return nil
}

// Address is a mail address with its optional display name.
type Address struct {
	Address string
	Name    string
}

// BodyPart is one decoded body section of a message.
type BodyPart struct {
	MediaType string
	Text      string
}

// IsHTML reports whether the part carries HTML markup.
func (p BodyPart) IsHTML() bool {
	return strings.EqualFold(p.MediaType, "text/html")
}

// Document represents a parsed message ready for token extraction.
type Document struct {
	// ID identifies the document across repeated source iterations. When
	// empty, the harness derives a key from the source name and position.
	ID      string
	From    []Address
	To      []Address
	Subject string
	Agent   string
	Parts   []BodyPart
}

// Predictor is a token's cached evidence for one category: the probability
// that a message containing the token belongs to the category, and its
// square, used as a significance weight.
type Predictor struct {
	Prob float64
	Sig  float64
}

// Meta tracks staleness of the predictor cache relative to the frequency
// tables. Both counters only ever grow, except on a full reset.
type Meta struct {
	// Processed counts learn and unlearn operations applied to the
	// frequency tables.
	Processed uint64
	// ScoredAsOf is the Processed value the predictor cache was last
	// rebuilt against.
	ScoredAsOf uint64
}

// Stale reports whether the predictor cache has fallen at least delay
// operations behind the frequency tables.
func (m Meta) Stale(delay uint64) bool {
	return m.Processed-m.ScoredAsOf >= delay
}

// CategoryScore is one category's combined probability for a document.
type CategoryScore struct {
	Category string
	Prob     float64
}

// ModelState is a complete copy of the classifier's learned state, used for
// snapshot round-trips and backend migration.
type ModelState struct {
	Categories  map[string]int
	Frequencies map[string]map[string]int
	Predictors  map[string]map[string]Predictor
	Bias        map[string]float64
	Meta        Meta
}

// NewModelState returns an empty state with every table allocated.
func NewModelState() *ModelState {
	return &ModelState{
		Categories:  make(map[string]int),
		Frequencies: make(map[string]map[string]int),
		Predictors:  make(map[string]map[string]Predictor),
		Bias:        make(map[string]float64),
	}
}

// ConfusionMatrix maps true categories to predicted categories (or UNK) to
// document counts.
type ConfusionMatrix map[string]map[string]int

// Add records one prediction outcome.
func (m ConfusionMatrix) Add(truth, predicted string) {
	row, ok := m[truth]
	if !ok {
		row = make(map[string]int)
		m[truth] = row
	}
	row[predicted]++
}

// Total is the number of documents recorded in the matrix.
func (m ConfusionMatrix) Total() int {
	total := 0
	for _, row := range m {
		for _, n := range row {
			total += n
		}
	}
	return total
}

// Correct is the number of documents whose predicted category matched the
// true one.
func (m ConfusionMatrix) Correct() int {
	correct := 0
	for truth, row := range m {
		correct += row[truth]
	}
	return correct
}

// Accuracy is the fraction of documents predicted correctly, or 0 for an
// empty matrix.
func (m ConfusionMatrix) Accuracy() float64 {
	total := m.Total()
	if total == 0 {
		return 0
	}
	return float64(m.Correct()) / float64(total)
}

// Categories returns every category appearing as a true or predicted label,
// sorted, with UNK last when present.
func (m ConfusionMatrix) Categories() []string {
	seen := make(map[string]struct{})
	for truth, row := range m {
		seen[truth] = struct{}{}
		for predicted := range row {
			seen[predicted] = struct{}{}
		}
	}
	unknown := false
	cats := make([]string, 0, len(seen))
	for cat := range seen {
		if cat == CategoryUnknown {
			unknown = true
			continue
		}
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	if unknown {
		cats = append(cats, CategoryUnknown)
	}
	return cats
}

// Evaluation is the outcome of a classification or cross-validation run.
type Evaluation struct {
	RunID     string
	Matrix    ConfusionMatrix
	Documents int
	Skipped   int
	Threshold float64
	// Folds is the fold count for cross-validation runs, 0 otherwise.
	Folds       int
	StartedAt   time.Time
	CompletedAt time.Time
}

// Accuracy is the fraction of scored documents predicted correctly.
func (e *Evaluation) Accuracy() float64 {
	return e.Matrix.Accuracy()
}
