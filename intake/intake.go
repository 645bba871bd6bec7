// Package intake converts unstructured race material (a card image or pasted
// text) into draft races for an admin to review. Analyzers never write to the
// catalog; drafts only become races through an explicit admin create.
package intake

import (
	"context"
	"time"

	"github.com/takigawalab/indexapi/models"
)

// Input carries exactly one of an image or a text block.
type Input struct {
	Image []byte
	Text  string
}

// DraftRace is an extracted race proposal. Fields may be incomplete; the
// admin edits and commits it through the normal race create path.
type DraftRace struct {
	Race   models.Race     `json:"race"`
	Horses []*models.Horse `json:"horses"`
}

// AnalysisError reports that extraction failed. It is recoverable: callers
// offer a retry or fall back to manual entry, never crash the request.
type AnalysisError struct {
	Reason string
}

func (e *AnalysisError) Error() string {
	return "analysis failed: " + e.Reason
}

// Analyzer extracts draft races from an input.
type Analyzer interface {
	Analyze(ctx context.Context, in Input) ([]DraftRace, error)
}

// MockAnalyzer returns a fixed draft after a short simulated processing
// delay. It stands in for the real extraction engine in development and
// tests.
type MockAnalyzer struct {
	// Delay defaults to zero so tests stay fast.
	Delay time.Duration
}

func (a *MockAnalyzer) Analyze(ctx context.Context, in Input) ([]DraftRace, error) {
	if len(in.Image) == 0 && in.Text == "" {
		return nil, &AnalysisError{Reason: "no content to analyze"}
	}

	if a.Delay > 0 {
		select {
		case <-time.After(a.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	grade := "G2"
	odds1, odds2 := 2.5, 5.2
	pop1, pop2 := 1, 2
	return []DraftRace{
		{
			Race: models.Race{
				Venue:      "中山",
				RaceNumber: 11,
				RaceName:   "中山記念",
				RaceType:   "芝",
				Distance:   1800,
				PostTime:   "15:45",
				GradeClass: &grade,
				RaceDate:   "2024-01-14",
			},
			Horses: []*models.Horse{
				{HorseNumber: 1, HorseName: "エースホース", Age: 4, Sex: "牡", Weight: 480, Jockey: "横山武史", Trainer: "鹿戸雄一", Odds: &odds1, Popularity: &pop1},
				{HorseNumber: 2, HorseName: "ブレイブランナー", Age: 5, Sex: "牡", Weight: 476, Jockey: "福永祐一", Trainer: "国枝栄", Odds: &odds2, Popularity: &pop2},
			},
		},
	}, nil
}
