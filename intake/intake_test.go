package intake_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/takigawalab/indexapi/intake"
)

func TestMockAnalyzerDrafts(t *testing.T) {
	a := &intake.MockAnalyzer{}
	drafts, err := a.Analyze(context.Background(), intake.Input{Text: "中山11R 中山記念"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(drafts) == 0 {
		t.Fatal("no drafts returned")
	}
	d := drafts[0]
	if d.Race.Venue == "" || d.Race.RaceName == "" || d.Race.RaceNumber <= 0 {
		t.Errorf("draft race incomplete: %+v", d.Race)
	}
	if len(d.Horses) == 0 {
		t.Error("draft has no horses")
	}

	imageDrafts, err := a.Analyze(context.Background(), intake.Input{Image: []byte{0x89, 0x50}})
	if err != nil {
		t.Fatalf("Analyze image: %v", err)
	}
	if len(imageDrafts) == 0 {
		t.Error("image input produced no drafts")
	}
}

func TestMockAnalyzerEmptyInput(t *testing.T) {
	a := &intake.MockAnalyzer{}
	_, err := a.Analyze(context.Background(), intake.Input{})
	var ae *intake.AnalysisError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want AnalysisError", err)
	}
	if ae.Reason == "" {
		t.Error("analysis error has no reason")
	}
}

func TestMockAnalyzerHonorsContext(t *testing.T) {
	a := &intake.MockAnalyzer{Delay: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Analyze(ctx, intake.Input{Text: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
