package chart

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/papertrade.space/internal/platform/money"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/domain"
)

func snapshotAt(day int, balanceCents, paidCents int64) domain.PortfolioSnapshot {
	return domain.PortfolioSnapshot{
		CreatedAt: time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC),
		Entries: []domain.PortfolioEntry{
			{
				SecurityName:   "GOOG",
				Balance:        money.FromCents(balanceCents),
				TotalPricePaid: money.FromCents(paidCents),
			},
		},
	}
}

func TestRenderRejectsEmptyInput(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, nil); !errors.Is(err, ErrNoSnapshots) {
		t.Fatalf("render = %v, want ErrNoSnapshots", err)
	}
}

func TestRenderProducesSVG(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, []domain.PortfolioSnapshot{
		snapshotAt(1, 10000, 9000),
		snapshotAt(2, 12000, 9000),
		snapshotAt(3, 11000, 9000),
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	svg := buf.String()
	if !strings.HasPrefix(svg, "<svg ") || !strings.Contains(svg, "</svg>") {
		t.Fatalf("expected an svg document, got:\n%.200s", svg)
	}
	if !strings.Contains(svg, "<polyline") {
		t.Fatal("expected a polyline for the balance series")
	}
	if !strings.Contains(svg, "2026-01-01") || !strings.Contains(svg, "2026-01-03") {
		t.Fatal("expected date labels for first and last snapshots")
	}
}

func TestRenderColorTracksFinalBalance(t *testing.T) {
	var gain bytes.Buffer
	if err := Render(&gain, []domain.PortfolioSnapshot{
		snapshotAt(1, 8000, 9000),
		snapshotAt(2, 12000, 9000),
	}); err != nil {
		t.Fatalf("render gain: %v", err)
	}
	if !strings.Contains(gain.String(), colorGain) || strings.Contains(gain.String(), colorLoss) {
		t.Fatal("expected gain color when final balance is positive")
	}

	var loss bytes.Buffer
	if err := Render(&loss, []domain.PortfolioSnapshot{
		snapshotAt(1, 12000, 9000),
		snapshotAt(2, 8000, 9000),
	}); err != nil {
		t.Fatalf("render loss: %v", err)
	}
	if !strings.Contains(loss.String(), colorLoss) {
		t.Fatal("expected loss color when final balance is negative")
	}
}

func TestRenderHandlesSingleSnapshot(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, []domain.PortfolioSnapshot{snapshotAt(1, 10000, 10000)}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "<circle") {
		t.Fatal("expected at least one data point")
	}
}

func TestDateLabelIndexesCapsAtEight(t *testing.T) {
	indexes := dateLabelIndexes(30)
	if len(indexes) != 8 {
		t.Fatalf("len = %d, want 8", len(indexes))
	}
	if indexes[0] != 0 || indexes[len(indexes)-1] != 29 {
		t.Fatalf("labels should span the full range, got %v", indexes)
	}
}
