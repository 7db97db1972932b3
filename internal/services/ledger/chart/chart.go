// Package chart renders a portfolio net-balance time series as SVG.
package chart

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/papertrade.space/internal/platform/money"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/domain"
)

// ErrNoSnapshots reports a chart request with nothing to plot.
var ErrNoSnapshots = errors.New("no snapshots to chart")

const (
	width      = 1200
	height     = 600
	marginLeft = 90
	marginX    = 40
	marginY    = 50

	colorGain = "#2e8b57"
	colorLoss = "#c03030"
)

// Render writes an SVG chart of net balance over time. Snapshots must be
// sorted by date ascending. The line is green when the final balance is
// non-negative and red otherwise, with a dashed reference line at zero.
func Render(w io.Writer, snapshots []domain.PortfolioSnapshot) error {
	if len(snapshots) == 0 {
		return ErrNoSnapshots
	}

	balances := make([]money.Amount, len(snapshots))
	for i, snapshot := range snapshots {
		balances[i] = snapshot.NetBalance()
	}

	minBalance, maxBalance := balances[0], balances[0]
	for _, balance := range balances[1:] {
		if balance < minBalance {
			minBalance = balance
		}
		if balance > maxBalance {
			maxBalance = balance
		}
	}

	// Pad the y range so points never sit on the frame.
	pad := (maxBalance - minBalance) / 10
	if pad == 0 {
		pad = maxBalance.Abs() / 10
	}
	if pad == 0 {
		pad = money.FromCents(100)
	}
	lo := minBalance.Sub(pad)
	hi := maxBalance.Add(pad)

	color := colorGain
	if balances[len(balances)-1].IsNegative() {
		color = colorLoss
	}

	xAt := func(i int) float64 {
		if len(snapshots) == 1 {
			return float64(width) / 2
		}
		span := float64(width - marginLeft - marginX)
		return marginLeft + span*float64(i)/float64(len(snapshots)-1)
	}
	yAt := func(balance money.Amount) float64 {
		span := float64(height - 2*marginY)
		scale := float64(balance-lo) / float64(hi-lo)
		return float64(height-marginY) - span*scale
	}

	var line strings.Builder
	for i, balance := range balances {
		if i > 0 {
			line.WriteString(" ")
		}
		fmt.Fprintf(&line, "%.1f,%.1f", xAt(i), yAt(balance))
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n", width, height, width, height)
	b.WriteString(`<rect width="100%" height="100%" fill="white"/>` + "\n")
	fmt.Fprintf(&b, `<text x="%d" y="28" font-size="20" font-weight="bold" text-anchor="middle">Portfolio Balance Over Time</text>`+"\n", width/2)

	// Horizontal gridlines with dollar labels.
	for step := 0; step <= 4; step++ {
		value := lo + money.Amount(step)*(hi-lo)/4
		y := yAt(value)
		fmt.Fprintf(&b, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="#ccc" stroke-dasharray="4 4"/>`+"\n", marginLeft, y, width-marginX, y)
		fmt.Fprintf(&b, `<text x="%d" y="%.1f" font-size="12" text-anchor="end">%s</text>`+"\n", marginLeft-8, y+4, value)
	}

	// Zero reference line when zero is in range.
	if lo.IsNegative() && !hi.IsNegative() {
		y := yAt(0)
		fmt.Fprintf(&b, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="black" stroke-dasharray="6 4" opacity="0.5"/>`+"\n", marginLeft, y, width-marginX, y)
	}

	// Filled area under the curve.
	fmt.Fprintf(&b, `<polygon points="%.1f,%.1f %s %.1f,%.1f" fill="%s" opacity="0.3"/>`+"\n",
		xAt(0), yAt(lo), line.String(), xAt(len(balances)-1), yAt(lo), color)
	fmt.Fprintf(&b, `<polyline points="%s" fill="none" stroke="%s" stroke-width="2"/>`+"\n", line.String(), color)

	// Data points and date labels.
	for i, balance := range balances {
		fmt.Fprintf(&b, `<circle cx="%.1f" cy="%.1f" r="4" fill="%s"/>`+"\n", xAt(i), yAt(balance), color)
	}
	for _, i := range dateLabelIndexes(len(snapshots)) {
		fmt.Fprintf(&b, `<text x="%.1f" y="%d" font-size="12" text-anchor="middle">%s</text>`+"\n",
			xAt(i), height-marginY+24, snapshots[i].CreatedAt.Format("2006-01-02"))
	}
	b.WriteString("</svg>\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// dateLabelIndexes picks up to eight evenly spaced snapshot indexes to label.
func dateLabelIndexes(n int) []int {
	const maxLabels = 8
	if n <= maxLabels {
		indexes := make([]int, n)
		for i := range indexes {
			indexes[i] = i
		}
		return indexes
	}
	indexes := make([]int, 0, maxLabels)
	for step := 0; step < maxLabels; step++ {
		indexes = append(indexes, step*(n-1)/(maxLabels-1))
	}
	return indexes
}
