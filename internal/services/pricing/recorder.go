package pricing

import (
	"context"
	"log"

	"github.com/louisbranch/papertrade.space/internal/platform/money"
)

// Recorder appends every resolved quote to the price history. Wrap the raw
// client with a Recorder and put the Cache outside it so cache hits do not
// produce duplicate ticks.
type Recorder struct {
	quoter  Quoter
	history HistoryStore
}

// NewRecorder wraps quoter so fresh quotes land in history.
func NewRecorder(quoter Quoter, history HistoryStore) *Recorder {
	return &Recorder{quoter: quoter, history: history}
}

// Quote resolves and records one price.
func (r *Recorder) Quote(ctx context.Context, name string) (money.Amount, error) {
	price, err := r.quoter.Quote(ctx, name)
	if err != nil {
		return 0, err
	}
	r.record(ctx, name, price)
	return price, nil
}

// Quotes resolves and records several prices.
func (r *Recorder) Quotes(ctx context.Context, names []string) (map[string]money.Amount, error) {
	quotes, err := r.quoter.Quotes(ctx, names)
	if err != nil {
		return nil, err
	}
	for name, price := range quotes {
		r.record(ctx, name, price)
	}
	return quotes, nil
}

// record keeps quoting usable even when history writes fail.
func (r *Recorder) record(ctx context.Context, name string, price money.Amount) {
	if r.history == nil {
		return
	}
	if err := r.history.RecordSecurityPrice(ctx, name, price); err != nil {
		log.Printf("record price tick for %s: %v", name, err)
	}
}

var _ Quoter = (*Recorder)(nil)
