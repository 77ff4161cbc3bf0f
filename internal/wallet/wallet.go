package wallet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vidinsight/client/internal/logging"
	"github.com/vidinsight/client/internal/metrics"
	"github.com/vidinsight/client/internal/models"
	"github.com/vidinsight/client/internal/querycache"
)

// DefaultCostPerVideo is the credit price of one submission.
const DefaultCostPerVideo = 6

const creditsKey = "credits"

// ErrInvalidFilter indicates an unknown transaction type or period.
var ErrInvalidFilter = errors.New("invalid transaction filter")

// API fetches the credits page.
type API interface {
	Credits(ctx context.Context) (models.CreditsPage, error)
}

// Options configures a Service.
type Options struct {
	StaleTime    time.Duration
	CostPerVideo int
	Metrics      metrics.Recorder
	// OnBalance receives the balance after every successful fetch.
	OnBalance func(credits int)
}

// Service caches the credits page. The balance is only ever taken from the
// server; nothing here adjusts it locally.
type Service struct {
	api   API
	opts  Options
	cache *querycache.Cache[models.CreditsPage]
}

// NewService constructs a Service with a 30s stale time and a cost of six
// credits per video unless overridden.
func NewService(api API, opts Options) *Service {
	if api == nil {
		panic("wallet: api must not be nil")
	}
	if opts.StaleTime <= 0 {
		opts.StaleTime = 30 * time.Second
	}
	if opts.CostPerVideo <= 0 {
		opts.CostPerVideo = DefaultCostPerVideo
	}
	return &Service{
		api:   api,
		opts:  opts,
		cache: querycache.New[models.CreditsPage]("credits", opts.Metrics),
	}
}

// GetCredits returns the balance and transaction history.
func (s *Service) GetCredits(ctx context.Context) (models.CreditsPage, error) {
	return s.cache.Fetch(ctx, creditsKey, s.opts.StaleTime, func(ctx context.Context) (models.CreditsPage, error) {
		ctx, span := logging.StartSpan(ctx, "wallet.credits")
		defer span.End()

		page, err := s.api.Credits(ctx)
		if err != nil {
			span.Fail(err)
			return models.CreditsPage{}, fmt.Errorf("get credits: %w", err)
		}
		if s.opts.OnBalance != nil {
			s.opts.OnBalance(page.Credits)
		}
		return page, nil
	})
}

// Invalidate forces the next GetCredits to refetch, e.g. after a submission.
func (s *Service) Invalidate() {
	s.cache.Invalidate(creditsKey)
}

// InvalidateAll marks the whole wallet cache stale, e.g. on sign-out.
func (s *Service) InvalidateAll() {
	s.cache.InvalidateAll()
}

// Summary fetches the credits page and summarizes it.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	page, err := s.GetCredits(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(page, s.opts.CostPerVideo), nil
}

// Summary is the derived wallet overview.
type Summary struct {
	Credits                  int
	TotalPurchased           int
	TotalUsed                int
	EstimatedSubmissionsLeft int
	LastTransactionAt        *time.Time
}

// Summarize derives totals from page. Amounts are counted by magnitude so
// sign conventions of the backend do not matter.
func Summarize(page models.CreditsPage, costPerVideo int) Summary {
	if costPerVideo <= 0 {
		costPerVideo = DefaultCostPerVideo
	}
	out := Summary{
		Credits:                  page.Credits,
		EstimatedSubmissionsLeft: int(math.Floor(float64(page.Credits)/float64(costPerVideo) + 0.5)),
	}
	for _, tx := range page.Transactions {
		switch tx.Type {
		case models.TransactionPurchase:
			out.TotalPurchased += abs(tx.Amount)
		case models.TransactionSpend:
			out.TotalUsed += abs(tx.Amount)
		}
	}
	if len(page.Transactions) > 0 {
		at := page.Transactions[0].CreatedAt
		out.LastTransactionAt = &at
	}
	return out
}

// Period bounds the age of listed transactions.
type Period string

const (
	PeriodAll    Period = "all"
	Period30Days Period = "30days"
)

// Filter selects transactions by type and period. An empty Type means all.
type Filter struct {
	Type   string
	Period Period
}

// ParseFilter validates user-supplied filter values.
func ParseFilter(txType, period string) (Filter, error) {
	txType = strings.ToLower(strings.TrimSpace(txType))
	period = strings.ToLower(strings.TrimSpace(period))
	if txType == "" {
		txType = "all"
	}
	if period == "" {
		period = string(PeriodAll)
	}

	switch models.TransactionType(txType) {
	case models.TransactionSpend, models.TransactionPurchase, models.TransactionRefund:
	default:
		if txType != "all" {
			return Filter{}, fmt.Errorf("%w: type %q", ErrInvalidFilter, txType)
		}
	}
	switch Period(period) {
	case PeriodAll, Period30Days:
	default:
		return Filter{}, fmt.Errorf("%w: period %q", ErrInvalidFilter, period)
	}
	return Filter{Type: txType, Period: Period(period)}, nil
}

// Apply returns the transactions matching f relative to now, preserving order.
func (f Filter) Apply(transactions []models.Transaction, now time.Time) []models.Transaction {
	cutoff := now.AddDate(0, 0, -30)
	out := make([]models.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if f.Type != "" && f.Type != "all" && string(tx.Type) != f.Type {
			continue
		}
		if f.Period == Period30Days && tx.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// FormatAmount renders a signed credit amount, e.g. "+25", "+0" or "-5".
func FormatAmount(amount int) string {
	if amount >= 0 {
		return "+" + strconv.Itoa(amount)
	}
	return strconv.Itoa(amount)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
