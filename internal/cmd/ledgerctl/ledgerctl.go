// Package ledgerctl is the operator CLI for the ledger database: balances,
// portfolios, price history, maintenance passes, and auth token minting.
package ledgerctl

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/louisbranch/papertrade.space/internal/platform/authtoken"
	entrypoint "github.com/louisbranch/papertrade.space/internal/platform/cmd"
	"github.com/louisbranch/papertrade.space/internal/platform/money"
	"github.com/louisbranch/papertrade.space/internal/platform/texttable"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/domain"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/service"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/storage/sqlite"
	"github.com/louisbranch/papertrade.space/internal/services/pricing"
)

// Config holds ledgerctl command configuration.
type Config struct {
	DBPath              string `env:"PAPERTRADE_DB_PATH" envDefault:"data/ledger.db"`
	AlphaVantageKey     string `env:"PAPERTRADE_ALPHAVANTAGE_API_KEY"`
	AlphaVantageBaseURL string `env:"PAPERTRADE_ALPHAVANTAGE_BASE_URL"`
	AuthSecret          string `env:"PAPERTRADE_AUTH_SECRET"`
	AuthIssuer          string `env:"PAPERTRADE_AUTH_ISSUER" envDefault:"papertrade"`

	StartingBalanceCents int64 `env:"PAPERTRADE_STARTING_BALANCE_CENTS" envDefault:"100000"`
	WeeklyAllowanceCents int64 `env:"PAPERTRADE_WEEKLY_ALLOWANCE_CENTS" envDefault:"10000"`
	AllowanceWindowDays  int   `env:"PAPERTRADE_ALLOWANCE_WINDOW_DAYS" envDefault:"7"`

	UserID      string
	ToUserID    string
	Security    string
	Quantity    int64
	AmountCents int64

	// Command is the positional subcommand.
	Command string
}

// Usage describes the available subcommands.
const Usage = `usage: ledgerctl [flags] <command>

commands:
  balance          print a user's available funds (-user)
  portfolio        print a user's holdings valued at current prices (-user)
  snapshots        print a user's snapshot history with today's valuation (-user)
  buy              buy shares at the current price (-user, -security, -quantity)
  sell             sell shares at the current price (-user, -security, -quantity)
  gift             move funds between users (-user, -to, -amount-cents)
  price            print the current price of a security (-security)
  history          print recorded price ticks for a security (-security)
  grant-allowances credit the weekly allowance to eligible users
  take-snapshots   record today's portfolio snapshot for every user
  mint-token       print a bearer token for a user (-user, auth secret required)
`

// ParseConfig parses environment, flags, and the positional subcommand.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "ledger SQLite database path")
	fs.StringVar(&cfg.AlphaVantageKey, "alphavantage-key", cfg.AlphaVantageKey, "Alpha Vantage API key")
	fs.StringVar(&cfg.AuthSecret, "auth-secret", cfg.AuthSecret, "bearer token secret")
	fs.StringVar(&cfg.UserID, "user", "", "Discord user id")
	fs.StringVar(&cfg.ToUserID, "to", "", "gift recipient Discord user id")
	fs.StringVar(&cfg.Security, "security", "", "security symbol")
	fs.Int64Var(&cfg.Quantity, "quantity", 0, "share quantity for buy and sell")
	fs.Int64Var(&cfg.AmountCents, "amount-cents", 0, "gift amount in cents")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.Command = fs.Arg(0)
	if cfg.Command == "" {
		return Config{}, fmt.Errorf("a command is required\n\n%s", Usage)
	}
	return cfg, nil
}

// Run dispatches the subcommand.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if cfg.Command == "mint-token" {
		return mintToken(cfg, out)
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	defer store.Close()

	var upstream pricing.Quoter
	if strings.TrimSpace(cfg.AlphaVantageBaseURL) != "" {
		upstream = pricing.NewAlphaVantageWithBaseURL(cfg.AlphaVantageKey, cfg.AlphaVantageBaseURL)
	} else {
		upstream = pricing.NewAlphaVantage(cfg.AlphaVantageKey)
	}
	svc := service.New(store, pricing.NewRecorder(upstream, store), service.Config{
		StartingBalance:     money.FromCents(cfg.StartingBalanceCents),
		WeeklyAllowance:     money.FromCents(cfg.WeeklyAllowanceCents),
		AllowanceWindowDays: cfg.AllowanceWindowDays,
	})

	switch cfg.Command {
	case "balance":
		if err := requireUser(cfg); err != nil {
			return err
		}
		balance, err := svc.Balance(ctx, cfg.UserID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", balance)
		return nil
	case "portfolio":
		if err := requireUser(cfg); err != nil {
			return err
		}
		entries, err := svc.Portfolio(ctx, cfg.UserID)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, renderPortfolio(entries))
		return nil
	case "snapshots":
		if err := requireUser(cfg); err != nil {
			return err
		}
		snapshots, err := svc.Snapshots(ctx, cfg.UserID)
		if err != nil {
			return err
		}
		for _, snapshot := range snapshots {
			fmt.Fprintf(out, "%s  %s\n", snapshot.CreatedAt.Format("2006-01-02"), snapshot.NetBalance())
		}
		return nil
	case "buy", "sell":
		if err := requireUser(cfg); err != nil {
			return err
		}
		req := service.CreateOrderRequest{
			UserID:       cfg.UserID,
			SecurityName: cfg.Security,
			Quantity:     cfg.Quantity,
		}
		var order domain.Order
		if cfg.Command == "buy" {
			order, err = svc.Buy(ctx, req)
		} else {
			order, err = svc.Sell(ctx, req)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %d %s at %s for %s\n",
			order.Type, order.Quantity, order.SecurityName,
			order.SecurityPrice, order.SecurityPrice.Mul(order.Quantity))
		return nil
	case "gift":
		if err := requireUser(cfg); err != nil {
			return err
		}
		if err := svc.Gift(ctx, cfg.UserID, cfg.ToUserID, money.FromCents(cfg.AmountCents)); err != nil {
			return err
		}
		fmt.Fprintf(out, "gifted %s to @%s\n", money.FromCents(cfg.AmountCents), cfg.ToUserID)
		return nil
	case "price":
		if strings.TrimSpace(cfg.Security) == "" {
			return fmt.Errorf("-security is required")
		}
		price, err := svc.SecurityPrice(ctx, cfg.Security)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", price)
		return nil
	case "history":
		if strings.TrimSpace(cfg.Security) == "" {
			return fmt.Errorf("-security is required")
		}
		points, err := svc.SecurityPriceHistory(ctx, cfg.Security)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, renderHistory(points))
		return nil
	case "grant-allowances":
		return svc.GrantAllowances(ctx)
	case "take-snapshots":
		return svc.TakeSnapshots(ctx)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cfg.Command, Usage)
	}
}

func requireUser(cfg Config) error {
	if strings.TrimSpace(cfg.UserID) == "" {
		return fmt.Errorf("-user is required")
	}
	return nil
}

func mintToken(cfg Config, out io.Writer) error {
	if err := requireUser(cfg); err != nil {
		return err
	}
	minter, err := authtoken.New([]byte(cfg.AuthSecret), cfg.AuthIssuer, 0, nil)
	if err != nil {
		return fmt.Errorf("configure auth tokens: %w", err)
	}
	token, err := minter.Mint(cfg.UserID)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

// renderPortfolio draws holdings with a stacked totals row, matching widths
// so the two tables share their divider.
func renderPortfolio(entries []domain.PortfolioEntry) string {
	if len(entries) == 0 {
		return "no holdings"
	}

	holdings := texttable.New([]texttable.Column[domain.PortfolioEntry]{
		{Header: "Name", Format: func(e domain.PortfolioEntry) string { return e.SecurityName }},
		{Header: "Qty", Format: func(e domain.PortfolioEntry) string { return fmt.Sprintf("%d", e.Quantity) }},
		{Header: "Paid", Format: func(e domain.PortfolioEntry) string { return e.TotalPricePaid.String() }},
		{Header: "Value", Format: func(e domain.PortfolioEntry) string { return e.Balance.String() }},
		{Header: "Return", Format: func(e domain.PortfolioEntry) string { return fmt.Sprintf("%+.2f%%", e.ReturnRate) }},
	}, entries, true)

	var total money.Amount
	for _, entry := range entries {
		total = total.Add(entry.Balance)
	}
	totalText := total.String()

	// Two columns: a padded label and the total, sized so both tables have
	// the same rendered width.
	labelWidth := holdings.Width() - 7 - len([]rune(totalText))
	if labelWidth < len("Total") {
		return texttable.Render(holdings) + "\nTotal: " + totalText
	}
	totals := texttable.New([]texttable.Column[string]{
		{Header: strings.Repeat(" ", labelWidth), Format: func(string) string { return "Total" }},
		{Header: strings.Repeat(" ", len([]rune(totalText))), Format: func(value string) string { return value }},
	}, []string{totalText}, false)

	return texttable.Render(holdings, totals)
}

func renderHistory(points []domain.PricePoint) string {
	if len(points) == 0 {
		return "no recorded prices"
	}
	table := texttable.New([]texttable.Column[domain.PricePoint]{
		{Header: "Time", Format: func(p domain.PricePoint) string { return p.CreatedAt.Format(time.DateTime) }},
		{Header: "Price", Format: func(p domain.PricePoint) string { return p.Price.String() }},
	}, points, true)
	return texttable.Render(table)
}
