// Команда loadtest создаёт нагрузку на REST API сервиса заказов и печатает сводку задержек.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

type loadMode string

const (
	modeCreate        loadMode = "create"
	modeCreateConfirm loadMode = "create-confirm"
	modeCreateCancel  loadMode = "create-cancel-delete"
)

type config struct {
	baseURL     string
	total       int
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	price       string
	quantity    int
	outputPath  string
}

func parseConfig(fs *flag.FlagSet, args []string) (config, error) {
	var (
		cfg  config
		mode string
	)
	fs.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "order service base URL")
	fs.IntVar(&cfg.total, "total", 400, "scenarios to run; with -duration acts as an upper bound (0 = unbounded)")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 1m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent scenarios")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.StringVar(&mode, "mode", string(modeCreate), "load mode: create | create-confirm | create-cancel-delete")
	fs.StringVar(&cfg.price, "price", "19.99", "price of the seeded product")
	fs.IntVar(&cfg.quantity, "quantity", 1, "quantity per order")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	switch loadMode(strings.TrimSpace(mode)) {
	case modeCreate, modeCreateConfirm, modeCreateCancel:
		cfg.mode = loadMode(strings.TrimSpace(mode))
	default:
		return cfg, fmt.Errorf("unsupported mode: %s", mode)
	}

	switch {
	case strings.TrimSpace(cfg.baseURL) == "":
		return cfg, errors.New("url is required")
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.total < 0:
		return cfg, errors.New("total must be >= 0")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.quantity <= 0:
		return cfg, errors.New("quantity must be > 0")
	}
	return cfg, nil
}

func main() {
	cfg, err := parseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	result, err := run(context.Background(), cfg, &http.Client{Timeout: cfg.timeout})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

// run заводит клиента и товар, затем прогоняет сценарии с ограничением параллелизма.
func run(ctx context.Context, cfg config, httpClient *http.Client) (report, error) {
	col := newCollector()
	client := &apiClient{baseURL: cfg.baseURL, http: httpClient, col: col}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())

	customerID, err := client.createCustomer(ctx, fmt.Sprintf("load-%s@example.com", runID))
	if err != nil {
		return report{}, fmt.Errorf("seed customer: %w", err)
	}
	productID, err := client.createProduct(ctx, "load-"+runID, cfg.price)
	if err != nil {
		return report{}, fmt.Errorf("seed product: %w", err)
	}

	if cfg.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.duration)
		defer cancel()
	}

	var g errgroup.Group
	g.SetLimit(cfg.concurrency)
	for i := 0; cfg.total == 0 || i < cfg.total; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			runScenario(ctx, client, cfg.mode, customerID, productID, cfg.quantity)
			return nil
		})
	}
	_ = g.Wait()

	return col.buildReport(startedAt, time.Since(startedAt)), nil
}

// runScenario выполняет один сценарий и учитывает его как отдельную операцию "scenario".
func runScenario(ctx context.Context, client *apiClient, mode loadMode, customerID, productID int64, qty int) {
	started := time.Now()
	err := scenarioSteps(ctx, client, mode, customerID, productID, qty)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return
	}
	client.col.record(scenarioKey, time.Since(started), 0, err == nil)
}

func scenarioSteps(ctx context.Context, client *apiClient, mode loadMode, customerID, productID int64, qty int) error {
	orderID, err := client.createOrder(ctx, customerID, productID, qty)
	if err != nil {
		return err
	}
	switch mode {
	case modeCreateConfirm:
		return client.updateStatus(ctx, orderID, "CONFIRMED")
	case modeCreateCancel:
		if err := client.updateStatus(ctx, orderID, "CANCELLED"); err != nil {
			return err
		}
		return client.deleteOrder(ctx, orderID)
	default:
		return nil
	}
}
