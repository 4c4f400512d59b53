package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pos-ticketing/internal/config"
	"pos-ticketing/internal/logger"
	"pos-ticketing/internal/models"
	"pos-ticketing/internal/pos/client"
	"pos-ticketing/internal/pos/queue"
	possync "pos-ticketing/internal/pos/sync"
	"pos-ticketing/internal/pos/terminal"
	"pos-ticketing/internal/tickets/issuer"
)

// probeConnectivity polls the store's base URL and pushes transitions
// onto the returned channel. The sync manager flushes on every
// offline-to-online edge.
func probeConnectivity(ctx context.Context, baseURL string, interval time.Duration) <-chan bool {
	out := make(chan bool, 1)
	go func() {
		defer close(out)
		httpc := &http.Client{Timeout: 2 * time.Second}
		online := false
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				resp, err := httpc.Get(baseURL + "/tickets/events")
				up := err == nil
				if resp != nil {
					resp.Body.Close()
				}
				if up != online {
					online = up
					select {
					case out <- up:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out
}

func main() {
	log := logger.NewLogger("pos-terminal")
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Info("CONFIG", "No .env file found, using environment")
	}
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q, err := queue.Open(cfg.POS.QueuePath)
	if err != nil {
		log.Fatal("QUEUE", fmt.Sprintf("Failed to open offline queue: %v", err))
	}
	defer q.Close()
	if err := q.Init(ctx); err != nil {
		log.Fatal("QUEUE", fmt.Sprintf("Failed to init offline queue: %v", err))
	}

	store := client.New(cfg.POS.StoreURL, cfg.POS.RequestTimeout)
	store.Token = os.Getenv("POS_TOKEN")

	manager := possync.NewManager(q, store, log)
	go manager.Watch(ctx, probeConnectivity(ctx, cfg.POS.StoreURL, 5*time.Second))

	printer, err := terminal.NewReceiptPrinter(getSpoolDir())
	if err != nil {
		log.Fatal("PRINTER", fmt.Sprintf("Failed to set up print spool: %v", err))
	}

	term := terminal.New(issuer.NewEngine(cfg.Venue), store, q, manager, printer, log)

	log.Info("APP", fmt.Sprintf("POS terminal ready, operator %s, store %s", cfg.POS.OperatorName, cfg.POS.StoreURL))
	runPrompt(ctx, term, cfg, log)
}

func getSpoolDir() string {
	if dir := os.Getenv("POS_PRINT_DIR"); dir != "" {
		return dir
	}
	return "print-spool"
}

// runPrompt reads counter commands from stdin. A real deployment drives
// the terminal from a touch UI; the prompt exercises the same paths.
func runPrompt(ctx context.Context, term *terminal.Terminal, cfg *config.Config, log *logger.Logger) {
	fmt.Println("Commands: sell <price> <qty> [mobile] | combo <price> [mobile] | scan <qr> | pending | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "sell", "combo":
			cart, mobile, err := parseSale(fields)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			sale := issuer.IssueContext{
				Mobile:      mobile,
				PaymentMode: models.PaymentCash,
				Operator:    cfg.POS.OperatorName,
			}
			batch, err := term.Sell(ctx, cart, sale)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Printf("issued %s: %d ticket(s), total %d\n", batch.Master.ID, len(batch.SubTickets), batch.Master.Amount)

		case "scan":
			if len(fields) < 2 {
				fmt.Println("usage: scan <qr-payload>")
				continue
			}
			result, err := term.Scan(ctx, fields[1])
			if err != nil {
				fmt.Println("rejected:", err)
				continue
			}
			note := ""
			if result.Unsynced {
				note = " (offline, provisional)"
			}
			fmt.Printf("redeemed %s%s\n", result.Ticket.ID, note)

		case "pending":
			n, err := term.PendingCount(ctx)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Printf("%d batch(es) waiting for sync\n", n)

		case "quit", "exit":
			return

		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

func parseSale(fields []string) ([]models.LineItem, string, error) {
	if len(fields) < 2 {
		return nil, "", fmt.Errorf("usage: %s <price> [qty] [mobile]", fields[0])
	}
	var price int
	if _, err := fmt.Sscanf(fields[1], "%d", &price); err != nil {
		return nil, "", fmt.Errorf("bad price %q", fields[1])
	}

	item := models.LineItem{Name: "Ride Ticket", UnitPrice: price, Quantity: 1}
	mobileIdx := 2
	if fields[0] == "combo" {
		item.Name = "Combo Pack"
		item.IsCombo = true
		item.ProductID = "combo"
	} else {
		item.ProductID = "ride"
		if len(fields) >= 3 {
			if _, err := fmt.Sscanf(fields[2], "%d", &item.Quantity); err != nil {
				return nil, "", fmt.Errorf("bad quantity %q", fields[2])
			}
			mobileIdx = 3
		}
	}

	mobile := ""
	if len(fields) > mobileIdx {
		mobile = fields[mobileIdx]
	}
	return []models.LineItem{item}, mobile, nil
}
