package terminal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pos-ticketing/internal/tickets/issuer"
	"pos-ticketing/internal/tickets/qr"
)

// Printer renders an issued batch for the customer. Printing happens
// before any network round trip, a dead link must never hold up the
// hand-over of tickets.
type Printer interface {
	PrintBatch(batch *issuer.Batch) error
}

// ReceiptPrinter writes a plain-text receipt plus one QR PNG per
// scannable ticket into a spool directory. A real thermal printer
// daemon watches the directory; for development the files are the
// receipt.
type ReceiptPrinter struct {
	Dir string
}

func NewReceiptPrinter(dir string) (*ReceiptPrinter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create print spool directory: %w", err)
	}
	return &ReceiptPrinter{Dir: dir}, nil
}

func (p *ReceiptPrinter) PrintBatch(batch *issuer.Batch) error {
	receipt := renderReceipt(batch)
	base := filepath.Join(p.Dir, batch.Master.ID)

	if err := os.WriteFile(base+".txt", []byte(receipt), 0o644); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	for _, t := range batch.SubTickets {
		png, err := qr.Encode(t.ID)
		if err != nil {
			return fmt.Errorf("failed to encode QR for %s: %w", t.ID, err)
		}
		if err := os.WriteFile(base+"-"+qrSuffix(t.ID)+".png", png, 0o644); err != nil {
			return fmt.Errorf("failed to write QR image: %w", err)
		}
	}
	return nil
}

func qrSuffix(ticketID string) string {
	if i := strings.LastIndex(ticketID, "-"); i >= 0 {
		return ticketID[i+1:]
	}
	return ticketID
}

func renderReceipt(batch *issuer.Batch) string {
	m := batch.Master
	var b strings.Builder
	b.WriteString("================================\n")
	b.WriteString("        GAME ZONE RECEIPT\n")
	b.WriteString("================================\n")
	fmt.Fprintf(&b, "Txn:     %s\n", m.ID)
	fmt.Fprintf(&b, "Date:    %s\n", m.Date)
	fmt.Fprintf(&b, "Time:    %s\n", m.CreatedAt.Format("15:04:05"))
	fmt.Fprintf(&b, "Cashier: %s\n", m.CreatedBy)
	fmt.Fprintf(&b, "Payment: %s\n", m.PaymentMode)
	if m.Mobile != "" {
		fmt.Fprintf(&b, "Mobile:  %s\n", m.Mobile)
	}
	b.WriteString("--------------------------------\n")
	for _, item := range m.Items {
		fmt.Fprintf(&b, "%-20s %2d x %4d\n", item.Name, item.Quantity, item.Price)
	}
	b.WriteString("--------------------------------\n")
	fmt.Fprintf(&b, "TOTAL: %d\n", m.Amount)
	fmt.Fprintf(&b, "Tickets issued: %d\n", len(batch.SubTickets))
	for _, t := range batch.SubTickets {
		kind := "RIDE  "
		if t.IsCoupon {
			kind = "COUPON"
		}
		fmt.Fprintf(&b, "  %s %s (%d)\n", kind, t.ID, t.Amount)
	}
	b.WriteString("Valid today only.\n")
	b.WriteString("================================\n")
	return b.String()
}
