// Command onboard drives a parish registration against a running
// parishd instance from the terminal.
//
// Usage:
//
//	onboard -url http://localhost:8080 -draft parish.json -plan 2
//	onboard -url http://localhost:8080 -list-plans
//
// The draft file is a JSON object with the registration form fields
// (parish_name, admin_email, billing_name, ...). After the wizard
// submits the registration, the checkout options are printed and the
// payment proof is read from stdin.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/luminouslogics/parishd/pkg/onboard"
)

func main() {
	var (
		baseURL   = flag.String("url", envOrDefault("PARISHD_URL", "http://localhost:8080"), "parishd base URL")
		draftPath = flag.String("draft", "", "path to the registration draft JSON file")
		planID    = flag.Int("plan", 0, "subscription plan ID to select")
		listPlans = flag.Bool("list-plans", false, "list available plans and exit")
	)
	flag.Parse()

	client := onboard.NewClient(*baseURL)
	ctx := context.Background()

	if *listPlans {
		if err := printPlans(ctx, client); err != nil {
			fatal(err)
		}
		return
	}

	if *draftPath == "" || *planID <= 0 {
		fmt.Fprintln(os.Stderr, "both -draft and -plan are required (or use -list-plans)")
		flag.Usage()
		os.Exit(1)
	}

	d, err := readDraft(*draftPath)
	if err != nil {
		fatal(err)
	}

	res, err := onboard.Run(ctx, client, d, *planID, &terminalGateway{in: bufio.NewScanner(os.Stdin)})
	if errors.Is(err, onboard.ErrDismissed) {
		fmt.Println("checkout dismissed; the registration stays open for another attempt")
		return
	}
	if err != nil {
		fatal(err)
	}

	if res.Verified {
		fmt.Printf("payment verified: %s\n", res.Message)
		fmt.Printf("continue at %s (redirecting clients after %dms)\n", res.RedirectURL, res.RedirectDelayMS)
	} else {
		fmt.Printf("payment not verified: %s\n", res.Message)
	}
}

func printPlans(ctx context.Context, client *onboard.Client) error {
	sess, err := client.Start(ctx)
	if err != nil {
		return err
	}
	plans, err := client.Plans(ctx, sess.ID, "")
	if err != nil {
		return err
	}
	for _, p := range plans {
		fmt.Printf("%4d  %-12s %-8s %s %s", p.PlanID, p.PlanName, p.BillingCycle, p.Amount, p.Currency)
		if p.TrialPeriodDays > 0 {
			fmt.Printf("  (%d day trial)", p.TrialPeriodDays)
		}
		fmt.Println()
	}
	return nil
}

func readDraft(path string) (onboard.Draft, error) {
	var d onboard.Draft
	data, err := os.ReadFile(path) // #nosec G304 -- path supplied by the operator
	if err != nil {
		return d, fmt.Errorf("read draft: %w", err)
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("parse draft: %w", err)
	}
	return d, nil
}

// terminalGateway prints the checkout options and collects the payment
// proof interactively. Entering an empty payment ID dismisses the
// checkout.
type terminalGateway struct {
	in *bufio.Scanner
}

func (g *terminalGateway) Open(ctx context.Context, opts onboard.CheckoutOptions) (*onboard.PaymentProof, error) {
	fmt.Println("--- hosted checkout ---")
	fmt.Printf("merchant:     %s\n", opts.Name)
	fmt.Printf("description:  %s\n", opts.Description)
	fmt.Printf("subscription: %s\n", opts.SubscriptionID)
	fmt.Printf("key:          %s\n", opts.Key)
	fmt.Println("complete the payment in the gateway, then paste the proof below")

	paymentID := g.prompt("payment id (empty to dismiss): ")
	if paymentID == "" {
		return nil, onboard.ErrDismissed
	}
	signature := g.prompt("signature: ")

	return &onboard.PaymentProof{
		PaymentID:      paymentID,
		SubscriptionID: opts.SubscriptionID,
		Signature:      signature,
	}, nil
}

func (g *terminalGateway) prompt(label string) string {
	fmt.Print(label)
	if !g.in.Scan() {
		return ""
	}
	return strings.TrimSpace(g.in.Text())
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
