package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"council/internal/config"
	"council/internal/execution"
)

type StartupSummary struct {
	Members    []string
	Chairman   string
	Providers  int
	Accounts   []AccountSummary
	Broker     string
	RetryDelay float64
	EventsDB   string
	JobsDB     string
	HTTPAddr   string
}

type AccountSummary struct {
	Name     string
	Baseline bool
	Quantity string
	Step     string
}

func newSummary(cfg *config.Config, providers int, reg *execution.Registry) *StartupSummary {
	s := &StartupSummary{
		Members:    append([]string(nil), cfg.Council.Members...),
		Chairman:   cfg.Council.Chairman,
		Providers:  providers,
		Broker:     cfg.Execution.Broker,
		RetryDelay: cfg.Execution.RetryDelaySeconds,
		EventsDB:   cfg.Store.EventsDB,
		JobsDB:     cfg.Store.JobsDB,
		HTTPAddr:   cfg.App.HTTPAddr,
	}
	for _, a := range reg.Accounts() {
		s.Accounts = append(s.Accounts, AccountSummary{
			Name:     a.Name,
			Baseline: a.Baseline,
			Quantity: a.BaseQuantity.String(),
			Step:     a.QuantityStep.String(),
		})
	}
	return s
}

func (s *StartupSummary) Print() { s.Fprint(os.Stdout) }

func (s *StartupSummary) Fprint(w io.Writer) {
	rule := strings.Repeat("=", 80)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%*s\n", 40+len("STARTUP SUMMARY")/2, "STARTUP SUMMARY")
	fmt.Fprintln(w, rule)

	fmt.Fprintln(w, "[COUNCIL]")
	fmt.Fprintf(w, "  members:   %s\n", formatList(s.Members))
	fmt.Fprintf(w, "  chairman:  %s\n", s.Chairman)
	fmt.Fprintf(w, "  providers: %d\n", s.Providers)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[ACCOUNTS]")
	if len(s.Accounts) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, a := range s.Accounts {
		if a.Baseline {
			fmt.Fprintf(w, "  > %s (baseline, never traded)\n", a.Name)
			continue
		}
		fmt.Fprintf(w, "  > %s qty=%s step=%s\n", a.Name, a.Quantity, a.Step)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[EXECUTION]")
	fmt.Fprintf(w, "  broker: %s  retry_delay: %gs\n", s.Broker, s.RetryDelay)
	fmt.Fprintf(w, "  events: %s  jobs: %s\n", orDash(s.EventsDB), orDash(s.JobsDB))
	fmt.Fprintf(w, "  http:   %s\n", s.HTTPAddr)
	fmt.Fprintln(w, rule)
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
