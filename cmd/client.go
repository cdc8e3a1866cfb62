package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/table-sniper/internal/prefs"
)

// The client subcommands are thin wrappers over the daemon's control
// API, for driving a local instance from a shell.

type apiEnvelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func callAPI(addr, method, path string, body any) (json.RawMessage, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequest(method, addr+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	if !env.OK {
		return nil, fmt.Errorf("%s %s: %s", method, path, env.Error)
	}
	return env.Result, nil
}

func printResult(raw json.RawMessage) error {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, out.String())
	return nil
}

func addrFlag(c *cobra.Command) *string {
	return c.Flags().String("addr", "http://localhost:8080", "daemon base URL")
}

type prefsFlags struct {
	tabID       string
	party       int
	date        string
	clock       string
	mode        string
	dates       []string
	radius      int
	drop        string
	offsetMs    int
	autoRefresh bool
	maxRefresh  int
}

func (f *prefsFlags) register(c *cobra.Command, withDrop bool) {
	c.Flags().StringVar(&f.tabID, "tab", "", "DevTools target ID of the booking tab")
	c.Flags().IntVar(&f.party, "party", 2, "party size")
	c.Flags().StringVar(&f.date, "date", "", "primary date (YYYY-MM-DD)")
	c.Flags().StringVar(&f.clock, "time", "19:00", "target time (HH:MM, 24-hour)")
	c.Flags().StringVar(&f.mode, "mode", "single", "date selection mode: single, explicit-set or range-scan")
	c.Flags().StringSliceVar(&f.dates, "dates", nil, "explicit candidate dates (YYYY-MM-DD)")
	c.Flags().IntVar(&f.radius, "radius", 0, "range-scan radius in days")
	c.Flags().BoolVar(&f.autoRefresh, "auto-refresh", false, "reload and retry when no slots are shown")
	c.Flags().IntVar(&f.maxRefresh, "max-refresh", 3, "refresh attempt ceiling")
	_ = c.MarkFlagRequired("tab")
	_ = c.MarkFlagRequired("date")
	if withDrop {
		c.Flags().StringVar(&f.drop, "drop", "", "drop time (RFC3339)")
		c.Flags().IntVar(&f.offsetMs, "offset-ms", 0, "fire this many ms before the drop (negative fires after)")
		_ = c.MarkFlagRequired("drop")
	}
}

func (f *prefsFlags) preferences() (prefs.Preferences, error) {
	p := prefs.Preferences{
		PartySize:          f.party,
		PrimaryDate:        f.date,
		PrimaryTime:        f.clock,
		DateSelectionMode:  prefs.DateSelectionMode(f.mode),
		ExplicitDates:      f.dates,
		ScanRadiusDays:     f.radius,
		SearchOffsetMs:     f.offsetMs,
		AutoRefreshOnEmpty: f.autoRefresh,
		MaxRefreshAttempts: f.maxRefresh,
	}
	if f.drop != "" {
		drop, err := time.Parse(time.RFC3339, f.drop)
		if err != nil {
			return prefs.Preferences{}, fmt.Errorf("--drop must be RFC3339: %w", err)
		}
		p.DropTime = drop
	}
	return p, nil
}

type scheduleBody struct {
	Preferences prefs.Preferences `json:"preferences"`
	TabID       string            `json:"tabId"`
}

func newScheduleCmd() *cobra.Command {
	var f prefsFlags
	c := &cobra.Command{
		Use:   "schedule",
		Short: "Arm a timer to fill the booking form at the drop time",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			p, err := f.preferences()
			if err != nil {
				return err
			}
			raw, err := callAPI(addr, http.MethodPost, "/api/schedule", scheduleBody{Preferences: p, TabID: f.tabID})
			if err != nil {
				return err
			}
			return printResult(raw)
		},
	}
	addrFlag(c)
	f.register(c, true)
	return c
}

func newCancelCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the pending timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			raw, err := callAPI(addr, http.MethodPost, "/api/cancel", nil)
			if err != nil {
				return err
			}
			return printResult(raw)
		},
	}
	addrFlag(c)
	return c
}

func newStatusCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "status",
		Short: "Show the current timer and last attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			raw, err := callAPI(addr, http.MethodGet, "/api/status", nil)
			if err != nil {
				return err
			}
			return printResult(raw)
		},
	}
	addrFlag(c)
	return c
}

func newFillCmd() *cobra.Command {
	var f prefsFlags
	c := &cobra.Command{
		Use:   "fill",
		Short: "Fill and submit the booking form right now",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			p, err := f.preferences()
			if err != nil {
				return err
			}
			raw, err := callAPI(addr, http.MethodPost, "/api/fill-now", scheduleBody{Preferences: p, TabID: f.tabID})
			if err != nil {
				return err
			}
			return printResult(raw)
		},
	}
	addrFlag(c)
	f.register(c, false)
	return c
}

func newTabsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "tabs",
		Short: "List attachable browser tabs",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			raw, err := callAPI(addr, http.MethodGet, "/api/tabs", nil)
			if err != nil {
				return err
			}
			return printResult(raw)
		},
	}
	addrFlag(c)
	return c
}
