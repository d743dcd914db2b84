package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Reporter writes replay results to disk and to the console.
type Reporter struct {
	results    *Results
	outputPath string
}

func NewReporter(results *Results, outputPath string) *Reporter {
	return &Reporter{results: results, outputPath: outputPath}
}

// Write generates the summary and the trade log under the output path.
func (r *Reporter) Write() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := r.writeSummary(); err != nil {
		return err
	}
	return r.writeTradeLog()
}

func (r *Reporter) writeSummary() error {
	path := filepath.Join(r.outputPath, "replay_summary.txt")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary file: %w", err)
	}
	defer file.Close()

	res := r.results
	fmt.Fprintf(file, "REPLAY RESULTS\n")
	fmt.Fprintf(file, "==============\n\n")
	fmt.Fprintf(file, "Symbol: %s\n", res.Symbol)
	fmt.Fprintf(file, "Strategy: %s\n", res.Strategy)
	if !res.From.IsZero() {
		fmt.Fprintf(file, "Period: %s to %s\n",
			res.From.Format("2006-01-02 15:04:05"),
			res.To.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(file, "Snapshots: %d\n\n", res.Snapshots)

	fmt.Fprintf(file, "SIGNAL FLOW\n")
	fmt.Fprintf(file, "-----------\n")
	fmt.Fprintf(file, "Signals: %d\n", res.Signals)
	fmt.Fprintf(file, "Approved: %d\n", res.Approved)
	fmt.Fprintf(file, "Rejected: %d\n", res.Rejected)
	fmt.Fprintf(file, "Filled: %d\n", res.Filled)
	fmt.Fprintf(file, "Unfilled: %d\n\n", res.Unfilled)

	fmt.Fprintf(file, "PERFORMANCE\n")
	fmt.Fprintf(file, "-----------\n")
	fmt.Fprintf(file, "Initial Equity: %.2f\n", res.InitialEquity)
	fmt.Fprintf(file, "Final Equity: %.2f\n", res.FinalEquity)
	fmt.Fprintf(file, "Fees: %.4f\n", res.Fees)
	fmt.Fprintf(file, "Trades: %d (%d winners, %d losers)\n",
		len(res.Trades), res.WinningTrades, res.LosingTrades)
	fmt.Fprintf(file, "Win Rate: %.2f%%\n", res.WinRate*100)
	fmt.Fprintf(file, "Profit Factor: %.2f\n", res.ProfitFactor)
	fmt.Fprintf(file, "Max Drawdown: %.2f%%\n", res.MaxDrawdown*100)

	log.Info().Str("file", path).Msg("summary written")
	return nil
}

func (r *Reporter) writeTradeLog() error {
	path := filepath.Join(r.outputPath, "trade_log.csv")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trade log: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Time", "Symbol", "Side", "Qty", "Entry", "Exit", "PnL"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, tr := range r.results.Trades {
		record := []string{
			tr.At.Format("2006-01-02 15:04:05"),
			tr.Symbol,
			string(tr.Side),
			fmt.Sprintf("%.8f", tr.Qty),
			fmt.Sprintf("%.8f", tr.EntryPrice),
			fmt.Sprintf("%.8f", tr.ExitPrice),
			fmt.Sprintf("%.8f", tr.PnL),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	log.Info().Str("file", path).Msg("trade log written")
	return nil
}

// PrintSummary prints the headline numbers to the console.
func (r *Reporter) PrintSummary() {
	res := r.results
	fmt.Println("\n=== REPLAY RESULTS ===")
	fmt.Printf("Symbol: %s (%s)\n", res.Symbol, res.Strategy)
	fmt.Printf("Snapshots: %d, Signals: %d, Fills: %d\n", res.Snapshots, res.Signals, res.Filled)
	fmt.Printf("Initial Equity: %.2f\n", res.InitialEquity)
	fmt.Printf("Final Equity: %.2f\n", res.FinalEquity)
	fmt.Printf("Trades: %d, Win Rate: %.2f%%\n", len(res.Trades), res.WinRate*100)
	fmt.Printf("Profit Factor: %.2f\n", res.ProfitFactor)
	fmt.Printf("Max Drawdown: %.2f%%\n", res.MaxDrawdown*100)
	fmt.Println("======================")
}
