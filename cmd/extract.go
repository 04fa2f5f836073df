package main

import (
	"bufio"
	"encoding/json"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/grupomas/invoice-cli/internal/model"
)

var (
	extractAccountsFile string
	extractDateFrom     string
	extractDateTo       string
	extractOutput       string
)

var (
	cupsPattern = regexp.MustCompile(`^ES[A-Z0-9]{20}$`)
	datePattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
)

var extractCmd = &cobra.Command{
	Use:   "extract [CUPS...]",
	Short: "Run the extraction batch for a list of supply points",
	Long:  "Authenticates once, then searches, extracts and reconciles invoices for every CUPS in input order. Accounts are taken from arguments or from --accounts-file, one per line.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		accounts, err := collectAccounts(args, extractAccountsFile)
		if err != nil {
			return err
		}
		if err := validateDates(extractDateFrom, extractDateTo); err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}

		result, err := env.Orchestrator.Run(ctx, accounts, extractDateFrom, extractDateTo)
		if err != nil {
			return err
		}

		return writeResult(result, extractOutput)
	},
}

// collectAccounts merges argument and file CUPS lists, preserving order, and
// validates each one.
func collectAccounts(args []string, file string) ([]string, error) {
	accounts := append([]string{}, args...)

	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, eris.Wrap(err, "open accounts file")
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			accounts = append(accounts, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, eris.Wrap(err, "read accounts file")
		}
	}

	if len(accounts) == 0 {
		return nil, eris.New("no accounts given: pass CUPS arguments or --accounts-file")
	}
	for _, a := range accounts {
		if !cupsPattern.MatchString(a) {
			return nil, eris.Errorf("invalid CUPS %q: want ES followed by 20 alphanumerics", a)
		}
	}
	return accounts, nil
}

func validateDates(from, to string) error {
	if !datePattern.MatchString(from) {
		return eris.Errorf("invalid --from date %q: want DD/MM/YYYY", from)
	}
	if !datePattern.MatchString(to) {
		return eris.Errorf("invalid --to date %q: want DD/MM/YYYY", to)
	}
	return nil
}

// writeResult emits the batch result as JSON to stdout or a file.
func writeResult(result *model.BatchResult, output string) error {
	out := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return eris.Wrap(err, "create output file")
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return eris.Wrap(err, "encode batch result")
	}

	zap.L().Info("extraction complete",
		zap.String("run_id", result.RunID),
		zap.Int("records", len(result.Records)),
		zap.Int("accounts_ok", result.AccountsOK),
		zap.Int("accounts_empty", result.AccountsEmpty),
		zap.Int("accounts_errored", result.AccountsErrored),
	)
	return nil
}

func init() {
	extractCmd.Flags().StringVar(&extractAccountsFile, "accounts-file", "", "file with one CUPS per line")
	extractCmd.Flags().StringVar(&extractDateFrom, "from", "", "start of the billing date range (DD/MM/YYYY)")
	extractCmd.Flags().StringVar(&extractDateTo, "to", "", "end of the billing date range (DD/MM/YYYY)")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "write the batch result JSON to a file instead of stdout")
	_ = extractCmd.MarkFlagRequired("from")
	_ = extractCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(extractCmd)
}
