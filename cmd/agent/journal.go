package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"stationagent/internal/config"
	"stationagent/internal/dto"
	"stationagent/internal/repository/sqlite"
)

var (
	journalStation string
	journalLimit   int
	pruneOlderThan time.Duration
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect or prune the local capture journal",
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent capture attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeDB, err := openJournal()
		if err != nil {
			return err
		}
		defer closeDB()

		filter := &dto.CaptureFilter{Station: journalStation, Limit: journalLimit}
		records, err := repo.GetAll(filter)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(records)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TIME\tCAMERA\tSTATION\tMANUAL\tSUCCESS\tBYTES\tERROR")
		fmt.Fprintln(w, "----\t------\t-------\t------\t-------\t-----\t-----")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%d\t%s\t%t\t%t\t%d\t%s\n",
				r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.DeviceID, r.Station, r.Manual, r.Success, r.Bytes, r.Error)
		}
		return w.Flush()
	},
}

var journalStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise capture attempts per station",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeDB, err := openJournal()
		if err != nil {
			return err
		}
		defer closeDB()

		stats, err := repo.GetStats()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(stats)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "STATION\tTOTAL\tOK\tFAILED\tMANUAL\tLAST")
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
				s.Station, s.Total, s.Succeeded, s.Failed, s.Manual, s.LastAt.Local().Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete capture attempts older than --older-than",
	RunE: func(cmd *cobra.Command, args []string) error {
		if pruneOlderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		repo, closeDB, err := openJournal()
		if err != nil {
			return err
		}
		defer closeDB()

		n, err := repo.DeleteBefore(time.Now().Add(-pruneOlderThan))
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d capture records older than %v\n", n, pruneOlderThan)
		return nil
	},
}

func openJournal() (*sqlite.CaptureRepository, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	db, err := sqlite.New(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return sqlite.NewCaptureRepository(db), func() { db.Close() }, nil
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd, journalStatsCmd, journalPruneCmd)

	journalListCmd.Flags().StringVar(&journalStation, "station", "", "Only show one station")
	journalListCmd.Flags().IntVar(&journalLimit, "limit", 20, "Maximum number of records")
	journalPruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 30*24*time.Hour, "Age of the records to delete")
}
