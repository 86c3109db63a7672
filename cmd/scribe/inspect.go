package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/scribe/internal/model"
	"github.com/MikeSquared-Agency/scribe/internal/parser"
)

var jobsFlags model.JobFilter

func init() {
	jobsCmd.Flags().StringVar(&jobsFlags.Status, "status", "", "only jobs with this status")
	jobsCmd.Flags().StringVar(&jobsFlags.SourceType, "source", "", "only jobs from this source")
	jobsCmd.Flags().StringVar(&jobsFlags.FilePath, "path", "", "only jobs for this file")
	jobsCmd.Flags().IntVar(&jobsFlags.Limit, "limit", 20, "maximum jobs to list")

	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(jobsCmd)
}

var stateCmd = &cobra.Command{
	Use:   "state <path>",
	Short: "Show the stored ingestion state of a log file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		db, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer db.close()

		st, err := db.LoadState(cmd.Context(), path)
		if err != nil {
			return err
		}
		if st == nil {
			return fmt.Errorf("%s has not been ingested", path)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe <path>",
	Short: "Show how every parser scores a log file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := parser.Default()
		selected, ok := reg.Select(args[0])

		fmt.Printf("%-18s %-6s %-11s %-10s %s\n", "PARSER", "PARSE", "CONFIDENCE", "RESUMABLE", "REASONS")
		for _, c := range reg.Probe(args[0]) {
			mark := " "
			if ok && c.Parser == selected.Name() {
				mark = "*"
			}
			fmt.Printf("%s%-17s %-6t %-11.2f %-10t %s\n",
				mark, c.Parser, c.Result.CanParse, c.Result.Confidence, c.Incremental,
				strings.Join(c.Result.Reasons, "; "))
		}
		if !ok {
			return fmt.Errorf("no parser can read %s", args[0])
		}
		return nil
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent ingestion jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer db.close()

		jobs, err := db.ListJobs(cmd.Context(), jobsFlags)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Println("No ingestion jobs yet")
			return nil
		}

		fmt.Printf("%-20s %-9s %-6s %-5s %8s  %s\n", "STARTED", "STATUS", "SOURCE", "INCR", "MESSAGES", "FILE")
		for _, j := range jobs {
			incr := "no"
			if j.Incremental {
				incr = "yes"
			}
			fmt.Printf("%-20s %-9s %-6s %-5s %8d  %s\n",
				j.StartedAt.Local().Format("2006-01-02 15:04:05"),
				j.Status, j.SourceType, incr, j.MessagesAdded, j.FilePath)
			if j.ErrorMessage != "" {
				fmt.Printf("%20s %s\n", "", j.ErrorMessage)
			}
		}
		return nil
	},
}
