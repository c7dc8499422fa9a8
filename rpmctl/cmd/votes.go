package cmd

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rpmclk/datarecording"
)

var votesCmd = &cobra.Command{
	Use:   "votes",
	Short: "List the RPM exchanges recorded with --db.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		if s.DBPath == "" {
			return errors.New("votes needs a database, set --db")
		}

		reader, err := datarecording.NewReader(s.DBPath + ".sqlite3")
		if err != nil {
			return err
		}
		defer reader.Close()

		params, err := votesQuery(cmd)
		if err != nil {
			return err
		}

		entries, total, err := datarecording.ReadExchanges(
			cmd.Context(), reader, params)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tCLOCK\tOP\tCONTEXT\tID\tVALUE\tERROR")
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%s\n",
				e.Seq, e.Clock, e.Op, e.Context, e.ResourceID, e.Value, e.Error)
		}

		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d exchanges\n",
			len(entries), total)

		return nil
	},
}

func votesQuery(cmd *cobra.Command) (datarecording.QueryParams, error) {
	flags := cmd.Flags()
	params := datarecording.QueryParams{OrderBy: "Seq"}

	var where []string

	clockName, _ := flags.GetString("clock")
	if clockName != "" {
		where = append(where, "Clock = ?")
		params.Args = append(params.Args, clockName)
	}

	if failed, _ := flags.GetBool("failed"); failed {
		where = append(where, "Failed = 1")
	}

	params.Where = strings.Join(where, " AND ")

	limit, _ := flags.GetInt("limit")
	if limit < 0 {
		return params, fmt.Errorf("invalid limit %d", limit)
	}
	params.Limit = limit

	return params, nil
}

func init() {
	rootCmd.AddCommand(votesCmd)
	votesCmd.Flags().String("clock", "", "Only list exchanges of this clock")
	votesCmd.Flags().Bool("failed", false, "Only list failed exchanges")
	votesCmd.Flags().Int("limit", 0, "List at most this many exchanges")
}
