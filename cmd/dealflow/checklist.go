package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fentz26/dealflow/internal/checklist"
	"github.com/fentz26/dealflow/internal/models"
)

var checklistCmd = &cobra.Command{
	Use:   "checklist",
	Short: "Create and report on deal checklists",
}

var checklistInitCmd = &cobra.Command{
	Use:   "init <deal-id>",
	Short: "Instantiate a deal's checklist from its template",
	Args:  cobra.ExactArgs(1),
	RunE:  runChecklistInit,
}

var checklistRepairCmd = &cobra.Command{
	Use:   "repair <deal-id>",
	Short: "Add template tasks for phases that have none",
	Args:  cobra.ExactArgs(1),
	RunE:  runChecklistRepair,
}

var checklistProgressCmd = &cobra.Command{
	Use:   "progress <deal-id>",
	Short: "Show per-phase and overall progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runChecklistProgress,
}

var checklistWorkstreamsCmd = &cobra.Command{
	Use:   "workstreams <deal-id>",
	Short: "Show progress per due-diligence workstream",
	Args:  cobra.ExactArgs(1),
	RunE:  runChecklistWorkstreams,
}

var checklistOverdueCmd = &cobra.Command{
	Use:   "overdue <deal-id>",
	Short: "List overdue tasks, most overdue first",
	Args:  cobra.ExactArgs(1),
	RunE:  runChecklistOverdue,
}

var dealTypeFlag string

func init() {
	checklistCmd.AddCommand(checklistInitCmd, checklistRepairCmd, checklistProgressCmd, checklistWorkstreamsCmd, checklistOverdueCmd)

	for _, c := range []*cobra.Command{checklistInitCmd, checklistRepairCmd} {
		c.Flags().StringVar(&dealTypeFlag, "type", "", "Deal type: compra (buy) or venta (sell) (required)")
		c.MarkFlagRequired("type")
	}
	checklistProgressCmd.Flags().StringVar(&dealTypeFlag, "type", "", "Deal type (defaults to the instantiated template)")
}

func dealPath(dealID, suffix string) string {
	return "/deals/" + url.PathEscape(dealID) + suffix
}

func postChecklist(dealID, suffix, verb string) error {
	dt, err := models.ParseDealType(dealTypeFlag)
	if err != nil {
		return err
	}
	resp, err := apiPost(dealPath(dealID, suffix), map[string]string{"deal_type": string(dt)})
	if err != nil {
		return err
	}
	var result struct {
		Created int `json:"created"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}
	fmt.Printf("%s %d tasks for deal %s (%s)\n", verb, result.Created, dealID, dt)
	return nil
}

func runChecklistInit(cmd *cobra.Command, args []string) error {
	return postChecklist(args[0], "/checklist", "Created")
}

func runChecklistRepair(cmd *cobra.Command, args []string) error {
	return postChecklist(args[0], "/checklist/repair", "Added")
}

func runChecklistProgress(cmd *cobra.Command, args []string) error {
	path := dealPath(args[0], "/progress")
	if dealTypeFlag != "" {
		dt, err := models.ParseDealType(dealTypeFlag)
		if err != nil {
			return err
		}
		path += "?deal_type=" + string(dt)
	}

	var p models.DealProgress
	if err := apiGetJSON(path, &p); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHASE\tDONE\tIN PROGRESS\tPENDING\tOVERDUE\tPROGRESS")
	for _, ph := range p.Phases {
		fmt.Fprintf(w, "%s\t%d/%d\t%d\t%d\t%d\t%s %3d%%\n",
			ph.Phase, ph.Completed, ph.Total, ph.InProgress, ph.Pending, ph.Overdue, bar(ph.Percentage, 20), ph.Percentage)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nOverall: %d%% (by task: %d%%, %d/%d complete)\n", p.Overall, p.Weighted, p.Totals.Completed, p.Totals.Total)
	return nil
}

func runChecklistWorkstreams(cmd *cobra.Command, args []string) error {
	var stats []models.WorkstreamStats
	if err := apiGetJSON(dealPath(args[0], "/workstreams"), &stats); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WORKSTREAM\tDONE\tIN PROGRESS\tOVERDUE\tPROGRESS")
	for _, s := range stats {
		if s.Total == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%d/%d\t%d\t%d\t%d%%\n", s.Workstream, s.Completed, s.Total, s.InProgress, s.Overdue, s.Percentage)
	}
	return w.Flush()
}

func runChecklistOverdue(cmd *cobra.Command, args []string) error {
	var tasks []checklist.OverdueTask
	if err := apiGetJSON(dealPath(args[0], "/overdue"), &tasks); err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No overdue tasks")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDAYS\tCRITICAL\tPHASE\tTITLE\tRESPONSIBLE")
	for _, o := range tasks {
		crit := ""
		if o.Task.Critical {
			crit = "yes"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			truncateID(o.Task.ID), o.DaysOverdue, crit, o.Task.Phase, truncate(o.Task.Title, 40), o.Task.Responsible)
	}
	return w.Flush()
}

// bar draws a fixed-width text progress bar.
func bar(pct, width int) string {
	filled := pct * width / 100
	out := make([]rune, width)
	for i := range out {
		if i < filled {
			out[i] = '█'
		} else {
			out[i] = '░'
		}
	}
	return string(out)
}
