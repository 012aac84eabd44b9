package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fentz26/dealflow/internal/catalog"
	"github.com/fentz26/dealflow/internal/models"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Inspect checklist templates",
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deal types and their template sizes",
	RunE:  runTemplateList,
}

var templateShowCmd = &cobra.Command{
	Use:   "show <deal-type>",
	Short: "Show a template's phases and tasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateShow,
}

func init() {
	templateCmd.AddCommand(templateListCmd, templateShowCmd)
}

// localCatalog loads templates the same way the daemon does, without a daemon.
func localCatalog() (*catalog.Catalog, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Catalog.Dir != "" {
		return catalog.LoadDir(cfg.Catalog.Dir)
	}
	return catalog.Default()
}

func runTemplateList(cmd *cobra.Command, args []string) error {
	cat, err := localCatalog()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEAL TYPE\tPHASES\tTASKS\tCRITICAL")
	for _, dt := range cat.DealTypes() {
		p, err := cat.Preview(dt)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", dt, len(p.Phases), p.TaskCount, p.CriticalCount)
	}
	return w.Flush()
}

func runTemplateShow(cmd *cobra.Command, args []string) error {
	dt, err := models.ParseDealType(args[0])
	if err != nil {
		return err
	}
	cat, err := localCatalog()
	if err != nil {
		return err
	}
	phases, err := cat.ListPhases(dt)
	if err != nil {
		return err
	}
	tasks, err := cat.ListTaskTemplates(dt)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, ph := range phases {
		fmt.Fprintf(w, "%d. %s\n", ph.Order, ph.Name)
		for _, t := range tasks {
			if catalog.PhaseKey(t.Phase) != catalog.PhaseKey(ph.Name) {
				continue
			}
			crit := ""
			if t.Critical {
				crit = "critical"
			}
			fmt.Fprintf(w, "   %d\t%s\t%s\t%s\t%dd\n", t.Order, truncate(t.Title, 50), t.Workstream, crit, t.DurationDays)
		}
	}
	return w.Flush()
}
