package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/dealflow/internal/models"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage checklist tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <deal-id>",
	Short: "Add a manual task to a deal",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list <deal-id>",
	Short: "List a deal's tasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <task-id> <pending|in_progress|complete>",
	Short: "Change a task's status",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskStatus,
}

var taskEditCmd = &cobra.Command{
	Use:   "edit <task-id>",
	Short: "Edit task fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskEdit,
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <task-id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRm,
}

var (
	taskTitle       string
	taskDesc        string
	taskPhase       string
	taskWorkstream  string
	taskResponsible string
	taskDue         string
	taskNotes       string
	taskCritical    bool
	taskStatusF     string
	taskOverdueOnly bool
	taskVersion     int64
)

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskShowCmd, taskStatusCmd, taskEditCmd, taskRmCmd)

	taskAddCmd.Flags().StringVar(&taskTitle, "title", "", "Task title (required)")
	taskAddCmd.Flags().StringVar(&taskDesc, "desc", "", "Task description")
	taskAddCmd.Flags().StringVar(&taskPhase, "phase", "", "Phase name")
	taskAddCmd.Flags().StringVar(&taskWorkstream, "workstream", "", "Workstream (legal, financial, commercial, ops, it, tax, other)")
	taskAddCmd.Flags().StringVar(&taskResponsible, "responsible", "", "Responsible person")
	taskAddCmd.Flags().StringVar(&taskDue, "due", "", "Due date (YYYY-MM-DD)")
	taskAddCmd.Flags().BoolVar(&taskCritical, "critical", false, "Mark as critical")
	taskAddCmd.MarkFlagRequired("title")

	taskListCmd.Flags().StringVar(&taskStatusF, "status", "", "Filter by status (pending, in_progress, complete)")
	taskListCmd.Flags().StringVar(&taskPhase, "phase", "", "Filter by phase")
	taskListCmd.Flags().StringVar(&taskWorkstream, "workstream", "", "Filter by workstream")
	taskListCmd.Flags().BoolVar(&taskCritical, "critical", false, "Only critical tasks")
	taskListCmd.Flags().BoolVar(&taskOverdueOnly, "overdue", false, "Only overdue tasks")

	taskStatusCmd.Flags().Int64Var(&taskVersion, "version", 0, "Expected version (0 overwrites)")

	taskEditCmd.Flags().StringVar(&taskTitle, "title", "", "New title")
	taskEditCmd.Flags().StringVar(&taskDesc, "desc", "", "New description")
	taskEditCmd.Flags().StringVar(&taskPhase, "phase", "", "New phase")
	taskEditCmd.Flags().StringVar(&taskWorkstream, "workstream", "", "New workstream")
	taskEditCmd.Flags().StringVar(&taskResponsible, "responsible", "", "New responsible person")
	taskEditCmd.Flags().StringVar(&taskDue, "due", "", "New due date (YYYY-MM-DD, or none to clear)")
	taskEditCmd.Flags().StringVar(&taskNotes, "notes", "", "Replace notes")
	taskEditCmd.Flags().BoolVar(&taskCritical, "critical", false, "Critical flag")
	taskEditCmd.Flags().Int64Var(&taskVersion, "version", 0, "Expected version (0 overwrites)")
}

func parseDate(s string) (*time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return &d, nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	body := map[string]any{
		"title":       taskTitle,
		"description": taskDesc,
		"phase":       taskPhase,
		"workstream":  taskWorkstream,
		"responsible": taskResponsible,
		"critical":    taskCritical,
	}
	if taskDue != "" {
		due, err := parseDate(taskDue)
		if err != nil {
			return err
		}
		body["due_date"] = due
	}

	resp, err := apiPost(dealPath(args[0], "/tasks"), body)
	if err != nil {
		return err
	}

	var t models.TaskRecord
	if err := json.Unmarshal(resp, &t); err != nil {
		return err
	}
	fmt.Printf("Created task: %s\n", t.ID)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if taskStatusF != "" {
		q.Set("status", taskStatusF)
	}
	if taskPhase != "" {
		q.Set("phase", taskPhase)
	}
	if taskWorkstream != "" {
		q.Set("workstream", taskWorkstream)
	}
	if cmd.Flags().Changed("critical") {
		q.Set("critical", fmt.Sprint(taskCritical))
	}
	if taskOverdueOnly {
		q.Set("overdue", "true")
	}
	path := dealPath(args[0], "/tasks")
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var tasks []models.TaskRecord
	if err := apiGetJSON(path, &tasks); err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPHASE\tTITLE\tSTATUS\tWORKSTREAM\tDUE")
	for _, t := range tasks {
		title := truncate(t.Title, 40)
		if t.Critical {
			title = "! " + title
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(t.ID), t.Phase, title, t.Status, t.Workstream, formatDate(t.DueDate))
	}
	return w.Flush()
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	var t models.TaskRecord
	if err := apiGetJSON("/tasks/"+url.PathEscape(args[0]), &t); err != nil {
		return err
	}
	printTask(&t)
	return nil
}

func printTask(t *models.TaskRecord) {
	fmt.Printf("ID:          %s\n", t.ID)
	fmt.Printf("Deal:        %s\n", t.DealID)
	fmt.Printf("Title:       %s\n", t.Title)
	fmt.Printf("Phase:       %s\n", t.Phase)
	fmt.Printf("Status:      %s\n", t.Status)
	fmt.Printf("Workstream:  %s\n", t.Workstream)
	fmt.Printf("Critical:    %v\n", t.Critical)
	if t.Responsible != "" {
		fmt.Printf("Responsible: %s\n", t.Responsible)
	}
	if t.DueDate != nil {
		fmt.Printf("Due:         %s\n", formatDate(t.DueDate))
	}
	if t.CompletedAt != nil {
		fmt.Printf("Completed:   %s\n", t.CompletedAt.Format(time.RFC3339))
	}
	fmt.Printf("Version:     %d\n", t.Version)
	if t.Description != "" {
		fmt.Printf("\n%s\n", t.Description)
	}
	if t.Notes != "" {
		fmt.Printf("\nNotes:\n%s\n", t.Notes)
	}
}

func runTaskStatus(cmd *cobra.Command, args []string) error {
	body := map[string]any{"status": args[1], "version": taskVersion}
	resp, err := apiPost("/tasks/"+url.PathEscape(args[0])+"/status", body)
	if err != nil {
		return err
	}
	var t models.TaskRecord
	if err := json.Unmarshal(resp, &t); err != nil {
		return err
	}
	fmt.Printf("%s: %s (version %d)\n", truncateID(t.ID), t.Status, t.Version)
	return nil
}

// editBody builds a PATCH body from the flags the user actually set.
func editBody(cmd *cobra.Command) (map[string]any, error) {
	body := map[string]any{"version": taskVersion}
	set := func(flag, field string, v any) {
		if cmd.Flags().Changed(flag) {
			body[field] = v
		}
	}
	set("title", "title", taskTitle)
	set("desc", "description", taskDesc)
	set("phase", "phase", taskPhase)
	set("workstream", "workstream", taskWorkstream)
	set("responsible", "responsible", taskResponsible)
	set("notes", "notes", taskNotes)
	set("critical", "critical", taskCritical)

	if cmd.Flags().Changed("due") {
		if strings.EqualFold(taskDue, "none") {
			body["clear_due_date"] = true
		} else {
			due, err := parseDate(taskDue)
			if err != nil {
				return nil, err
			}
			body["due_date"] = due
		}
	}
	if len(body) == 1 {
		return nil, fmt.Errorf("nothing to change; pass at least one field flag")
	}
	return body, nil
}

func runTaskEdit(cmd *cobra.Command, args []string) error {
	body, err := editBody(cmd)
	if err != nil {
		return err
	}
	resp, err := apiPatch("/tasks/"+url.PathEscape(args[0]), body)
	if err != nil {
		return err
	}
	var t models.TaskRecord
	if err := json.Unmarshal(resp, &t); err != nil {
		return err
	}
	printTask(&t)
	return nil
}

func runTaskRm(cmd *cobra.Command, args []string) error {
	if err := apiDelete("/tasks/" + url.PathEscape(args[0])); err != nil {
		return err
	}
	fmt.Printf("Deleted task: %s\n", args[0])
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
