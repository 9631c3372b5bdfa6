package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nhle/taskbuddy/internal/board"
	"github.com/nhle/taskbuddy/internal/credential"
	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/tags"
)

var addCmd = &cobra.Command{
	Use:     "add [title]",
	Aliases: []string{"new", "create"},
	Short:   "Create a task",
	GroupID: "core",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(os.Stderr)
		if err != nil {
			return err
		}
		defer e.Close()

		vault, err := credential.Open(model.ConfigDir())
		if err != nil {
			return err
		}
		uid, err := currentUser(cmd, e, vault)
		if err != nil {
			return err
		}

		desc, _ := cmd.Flags().GetString("description")
		status, _ := cmd.Flags().GetString("status")
		category, _ := cmd.Flags().GetString("category")
		due, _ := cmd.Flags().GetString("due")
		tagList, _ := cmd.Flags().GetString("tags")
		attach, _ := cmd.Flags().GetStringSlice("attach")

		files := make([]model.FileUpload, 0, len(attach))
		for _, p := range attach {
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("reading attachment: %w", err)
			}
			files = append(files, model.FileUpload{Name: filepath.Base(p), Data: data})
		}

		svc, _, err := e.taskService(nil)
		if err != nil {
			return err
		}
		defer svc.Wait()

		t, err := svc.Create(cmd.Context(), uid, model.TaskDraft{
			Title:       args[0],
			Description: desc,
			Status:      model.Status(strings.ToUpper(status)),
			Category:    model.Category(strings.ToUpper(category)),
			DueDate:     due,
			Tags:        tags.Split(tagList),
		}, files)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q in %s\n", t.ID, t.Title, t.Status)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Print the task lanes",
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(os.Stderr)
		if err != nil {
			return err
		}
		defer e.Close()

		vault, err := credential.Open(model.ConfigDir())
		if err != nil {
			return err
		}
		uid, err := currentUser(cmd, e, vault)
		if err != nil {
			return err
		}

		f := board.FilterValues{}
		category, _ := cmd.Flags().GetString("category")
		f.Category = model.Category(strings.ToUpper(category))
		f.StartDate, _ = cmd.Flags().GetString("from")
		f.EndDate, _ = cmd.Flags().GetString("to")
		f.SearchText, _ = cmd.Flags().GetString("search")
		tagList, _ := cmd.Flags().GetString("tags")
		f.Tags = tags.Split(tagList)

		sortKey, _ := cmd.Flags().GetString("sort")
		key, ok := board.ParseSortKey(sortKey)
		if !ok {
			return fmt.Errorf("unknown sort key %q", sortKey)
		}
		sc := board.SortConfig{Key: key, Direction: board.Asc}
		if desc, _ := cmd.Flags().GetBool("desc"); desc {
			sc.Direction = board.Desc
		}

		svc, _, err := e.taskService(nil)
		if err != nil {
			return err
		}
		view, err := svc.View(cmd.Context(), uid, f, sc)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		}
		printView(cmd.OutOrStdout(), view, time.Now())
		return nil
	},
}

func printView(w io.Writer, v board.View, now time.Time) {
	if v.NoResults {
		fmt.Fprintln(w, "No tasks match your search.")
		return
	}
	for _, lane := range v.Lanes {
		fmt.Fprintln(w, lane.Title)
		if len(lane.Tasks) == 0 {
			fmt.Fprintln(w, "  (empty)")
		}
		for _, t := range lane.Tasks {
			line := fmt.Sprintf("  %s  %s  [%s]", shortID(t.ID), t.Title, strings.ToLower(string(t.Category)))
			if d, ok := model.ParseDate(t.DueDate); ok {
				line += "  due " + humanize.RelTime(d, now, "ago", "from now")
			}
			if len(t.Tags) > 0 {
				line += "  #" + strings.Join(t.Tags, " #")
			}
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print the version",
	GroupID: "system",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "taskbuddy %s\n", rootCmd.Version)
	},
}

func init() {
	addCmd.Flags().StringP("description", "d", "", "task description")
	addCmd.Flags().StringP("status", "s", string(model.StatusTodo), "TO-DO, IN-PROGRESS or COMPLETED")
	addCmd.Flags().StringP("category", "c", string(model.CategoryWork), "WORK or PERSONAL")
	addCmd.Flags().String("due", "", "due date (YYYY-MM-DD)")
	addCmd.Flags().StringP("tags", "t", "", "comma-separated tags")
	addCmd.Flags().StringSlice("attach", nil, "files to attach")

	listCmd.Flags().StringP("category", "c", "", "only WORK or PERSONAL")
	listCmd.Flags().String("from", "", "due on or after (YYYY-MM-DD)")
	listCmd.Flags().String("to", "", "due on or before (YYYY-MM-DD)")
	listCmd.Flags().StringP("search", "q", "", "search title and description")
	listCmd.Flags().StringP("tags", "t", "", "comma-separated tags, any match")
	listCmd.Flags().String("sort", "", "title, description, status, category, due_date or tags")
	listCmd.Flags().Bool("desc", false, "sort descending")
	listCmd.Flags().Bool("json", false, "print JSON")

	rootCmd.AddCommand(addCmd, listCmd, versionCmd)
}
