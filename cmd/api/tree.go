package main

import (
	"fmt"
	"todoTree/internal/app"
	"todoTree/internal/hierarchy"
	"todoTree/internal/render"
	"todoTree/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var treeOpts struct {
	user          string
	format        string
	maxDepth      int
	hideCompleted bool
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print a user's task forest",
	Args:  cobra.NoArgs,
	RunE:  runTree,
}

func init() {
	f := treeCmd.Flags()
	f.StringVarP(&treeOpts.user, "user", "u", "", "owner id (uuid)")
	f.StringVarP(&treeOpts.format, "format", "f", "text", "output format: text, yaml or json")
	f.IntVar(&treeOpts.maxDepth, "max-depth", 0, "levels to print, 0 for all")
	f.BoolVar(&treeOpts.hideCompleted, "hide-completed", false, "leave completed tasks and their subtasks out")
	_ = treeCmd.MarkFlagRequired("user")
}

func runTree(cmd *cobra.Command, _ []string) error {
	userID, err := uuid.Parse(treeOpts.user)
	if err != nil || userID == uuid.Nil {
		return fmt.Errorf("--user must be a non-nil uuid")
	}

	repo, closeRepo, err := app.OpenRepository(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	orphans, _ := hierarchy.ParseOrphanPolicy(cfg.Hierarchy.Orphans)
	svc := service.NewTaskService(repo, service.WithLocation(loc), service.WithOrphanPolicy(orphans))

	snap, err := svc.Snapshot(cmd.Context(), userID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch treeOpts.format {
	case "text":
		return render.Text(out, snap.Roots, render.TextOptions{
			MaxDepth:      treeOpts.maxDepth,
			HideCompleted: treeOpts.hideCompleted,
		})
	case "yaml":
		return render.YAML(out, snap.Roots)
	case "json":
		return render.JSON(out, snap.Roots)
	}
	return fmt.Errorf("unknown format %q", treeOpts.format)
}
