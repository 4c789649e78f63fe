package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/haeki/devserve/internal/config"
	"github.com/haeki/devserve/internal/project"
	"github.com/haeki/devserve/internal/project/factory"
)

// ProjectFlags hold the flags for the project add command.
type ProjectFlags struct {
	Name              string
	Path              string
	FrontendPort      int
	BackendPort       int
	FrontendFramework string
	BackendFramework  string
}

func openStore(configPath string) (project.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	st, err := factory.NewFromDSN(cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := st.EnsureSchema(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func createProjectCommand(globalFlags *GlobalFlags) *cobra.Command {
	flags := &ProjectFlags{}

	root := &cobra.Command{
		Use:   "project",
		Short: "Manage registered projects",
	}

	add := &cobra.Command{
		Use:   "add <project-id>",
		Short: "Register a project in the metadata store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(globalFlags.ConfigPath)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			p := project.Project{
				ID:           args[0],
				Name:         flags.Name,
				Path:         flags.Path,
				FrontendPort: flags.FrontendPort,
				BackendPort:  flags.BackendPort,
				Frameworks: project.Frameworks{
					Frontend: flags.FrontendFramework,
					Backend:  flags.BackendFramework,
				},
			}
			if p.Name == "" {
				p.Name = p.ID
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			if err := st.Save(ctx, p); err != nil {
				return err
			}
			fmt.Printf("registered project %s (%s)\n", p.ID, p.Path)
			return nil
		},
	}
	add.Flags().StringVar(&flags.Name, "name", "", "display name (defaults to id)")
	add.Flags().StringVar(&flags.Path, "path", "", "project working directory (required)")
	add.Flags().IntVar(&flags.FrontendPort, "frontend-port", 0, "preferred frontend port")
	add.Flags().IntVar(&flags.BackendPort, "backend-port", 0, "preferred backend port")
	add.Flags().StringVar(&flags.FrontendFramework, "frontend-framework", "", "frontend framework (vite, next, react, angular, svelte)")
	add.Flags().StringVar(&flags.BackendFramework, "backend-framework", "", "backend framework (express, fastapi, django, flask)")
	if err := add.MarkFlagRequired("path"); err != nil {
		panic(err)
	}

	remove := &cobra.Command{
		Use:   "remove <project-id>",
		Short: "Remove a project from the metadata store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(globalFlags.ConfigPath)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			if err := st.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("removed project %s\n", args[0])
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(globalFlags.ConfigPath)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			projects, err := st.List(ctx)
			if err != nil {
				return err
			}
			return printJSON(projects)
		},
	}

	root.AddCommand(add, remove, list)
	return root
}
