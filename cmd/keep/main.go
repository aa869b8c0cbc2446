// cmd/keep/main.go
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"keep/client"
	"keep/internal/commit"
	"keep/internal/engine"
	"keep/internal/tree"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	authorID  string
)

var rootCmd = &cobra.Command{
	Use:   "keep",
	Short: "Keep is a lightweight repository hosting engine",
	Long: `Keep hosts named branches over an immutable commit graph with
content-addressed file storage. This CLI talks to a running keep
server.`,
}

func newClient() *client.Client {
	return client.New(serverURL, authorID)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "keep server base URL")
	rootCmd.PersistentFlags().StringVar(&authorID, "author", os.Getenv("USER"), "author identity for writes")

	var repoCmd = &cobra.Command{
		Use:   "repo",
		Short: "Work with repositories",
	}

	var createRepoCmd = &cobra.Command{
		Use:   "create [name]",
		Short: "Create a repository with a default main branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, _ := cmd.Flags().GetString("group")

			r, err := newClient().CreateRepository(args[0], group)
			if err != nil {
				return fmt.Errorf("creating repository: %w", err)
			}

			fmt.Printf("Created repository %s (%s)\n", r.Name, r.ID)
			return nil
		},
	}
	createRepoCmd.Flags().String("group", "", "owning group id")
	createRepoCmd.MarkFlagRequired("group")

	var deleteRepoCmd = &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a repository and everything below it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().DeleteRepository(args[0]); err != nil {
				return fmt.Errorf("deleting repository: %w", err)
			}

			fmt.Println("Repository deleted")
			return nil
		},
	}

	repoCmd.AddCommand(createRepoCmd, deleteRepoCmd)

	var branchCmd = &cobra.Command{
		Use:   "branch",
		Short: "Work with branches",
	}

	var createBranchCmd = &cobra.Command{
		Use:   "create [repo] [name]",
		Short: "Fork a new branch from an existing branch's head",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetString("from")

			b, err := newClient().CreateBranch(args[0], args[1], from)
			if err != nil {
				return fmt.Errorf("creating branch: %w", err)
			}

			fmt.Printf("Created branch %s at %s\n", b.Name, b.Head[:8])
			return nil
		},
	}
	createBranchCmd.Flags().String("from", "", "source branch (defaults to main)")

	var listBranchesCmd = &cobra.Command{
		Use:   "list [repo]",
		Short: "List branches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, _ := cmd.Flags().GetString("filter")

			branches, err := newClient().ListBranches(args[0], filter)
			if err != nil {
				return fmt.Errorf("listing branches: %w", err)
			}

			if len(branches) == 0 {
				fmt.Println("No branches found")
				return nil
			}

			for _, b := range branches {
				fmt.Printf("%s  %s  %s\n",
					color.GreenString(b.Name),
					b.Head[:8],
					b.UpdatedAt.Format(time.RFC3339),
				)
			}
			return nil
		},
	}
	listBranchesCmd.Flags().String("filter", "", "substring filter on branch names")

	branchCmd.AddCommand(createBranchCmd, listBranchesCmd)

	var commitCmd = &cobra.Command{
		Use:   "commit [repo] [branch]",
		Short: "Create a commit from local files",
		Long: `Creates a commit on a branch. Added or modified files are read
from disk with --add; deletions are recorded with --delete.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")
			adds, _ := cmd.Flags().GetStringSlice("add")
			deletes, _ := cmd.Flags().GetStringSlice("delete")

			var changes []engine.ChangeInput
			for _, local := range adds {
				data, err := os.ReadFile(local)
				if err != nil {
					return fmt.Errorf("reading %s: %w", local, err)
				}
				changes = append(changes, engine.ChangeInput{
					Path:    filepath.ToSlash(local),
					Kind:    commit.Added,
					Content: data,
				})
			}
			for _, path := range deletes {
				changes = append(changes, engine.ChangeInput{
					Path: path,
					Kind: commit.Deleted,
				})
			}

			c, err := newClient().CreateCommit(args[0], args[1], message, changes, nil)
			if err != nil {
				return fmt.Errorf("creating commit: %w", err)
			}

			fmt.Printf("Committed %s (%d changes)\n", c.ID[:8], len(changes))
			return nil
		},
	}
	commitCmd.Flags().StringP("message", "m", "", "commit message")
	commitCmd.Flags().StringSlice("add", nil, "files to add or modify")
	commitCmd.Flags().StringSlice("delete", nil, "paths to delete")
	commitCmd.MarkFlagRequired("message")

	var logCmd = &cobra.Command{
		Use:   "log [repo] [branch]",
		Short: "Show branch history, newest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			commits, err := newClient().Log(args[0], args[1], limit)
			if err != nil {
				return fmt.Errorf("listing history: %w", err)
			}

			for _, c := range commits {
				fmt.Printf("%s  %s  %s  %s\n",
					color.YellowString(c.ID[:8]),
					c.CreatedAt.Format(time.RFC3339),
					c.Author,
					c.Message,
				)
			}
			return nil
		},
	}
	logCmd.Flags().Int("limit", 20, "maximum commits to list")

	var treeCmd = &cobra.Command{
		Use:   "tree [repo] [branch] [prefix]",
		Short: "List the directory tree at a branch head",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 3 {
				prefix = args[2]
			}

			nodes, err := newClient().GetTree(args[0], args[1], prefix)
			if err != nil {
				return fmt.Errorf("listing tree: %w", err)
			}

			for _, n := range nodes {
				if n.Type == tree.NodeDir {
					fmt.Println(color.BlueString(n.Path + "/"))
				} else {
					fmt.Println(n.Path)
				}
			}
			return nil
		},
	}

	var catCmd = &cobra.Command{
		Use:   "cat [repo] [branch] [path]",
		Short: "Print a file's content at a branch head",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := newClient().GetFile(args[0], args[1], args[2])
			if err != nil {
				return fmt.Errorf("resolving file: %w", err)
			}

			if meta.Binary {
				fmt.Printf("Binary file %s (%s)\n", meta.Path, meta.ContentID[:8])
				return nil
			}

			fmt.Print(string(meta.Content))
			if !strings.HasSuffix(string(meta.Content), "\n") {
				fmt.Println()
			}
			return nil
		},
	}

	var readmeCmd = &cobra.Command{
		Use:   "readme [repo] [branch] [folder]",
		Short: "Print a folder's README, if any",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := ""
			if len(args) == 3 {
				folder = args[2]
			}

			content, err := newClient().GetReadme(args[0], args[1], folder)
			if err != nil {
				return fmt.Errorf("resolving readme: %w", err)
			}

			if len(content) == 0 {
				fmt.Println("No README found")
				return nil
			}

			fmt.Print(string(content))
			return nil
		},
	}

	rootCmd.AddCommand(repoCmd, branchCmd, commitCmd, logCmd, treeCmd, catCmd, readmeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
