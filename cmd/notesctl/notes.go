package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"notes-sync-client/internal/domain"

	"github.com/spf13/cobra"
)

func newNotesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "List, add, remove and search cached notes",
	}

	cmd.AddCommand(
		newNotesListCmd(c),
		newNotesAddCmd(c),
		newNotesRmCmd(c),
		newNotesSearchCmd(c),
	)
	return cmd
}

func newNotesListCmd(c *cli) *cobra.Command {
	var (
		category  string
		favorites bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var (
				notes []domain.Note
				err   error
			)
			switch {
			case category != "":
				cat := domain.Category(category)
				if !cat.Valid() {
					return fmt.Errorf("unknown category %q", category)
				}
				notes, err = c.app.Notes.GetNotesByCategory(ctx, cat)
			case favorites:
				notes, err = c.app.Notes.GetFavoriteNotes(ctx)
			default:
				notes, err = c.app.Notes.GetNotes(ctx)
			}
			if err != nil {
				return err
			}
			return c.printNotes(cmd.OutOrStdout(), notes)
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Only notes in this category")
	cmd.Flags().BoolVar(&favorites, "favorites", false, "Only favorite notes")
	return cmd
}

func newNotesAddCmd(c *cli) *cobra.Command {
	var (
		content  string
		category string
		tags     []string
		public   bool
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a note",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			req := &domain.CreateNoteRequest{
				Title:    strings.Join(args, " "),
				Content:  content,
				Category: domain.Category(category),
				IsPublic: public,
				Tags:     tags,
			}
			if req.Category != "" && !req.Category.Valid() {
				return fmt.Errorf("unknown category %q", category)
			}

			note, err := c.app.Notes.CreateNote(ctx, c.userID(ctx), req)
			if err != nil {
				return err
			}

			if c.asJSON {
				return c.printJSON(cmd.OutOrStdout(), note)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", note.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&content, "content", "m", "", "Note body")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Category (personal, work, ideas, todo, other)")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tag to attach (repeatable)")
	cmd.Flags().BoolVar(&public, "public", false, "Share the note on the public feed")
	return cmd
}

func newNotesRmCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete notes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if err := c.app.Notes.DeleteNote(cmd.Context(), id); err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			return nil
		},
	}
}

func newNotesSearchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search titles, contents and categories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, err := c.app.Notes.SearchNotes(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return c.printNotes(cmd.OutOrStdout(), notes)
		},
	}
}

func (c *cli) printNotes(w io.Writer, notes []domain.Note) error {
	if c.asJSON {
		return c.printJSON(w, notes)
	}
	if len(notes) == 0 {
		fmt.Fprintln(w, "no notes")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tFAV\tLIKES\tUPDATED\tTITLE")
	for _, n := range notes {
		fav := ""
		if n.IsFavorite {
			fav = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			n.ID, n.Category, fav, n.Likes(), n.UpdatedAt.Format("2006-01-02 15:04"), n.Title)
	}
	return tw.Flush()
}
