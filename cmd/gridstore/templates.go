package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"xdao.co/gridstore/catalog"
	"xdao.co/gridstore/model"
)

func (a *app) templatesCmd() *cobra.Command {
	var (
		q        catalog.Query
		category string
		featured int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"ls"},
		Short:   "List catalog templates",
		Long: `Templates lists the catalog, filtered by --category, --search and --tag.
Filtering by tag looks up the live tags of community profiles.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			q.Category = catalog.Category(category)
			var ts []catalog.Template
			if featured > 0 {
				ts = catalog.Filter(svc.Catalog().Featured(featured), q)
			} else if ts, err = svc.Templates(a.context(cmd), a.net, q); err != nil {
				return err
			}
			if asJSON {
				return a.printJSON(model.FromTemplates(ts))
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCATEGORY\tSOURCE\tNAME")
			for _, t := range ts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Category, t.Source.Kind(), t.Name)
			}
			return w.Flush()
		},
	}
	f := cmd.Flags()
	f.StringVar(&category, "category", "", "category id (all, minimal, creative, professional, gaming, social, community)")
	f.StringVarP(&q.Search, "search", "s", "", "case-insensitive match on name, description and author")
	f.StringVar(&q.Tag, "tag", "", "profile tag")
	f.IntVar(&featured, "featured", 0, "only the first N featured templates")
	f.BoolVar(&asJSON, "json", false, "print JSON")

	cmd.AddCommand(a.templateShowCmd(), a.templatePreviewCmd(), a.categoriesCmd(), a.tagsCmd())
	return cmd
}

func (a *app) templateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one template",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			t, err := svc.Template(args[0])
			if err != nil {
				return usageError{err}
			}
			return a.printJSON(model.FromTemplate(t))
		},
	}
}

func (a *app) templatePreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <id>",
		Short: "Resolve a template's grid and show its first section",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			t, err := svc.Template(args[0])
			if err != nil {
				return usageError{err}
			}
			pv, err := svc.Preview(a.context(cmd), t, a.net)
			if err != nil {
				return err
			}
			return a.printJSON(model.FromPreview(pv, svc.Resolver().URL))
		},
	}
}

func (a *app) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List template categories",
		Args:  exactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			for _, c := range svc.Catalog().Categories() {
				fmt.Fprintf(w, "%s\t%s\n", c.ID, c.Name)
			}
			return w.Flush()
		},
	}
}

func (a *app) tagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List the tags of community profiles",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			tags, _, err := svc.CommunityTags(a.context(cmd), a.net)
			if err != nil {
				return err
			}
			if len(tags) > 0 {
				_, err = fmt.Fprintln(a.out, strings.Join(tags, "\n"))
			}
			return err
		},
	}
}
