package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Ahmed-Sermani/motorec/catalog"
	"github.com/Ahmed-Sermani/motorec/graph"
	"github.com/Ahmed-Sermani/motorec/service/popularity"
	"github.com/spf13/cobra"
)

func (a *app) newRankCmd() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Print the most popular motorcycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			sess, err := a.newSession(cmd.Context(), store, nil)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "RANK\tITEM\tNAME\tSCORE")
			for i, it := range sess.Popular(top) {
				item, _ := sess.Item(it.ItemID)
				fmt.Fprintf(w, "%d\t%s\t%s\t%.4f\n", i+1, it.ItemID, item.Name, it.Score)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "The number of items to print (0 prints all)")
	return cmd
}

func (a *app) newRecommendCmd() *cobra.Command {
	var (
		top        int
		experience string
		profile    graph.Profile
	)
	cmd := &cobra.Command{
		Use:   "recommend <actor>",
		Short: "Recommend motorcycles to a rider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			sess, err := a.newSession(cmd.Context(), store, nil)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			profile.Experience = graph.ParseExperience(experience)
			res := sess.RecommendFor(cmd.Context(), args[0], top, &profile)
			if res.Err != nil {
				a.logger.WithField("err", res.Err).Warn("recommendations degraded")
			}

			w := table(cmd.OutOrStdout())
			fmt.Fprintf(w, "# %s\n", res.Kind)
			fmt.Fprintln(w, "ITEM\tNAME\tSCORE\tREASON")
			for _, rec := range res.Items {
				item, _ := sess.Item(rec.ItemID)
				fmt.Fprintf(w, "%s\t%s\t%.4f\t%s\n", rec.ItemID, item.Name, rec.Score, rec.Reason)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&top, "top", 5, "The number of recommendations to print (0 prints all)")
	cmd.Flags().StringVar(&experience, "experience", "", "Riding experience: beginner, intermediate or expert")
	cmd.Flags().Float64Var(&profile.BudgetMin, "budget-min", 0, "The lowest acceptable price")
	cmd.Flags().Float64Var(&profile.BudgetMax, "budget-max", 0, "The highest acceptable price")
	cmd.Flags().StringSliceVar(&profile.Categories, "category", nil, "Acceptable categories (repeatable)")
	cmd.Flags().StringSliceVar(&profile.Brands, "brand", nil, "Acceptable brands (repeatable)")
	return cmd
}

func (a *app) newSimilarCmd() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "similar <item>",
		Short: "Print the motorcycles most similar to an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			sess, err := a.newSession(cmd.Context(), store, nil)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ITEM\tNAME\tSIMILARITY")
			for _, it := range sess.SimilarItems(args[0], top) {
				item, _ := sess.Item(it.ItemID)
				fmt.Fprintf(w, "%s\t%s\t%.4f\n", it.ItemID, item.Name, it.Score)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&top, "top", 5, "The number of items to print, including the item itself")
	return cmd
}

func (a *app) newSearchCmd() *cobra.Command {
	var (
		top    int
		phrase bool
	)
	cmd := &cobra.Command{
		Use:   "search [terms...]",
		Short: "Search the catalog, most popular matches first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			cat, err := a.openCatalog(store)
			if err != nil {
				return err
			}
			defer func() { _ = cat.Close() }()

			svc, err := popularity.NewService(popularity.Config{
				Interactions:   store,
				Catalog:        cat,
				Ranker:         a.cfg.RankerConfig(),
				UpdateInterval: a.cfg.Popularity.UpdateInterval,
				Logger:         a.logger.WithField("service", "popularity"),
			})
			if err != nil {
				return err
			}
			if _, err = svc.UpdateScores(cmd.Context()); err != nil {
				return err
			}

			q := catalog.Query{Expression: strings.Join(args, " ")}
			if phrase {
				q.Type = catalog.QueryTypePhrase
			}
			it, err := cat.Search(q)
			if err != nil {
				return err
			}
			defer func() { _ = it.Close() }()

			w := table(cmd.OutOrStdout())
			fmt.Fprintf(w, "# %d matches\n", it.TotalCount())
			fmt.Fprintln(w, "ITEM\tNAME\tBRAND\tCATEGORY\tPOPULARITY")
			for n := 0; (top <= 0 || n < top) && it.Next(); n++ {
				item := it.Item()
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.4f\n", item.ID, item.Name, item.Brand, item.Category, item.Popularity)
			}
			if err = it.Error(); err != nil {
				return err
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "The number of matches to print (0 prints all)")
	cmd.Flags().BoolVar(&phrase, "phrase", false, "Match the terms as an exact phrase")
	return cmd
}

func table(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}
