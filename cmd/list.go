package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/candidate-console/internal/filtering"
	"github.com/spigell/candidate-console/internal/presence"
	"github.com/spigell/candidate-console/internal/recruiting"
	"github.com/spigell/candidate-console/internal/store"
	"github.com/spigell/candidate-console/internal/view"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print one page of candidates",
	Run: func(cmd *cobra.Command, _ []string) {
		runList(cmd)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("search", "s", "", "case-insensitive text over name, role, department, email and skills")
	listCmd.Flags().StringSlice("status", nil, "statuses to include (active, pending); default all")
	listCmd.Flags().StringSlice("department", nil, "departments to include; default all")
	listCmd.Flags().Float64("min-score", 0, "minimum score (0-100); candidates without a score pass")
	listCmd.Flags().String("sort", "", "sort field: name, role, department, status, score")
	listCmd.Flags().Bool("desc", false, "sort descending")
	listCmd.Flags().Int("page", 1, "page number, starting at 1")
	listCmd.Flags().Int("page-size", 0, "page size (default from view.page-size)")
	listCmd.Flags().Bool("no-presence", false, "do not fetch online status")
}

func runList(cmd *cobra.Command) {
	ctx := context.Background()
	e := bootstrap("stderr")
	defer e.logger.Sync()

	query, err := listQuery(cmd, e.config.View.PageSize)
	if err != nil {
		e.logger.Fatal("invalid list flags", zap.Error(err))
	}

	candidates, err := e.client.GetCandidates(ctx)
	if err != nil {
		e.logger.Fatal("getting candidates", zap.Error(err))
	}

	st := store.New(e.metrics)
	st.ReplaceAll(candidates)

	if noPresence, _ := cmd.Flags().GetBool("no-presence"); !noPresence {
		tracker := presence.New(presence.Config{Token: e.client.Token()}, presence.Deps{API: e.client, Store: st, Logger: e.logger})
		if err := tracker.PollOnce(ctx); err != nil {
			e.logger.Warn("skipping online status", zap.Error(err))
		}
	}

	proj := view.NewEngine(e.logger.Named("view")).Project(st.Snapshot(), query)
	e.logger.Debug("projection", zap.Int("total", proj.Total), zap.Int("page", proj.Page), zap.Int("pages", proj.Pages))

	printCandidates(proj, activeFilters(query))
}

// activeFilters describes the enabled filter steps of the query. The status
// step is always enabled, so it is only listed when it excludes something.
func activeFilters(query view.Query) []string {
	var out []string
	for _, s := range filtering.Active(filtering.Describe(filtering.Steps(query.Search, query.Criteria))) {
		if s.Name == "statuses" && !excludesStatus(query.Criteria) {
			continue
		}
		out = append(out, s.String())
	}
	return out
}

func excludesStatus(c filtering.Criteria) bool {
	for _, s := range recruiting.Statuses() {
		if !c.StatusIncluded(s) {
			return true
		}
	}
	return false
}

func listQuery(cmd *cobra.Command, defaultPageSize int) (view.Query, error) {
	flags := cmd.Flags()

	search, _ := flags.GetString("search")
	statuses, _ := flags.GetStringSlice("status")
	departments, _ := flags.GetStringSlice("department")
	minScore, _ := flags.GetFloat64("min-score")
	sortField, _ := flags.GetString("sort")
	desc, _ := flags.GetBool("desc")
	page, _ := flags.GetInt("page")
	pageSize, _ := flags.GetInt("page-size")

	patch := filtering.Patch{MinScore: &minScore}

	if len(statuses) > 0 {
		patch.Statuses = make(map[recruiting.Status]bool)
		for _, s := range recruiting.Statuses() {
			patch.Statuses[s] = false
		}
		for _, s := range statuses {
			status := recruiting.Status(s)
			if !status.Valid() {
				return view.Query{}, fmt.Errorf("%w: %q", filtering.ErrUnknownStatus, s)
			}
			patch.Statuses[status] = true
		}
	}

	if len(departments) > 0 {
		patch.Departments = make(map[string]bool)
		for _, d := range departments {
			patch.Departments[d] = true
		}
	}

	criteria, err := filtering.NewCriteria().Merge(patch)
	if err != nil {
		return view.Query{}, err
	}

	field, err := view.ParseSortField(sortField)
	if err != nil {
		return view.Query{}, err
	}
	spec := view.SortSpec{Field: field}
	if desc {
		spec.Direction = view.Desc
	}

	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	pager := view.NewPager(pageSize)
	pager.Page = max(page-1, 0)

	return view.Query{Search: search, Criteria: criteria, Sort: spec, Pager: pager}, nil
}

func printCandidates(proj view.Projection, filters []string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tROLE\tDEPARTMENT\tSTATUS\tSCORE\tONLINE\tTRANSCRIPT")
	for _, c := range proj.Items {
		score := "-"
		if c.Score != nil {
			score = fmt.Sprintf("%.0f", *c.Score)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%t\t%t\n",
			c.ID, c.Name, c.Role, c.Department, c.Status, score, c.IsOnline, c.HasTranscript)
	}
	w.Flush()

	page := 0
	if proj.Pages > 0 {
		page = proj.Page + 1
	}
	fmt.Printf("\npage %d/%d, %d candidates\n", page, proj.Pages, proj.Total)
	if len(filters) > 0 {
		fmt.Printf("filters: %s\n", strings.Join(filters, "; "))
	}
}
