package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/database"
	"github.com/mkoziy/biomed-miners/internal/harvest"
	"github.com/mkoziy/biomed-miners/internal/sources/chembl"
	"github.com/mkoziy/biomed-miners/internal/sources/clinicaltrials"
	"github.com/mkoziy/biomed-miners/internal/sources/dailymed"
	"github.com/mkoziy/biomed-miners/internal/sources/geo"
	"github.com/mkoziy/biomed-miners/internal/sources/openfda"
	"github.com/mkoziy/biomed-miners/internal/sources/pubmed"
	"github.com/mkoziy/biomed-miners/internal/sources/rxnav"
	"github.com/mkoziy/biomed-miners/internal/sources/uniprot"
)

func (a *App) sources() []source {
	return []source{
		a.chemblSource(),
		a.clinicalTrialsSource(),
		a.dailyMedSource(),
		a.openFDASource(),
		a.rxNavSource(),
		a.uniProtSource(),
		a.pubMedSource(),
		a.geoSource(),
	}
}

// SourceNames lists every source with a command tree.
func SourceNames() []string {
	return []string{
		chembl.Name, clinicaltrials.Name, dailymed.Name, openfda.Name,
		rxnav.Name, uniprot.Name, pubmed.Name, geo.Name,
	}
}

func (a *App) chemblSource() source {
	return source{
		name:     chembl.Name,
		short:    "ChEMBL molecules",
		schema:   chembl.Schema,
		entities: []entity{{"molecules", (*chembl.Molecule)(nil), "search_to_molecule", "chembl_id"}},
		runner: func(ctx context.Context, db *bun.DB) (harvest.Runner, error) {
			lim, opts := a.client(chembl.Name, chembl.DefaultLimits())
			client := chembl.NewClient(lim, opts, a.logger)
			return chembl.NewHarvester(db, client, a.logger, a.metrics), nil
		},
	}
}

func (a *App) clinicalTrialsSource() source {
	return source{
		name:     clinicaltrials.Name,
		short:    "ClinicalTrials.gov studies",
		schema:   clinicaltrials.Schema,
		entities: []entity{{"clinical_trials", (*clinicaltrials.Trial)(nil), "search_to_trial", "nct_id"}},
		runner: func(ctx context.Context, db *bun.DB) (harvest.Runner, error) {
			lim, opts := a.client(clinicaltrials.Name, clinicaltrials.DefaultLimits())
			client := clinicaltrials.NewClient(lim, opts, a.logger)
			return clinicaltrials.NewHarvester(db, client, a.logger, a.metrics), nil
		},
	}
}

func (a *App) dailyMedSource() source {
	var archiveLabels bool
	return source{
		name:     dailymed.Name,
		short:    "DailyMed structured product labels",
		schema:   dailymed.Schema,
		entities: []entity{{"drugs", (*dailymed.Drug)(nil), "search_to_drugs", "set_id"}, {"ndcs", (*dailymed.NDC)(nil), "", ""}},
		runner: func(ctx context.Context, db *bun.DB) (harvest.Runner, error) {
			lim, opts := a.client(dailymed.Name, dailymed.DefaultLimits())
			client := dailymed.NewClient(lim, opts, a.logger)
			if !archiveLabels {
				return dailymed.NewHarvester(db, client, nil, a.logger, a.metrics), nil
			}
			store, err := a.archive(ctx)
			if err != nil {
				return nil, err
			}
			return dailymed.NewHarvester(db, client, store, a.logger, a.metrics), nil
		},
		harvestFlags: func(cmd *cobra.Command) {
			cmd.Flags().BoolVar(&archiveLabels, "archive-labels", false, "store the SPL XML of new labels in the blob store")
		},
	}
}

func (a *App) openFDASource() source {
	endpoint := string(openfda.Events)
	return source{
		name:   openfda.Name,
		short:  "openFDA drug endpoints",
		schema: openfda.Schema,
		entities: []entity{
			{"drug_events", (*openfda.DrugEvent)(nil), "search_to_events", "safetyreportid"},
			{"drug_labels", (*openfda.DrugLabel)(nil), "search_to_labels", "label_id"},
			{"drug_ndcs", (*openfda.DrugNDC)(nil), "search_to_ndcs", "product_id"},
			{"drug_enforcements", (*openfda.DrugEnforcement)(nil), "search_to_enforcements", "recall_number"},
			{"drugs_at_fda", (*openfda.DrugAtFDA)(nil), "search_to_drugs_at_fda", "application_number"},
		},
		runner: func(ctx context.Context, db *bun.DB) (harvest.Runner, error) {
			ep, err := openfda.ParseEndpoint(endpoint)
			if err != nil {
				return nil, err
			}
			lim, opts := a.client(openfda.Name, openfda.DefaultLimits())
			client := openfda.NewClient(lim, opts, a.logger)
			return openfda.NewHarvester(db, client, ep, a.logger, a.metrics)
		},
		harvestFlags: func(cmd *cobra.Command) {
			names := make([]string, 0, len(openfda.Endpoints))
			for _, ep := range openfda.Endpoints {
				names = append(names, string(ep))
			}
			cmd.Flags().StringVar(&endpoint, "endpoint", endpoint, "endpoint to search: "+strings.Join(names, ", "))
			cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
				_, err := openfda.ParseEndpoint(endpoint)
				return err
			}
		},
	}
}

func (a *App) rxNavSource() source {
	return source{
		name:     rxnav.Name,
		short:    "RxNav concepts and drug classes",
		schema:   rxnav.Schema,
		entities: []entity{{"drugs", (*rxnav.Drug)(nil), "search_to_drugs", "rxcui"}, {"classes", (*rxnav.Class)(nil), "", ""}},
		runner: func(ctx context.Context, db *bun.DB) (harvest.Runner, error) {
			lim, opts := a.client(rxnav.Name, rxnav.DefaultLimits())
			client := rxnav.NewClient(lim, opts, a.logger)
			return rxnav.NewHarvester(db, client, a.logger, a.metrics), nil
		},
	}
}

func (a *App) uniProtSource() source {
	return source{
		name:     uniprot.Name,
		short:    "UniProtKB proteins",
		schema:   uniprot.Schema,
		entities: []entity{{"proteins", (*uniprot.Protein)(nil), "search_to_proteins", "accession"}},
		runner: func(ctx context.Context, db *bun.DB) (harvest.Runner, error) {
			lim, opts := a.client(uniprot.Name, uniprot.DefaultLimits())
			client := uniprot.NewClient(lim, opts, a.logger)
			return uniprot.NewHarvester(db, client, a.logger, a.metrics), nil
		},
	}
}

func validDate(flag, v string) error {
	if v == "" {
		return nil
	}
	if _, err := time.Parse("2006/01/02", v); err != nil {
		return fmt.Errorf("--%s must be YYYY/MM/DD, got %q", flag, v)
	}
	return nil
}

func (a *App) pubMedClient() (*pubmed.Client, error) {
	lim, opts := a.client(pubmed.Name, pubmed.DefaultLimits(a.cfg.EntrezAPIKey))
	return pubmed.NewClient(lim, opts, pubmed.Contact{
		Email:  a.cfg.EntrezEmail,
		Tool:   a.cfg.EntrezTool,
		APIKey: a.cfg.EntrezAPIKey,
	}, a.logger)
}

func (a *App) pubMedSource() source {
	var opts pubmed.HarvestOptions
	s := source{
		name:     pubmed.Name,
		short:    "PubMed publications",
		schema:   pubmed.Schema,
		entities: []entity{{"publications", (*pubmed.Publication)(nil), "search_to_publications", "pmid"}},
		check: func() error {
			return a.cfg.RequireEntrez()
		},
		runner: func(ctx context.Context, db *bun.DB) (harvest.Runner, error) {
			client, err := a.pubMedClient()
			if err != nil {
				return nil, err
			}
			return pubmed.NewHarvester(db, client, opts, a.logger, a.metrics), nil
		},
		harvestFlags: func(cmd *cobra.Command) {
			cmd.Flags().StringVar(&opts.StartDate, "start-date", "", "earliest publication date, YYYY/MM/DD")
			cmd.Flags().StringVar(&opts.EndDate, "end-date", "", "latest publication date, YYYY/MM/DD")
			cmd.Flags().BoolVar(&opts.FullText, "full-text", false, "fetch PMC full text for new articles")
			cmd.Flags().StringVar(&opts.Sort, "sort", "relevance", "esearch sort order: relevance, pub_date, author, journalname")
			cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
				if err := validDate("start-date", opts.StartDate); err != nil {
					return err
				}
				return validDate("end-date", opts.EndDate)
			}
		},
	}
	s.extra = []*cobra.Command{
		a.pubMedYearsCommand(s),
		a.pubMedFullTextCommand(s),
		a.pubMedPMIDsCommand(s),
		a.pubMedUpdateCommand(s),
		a.pubMedQueryCommand(s),
	}
	return s
}

func (a *App) pubMedYearsCommand(s source) *cobra.Command {
	var (
		from, to   int
		maxPerYear int
		opts       pubmed.HarvestOptions
	)
	cmd := &cobra.Command{
		Use:   "harvest-years <query...>",
		Short: "Harvest one publication year at a time",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if to < from {
				return fmt.Errorf("--to %d is before --from %d", to, from)
			}
			ctx := cmd.Context()
			client, err := a.pubMedClient()
			if err != nil {
				return err
			}
			db, err := a.openDB(ctx, s)
			if err != nil {
				return err
			}
			defer db.Close()

			reports, err := pubmed.HarvestYears(ctx, db, client, strings.Join(args, " "), from, to, maxPerYear, opts, a.logger, a.metrics)
			if err != nil {
				a.logger.Error("harvest years", zap.Error(err))
			}
			created := 0
			for _, rep := range reports {
				created += rep.Created
			}
			fmt.Fprintln(cmd.OutOrStdout(), created)
			return nil
		},
	}
	year := time.Now().Year()
	cmd.Flags().IntVar(&from, "from", year, "first publication year")
	cmd.Flags().IntVar(&to, "to", year, "last publication year")
	cmd.Flags().IntVar(&maxPerYear, "max-records", defaultMaxRecords, "maximum number of records per year")
	cmd.Flags().BoolVar(&opts.FullText, "full-text", false, "fetch PMC full text for new articles")
	cmd.Flags().StringVar(&opts.Sort, "sort", "relevance", "esearch sort order")
	return cmd
}

func (a *App) pubMedFullTextCommand(s source) *cobra.Command {
	var (
		batch       int
		recheckDays int
	)
	cmd := &cobra.Command{
		Use:   "full-text",
		Short: "Fetch PMC full text for stored publications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := a.pubMedClient()
			if err != nil {
				return err
			}
			db, err := a.openDB(ctx, s)
			if err != nil {
				return err
			}
			defer db.Close()

			recheck := time.Duration(recheckDays) * 24 * time.Hour
			n, err := pubmed.BackfillFullText(ctx, db, client, batch, recheck, a.logger)
			if err != nil {
				a.logger.Error("full text backfill", zap.Error(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
	cmd.Flags().IntVar(&batch, "batch-size", 200, "publications to check")
	cmd.Flags().IntVar(&recheckDays, "recheck-days", 30, "days before a publication without text is checked again")
	return cmd
}

func (a *App) pubMedPMIDsCommand(s source) *cobra.Command {
	var (
		fullText bool
		term     string
	)
	cmd := &cobra.Command{
		Use:   "download-pmids <pmid...>",
		Short: "Store specific PMIDs under one search term",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := a.pubMedClient()
			if err != nil {
				return err
			}
			db, err := a.openDB(ctx, s)
			if err != nil {
				return err
			}
			defer db.Close()

			h := pubmed.NewPMIDHarvester(db, client, args, fullText, a.logger, a.metrics)
			rep, err := h.Run(ctx, term, 0)
			if err != nil {
				a.logger.Error("download pmids", zap.Error(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), rep.Created)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fullText, "full-text", false, "fetch PMC full text")
	cmd.Flags().StringVar(&term, "search-term", "Manually Added by PMID", "search term to link the articles to")
	return cmd
}

func (a *App) pubMedUpdateCommand(s source) *cobra.Command {
	var (
		batch       int
		recheckDays int
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Fill missing PMCIDs and DOIs from esummary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := a.pubMedClient()
			if err != nil {
				return err
			}
			db, err := a.openDB(ctx, s)
			if err != nil {
				return err
			}
			defer db.Close()

			recheck := time.Duration(recheckDays) * 24 * time.Hour
			n, err := pubmed.UpdateIdentifiers(ctx, db, client, batch, recheck, a.logger)
			if err != nil {
				a.logger.Error("identifier update", zap.Error(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
	cmd.Flags().IntVar(&batch, "batch-size", 200, "publications per esummary request")
	cmd.Flags().IntVar(&recheckDays, "recheck-days", 30, "days before a publication is checked again")
	return cmd
}

func (a *App) pubMedQueryCommand(s source) *cobra.Command {
	var (
		summarize bool
		search    string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "query [keyword]",
		Short: "List stored publications by keyword or search term",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !summarize && search == "" && len(args) == 0 {
				return errors.New("give a keyword, --search or --summarize")
			}
			ctx := cmd.Context()
			db, err := a.openDB(ctx, s)
			if err != nil {
				return err
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			if summarize {
				sum, err := pubmed.Summarize(ctx, db)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "publications\t%d\n", sum.Publications)
				fmt.Fprintf(out, "search_terms\t%d\n", sum.SearchTerms)
				fmt.Fprintf(out, "full_text\t%d\t%.1f%%\n", sum.WithFullText, 100*sum.FullTextShare())
				fmt.Fprintf(out, "pub_date\t%s\t%s\n", dateOrDash(sum.Earliest), dateOrDash(sum.Latest))
			}

			var pubs []pubmed.Publication
			switch {
			case search != "":
				pubs, err = pubmed.PublicationsForSearch(ctx, db, search)
			case len(args) == 1:
				pubs, err = pubmed.FindByKeyword(ctx, db, args[0], limit)
			default:
				return nil
			}
			if err != nil {
				return err
			}
			for _, p := range pubs {
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", p.PMID, deref(p.PMCID), dateOrDash(p.PubDate), p.Title)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&summarize, "summarize", false, "print database totals")
	cmd.Flags().StringVar(&search, "search", "", "list publications stored under this search query")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum keyword matches, 0 for all")
	return cmd
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func dateOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

func (a *App) geoSource() source {
	s := source{
		name:     geo.Name,
		short:    "GEO series from the GEOmetadb dump",
		schema:   geo.Schema,
		entities: []entity{{"series", (*geo.Series)(nil), "search_to_series", "gse"}},
	}
	s.runner = func(ctx context.Context, db *bun.DB) (harvest.Runner, error) {
		dump, err := database.OpenReadOnly(filepath.Join(a.cfg.DataDir, geo.DumpFile))
		if err != nil {
			return nil, fmt.Errorf("open GEOmetadb (run geo download first): %w", err)
		}
		return closingRunner{
			Runner: geo.NewHarvester(db, geo.NewSearcher(dump, a.logger), a.logger, a.metrics),
			close:  dump.Close,
		}, nil
	}

	var force, archive bool
	download := &cobra.Command{
		Use:   "download",
		Short: "Download and extract the GEOmetadb dump",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			lim, opts := a.client(geo.Name, geo.DefaultLimits())
			opts.Timeout = 30 * time.Minute

			var d *geo.Downloader
			if archive {
				store, err := a.archive(ctx)
				if err != nil {
					return err
				}
				d = geo.NewDownloader(lim, opts, store, a.logger)
			} else {
				d = geo.NewDownloader(lim, opts, nil, a.logger)
			}

			path, err := d.Download(ctx, a.cfg.DataDir, force)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	download.Flags().BoolVar(&force, "force", false, "replace an existing dump")
	download.Flags().BoolVar(&archive, "archive", true, "keep the compressed dump in the blob store")
	s.extra = []*cobra.Command{download}
	return s
}

// closingRunner releases a resource once its harvest finishes.
type closingRunner struct {
	harvest.Runner
	close func() error
}

func (r closingRunner) Run(ctx context.Context, query string, maxRecords int) (harvest.Report, error) {
	defer r.close()
	return r.Runner.Run(ctx, query, maxRecords)
}
