package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/research"
	"github.com/sells-group/lead-engine/internal/session"
)

// Enrichment scopes accepted by --enrich.
const (
	enrichNone    = "none"
	enrichPrimary = "primary"
	enrichAll     = "all"
)

var (
	researchCompany  string
	researchLocation string
	researchInput    string
	researchEnrich   string
	researchDispatch bool
	researchFormat   string
)

// researchReport is the CLI view of one researched company.
type researchReport struct {
	Company  string                 `json:"company" yaml:"company"`
	Location string                 `json:"location,omitempty" yaml:"location,omitempty"`
	Overview string                 `json:"overview" yaml:"overview"`
	Leads    []model.Lead           `json:"leads" yaml:"leads"`
	Sources  []model.GroundingChunk `json:"sources" yaml:"sources"`
	Dispatch *session.DispatchState `json:"dispatch,omitempty" yaml:"dispatch,omitempty"`
	Error    string                 `json:"error,omitempty" yaml:"error,omitempty"`
}

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Research a company and list its contacts",
	Long:  "Asks the AI search backend for a company overview and contacts, optionally enriches them and sends them to the CRM webhook.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkEnrichScope(researchEnrich); err != nil {
			return err
		}
		if researchFormat != "json" && researchFormat != "yaml" {
			return eris.Errorf("research: --format must be json or yaml, got %q", researchFormat)
		}

		companies, err := researchTargets()
		if err != nil {
			return err
		}

		if researchDispatch {
			if err := cfg.Validate(config.ModeDispatch); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx, config.ModeResearch)
		if err != nil {
			return err
		}
		defer env.Close()

		reports := make([]researchReport, 0, len(companies))
		var failed int
		for _, c := range companies {
			rep := researchOne(ctx, env, c)
			if rep.Error != "" {
				failed++
			}
			reports = append(reports, rep)
		}

		var out any = reports
		if len(reports) == 1 {
			out = reports[0]
		}
		if err := writeOutput(os.Stdout, researchFormat, out); err != nil {
			return err
		}

		if failed > 0 {
			return eris.Errorf("research: %d of %d companies failed", failed, len(companies))
		}
		return nil
	},
}

func init() {
	researchCmd.Flags().StringVar(&researchCompany, "company", "", "company name or website")
	researchCmd.Flags().StringVar(&researchLocation, "location", "", "optional location focus")
	researchCmd.Flags().StringVar(&researchInput, "input", "", "YAML file listing companies (name, location)")
	researchCmd.Flags().StringVar(&researchEnrich, "enrich", enrichNone, "enrich contacts: none, primary or all")
	researchCmd.Flags().BoolVar(&researchDispatch, "dispatch", false, "send the leads to the CRM webhook")
	researchCmd.Flags().StringVar(&researchFormat, "format", "json", "output format: json or yaml")
	rootCmd.AddCommand(researchCmd)
}

func checkEnrichScope(scope string) error {
	switch scope {
	case enrichNone, enrichPrimary, enrichAll:
		return nil
	default:
		return eris.Errorf("research: --enrich must be none, primary or all, got %q", scope)
	}
}

// researchTargets resolves --company or --input into a company list.
func researchTargets() ([]model.Company, error) {
	if researchInput != "" {
		return loadCompanies(researchInput)
	}
	c := model.Company{Name: researchCompany, Location: researchLocation}.Trimmed()
	if c.Name == "" {
		return nil, eris.New(research.EmptyCompanyMessage)
	}
	return []model.Company{c}, nil
}

// loadCompanies reads a YAML list of companies. Entries without a name
// are skipped.
func loadCompanies(path string) ([]model.Company, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "research: read %s", path)
	}
	var raw []model.Company
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(err, "research: parse %s", path)
	}

	out := make([]model.Company, 0, len(raw))
	for _, c := range raw {
		c = c.Trimmed()
		if c.Name == "" {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, eris.Errorf("research: no companies in %s", path)
	}
	return out, nil
}

// researchOne runs research, enrichment and dispatch for one company. A
// failure is reported in the returned report.
func researchOne(ctx context.Context, env *leadEnv, c model.Company) researchReport {
	log := zap.L().With(zap.String("company", c.Name))
	rep := researchReport{Company: c.Name, Location: c.Location}

	q := research.Query{Company: c.Name, Location: c.Location}
	res, err := env.Research.Run(ctx, q)
	if err != nil {
		log.Error("research failed", zap.Error(err))
		rep.Error = research.UserMessage
		rep.Leads = []model.Lead{}
		rep.Sources = []model.GroundingChunk{}
		return rep
	}

	sess := session.New()
	sess.Commit(q, res)

	if researchEnrich != enrichNone {
		sel := sess.Select(researchEnrich == enrichPrimary)
		if err := sess.EnrichMany(ctx, sel, env.Enrichment, env.Batch); err != nil {
			log.Warn("enrichment interrupted", zap.Error(err))
		}
	}

	if researchDispatch && env.CRM != nil {
		if err := sess.Dispatch(ctx, env.CRM); err != nil {
			log.Error("dispatch failed", zap.Error(err))
		}
		state := sess.DispatchState()
		rep.Dispatch = &state
	}

	snap := sess.Snapshot()
	rep.Overview = snap.Overview
	rep.Leads = snap.Leads
	rep.Sources = snap.Sources
	return rep
}

func writeOutput(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode json")
		}
		return nil
	}
}
