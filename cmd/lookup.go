package main

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/pkg/contactout"
)

var (
	lookupName    string
	lookupRole    string
	lookupCompany string
	lookupFormat  string
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Look up a person's revealed emails and phones in ContactOut",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(config.ModeLookup); err != nil {
			return err
		}
		name := strings.TrimSpace(lookupName)
		if name == "" {
			return eris.New("lookup: --name is required")
		}

		data, err := newContactOut().Search(cmd.Context(), contactout.PersonQuery{
			Name:    name,
			Role:    strings.TrimSpace(lookupRole),
			Company: strings.TrimSpace(lookupCompany),
		})
		if err != nil {
			return eris.New(cfg.Redact(err.Error()))
		}
		if data == nil {
			data = &contactout.ContactData{Emails: []string{}, Phones: []string{}}
		}
		return writeOutput(os.Stdout, lookupFormat, data)
	},
}

func init() {
	lookupCmd.Flags().StringVar(&lookupName, "name", "", "person's full name")
	lookupCmd.Flags().StringVar(&lookupRole, "role", "", "job title to match")
	lookupCmd.Flags().StringVar(&lookupCompany, "company", "", "company to match")
	lookupCmd.Flags().StringVar(&lookupFormat, "format", "json", "output format: json or yaml")
	rootCmd.AddCommand(lookupCmd)
}
