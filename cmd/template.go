package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caleslawncare/quote-gateway/internal/model"
	"github.com/caleslawncare/quote-gateway/internal/quote"
)

var (
	templateFile   string
	templateRender bool
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Email template tools",
}

var templateCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Parse an email template and report its placeholders",
	RunE: func(cmd *cobra.Command, args []string) error {
		tmpl, err := quote.LoadTemplate(templateFile)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		name := templateFile
		if name == "" {
			name = "(built-in)"
		}
		fmt.Fprintf(out, "template: %s\n", name)
		fmt.Fprintf(out, "uses:     %s\n", strings.Join(tmpl.Uses(), ", "))
		if missing := tmpl.Missing(); len(missing) > 0 {
			fmt.Fprintf(out, "missing:  %s\n", strings.Join(missing, ", "))
		}

		if !templateRender {
			return nil
		}

		email, err := quote.NewComposer(tmpl, "preview@localhost", "preview@localhost").Compose(sampleQuote)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nsubject:  %s\n\n%s\n", email.Subject, email.HTML)
		return nil
	},
}

var sampleQuote = model.QuoteRequest{
	FirstName: "Jane",
	LastName:  "Sample",
	Email:     "jane@example.com",
	Phone:     "(309) 555-0100",
	Service:   "Spring cleanup",
	Message:   "Front & back yard, <about> half an acre.",
}

func init() {
	templateCheckCmd.Flags().StringVar(&templateFile, "file", "", "Template file (default: built-in template)")
	templateCheckCmd.Flags().BoolVar(&templateRender, "render", false, "Render the template with sample values")
	templateCmd.AddCommand(templateCheckCmd)
}
