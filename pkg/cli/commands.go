package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-docreport/pkg/letters"
	"github.com/benjaminschreck/go-docreport/pkg/report"
)

func (cli *CLI) manifest() (*report.Manifest, error) {
	return report.LoadManifest(cli.opts.Fs, cli.cfg.Template.Manifest)
}

func (cli *CLI) paths() report.Paths {
	return report.Paths{
		Template: cli.cfg.Template.Path,
		WorkDir:  cli.cfg.Template.WorkDir,
		Output:   cli.cfg.Template.Output,
	}
}

func (cli *CLI) newReportCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate the weekly status report",
		Long: `Fetch the latest builds, open defects and task lists, then fill the
report template and write the finished document. The report is uploaded
when publishing is enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			day, err := cli.reportDate(date)
			if err != nil {
				return err
			}
			m, err := cli.manifest()
			if err != nil {
				return err
			}

			collab, err := cli.opts.Collaborators(ctx, cli.cfg, cli.opts.Fs, cli.log)
			if err != nil {
				return err
			}
			if err := collab.Verify(ctx, Jenkins, Jira, Confluence); err != nil {
				return err
			}

			gen := report.NewGenerator(cli.opts.Fs, m, cli.paths(), report.Sources{
				Builds:    collab.Builds,
				Issues:    collab.Issues,
				Wiki:      collab.Wiki,
				Publisher: collab.Publisher,
			})
			res, err := gen.Generate(ctx, day)
			if err != nil {
				return err
			}

			fmt.Fprintf(cli.opts.Output, "Report written to %s\n", res.Output)
			if res.Location != "" {
				fmt.Fprintf(cli.opts.Output, "Published to %s\n", res.Location)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "last day of the reported week (YYYY-MM-DD), defaults to today")
	return cmd
}

func (cli *CLI) newLettersCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "letters",
		Short: "Render the weekly notification letters",
		Long: `Render the autotest summary letter and the open defect letter as HTML
into the configured output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			day, err := cli.reportDate(date)
			if err != nil {
				return err
			}
			m, err := cli.manifest()
			if err != nil {
				return err
			}
			templates, err := letters.LoadTemplates(cli.opts.Fs, cli.cfg.Letters.TemplatesDir)
			if err != nil {
				return err
			}

			collab, err := cli.opts.Collaborators(ctx, cli.cfg, cli.opts.Fs, cli.log)
			if err != nil {
				return err
			}
			if err := collab.Verify(ctx, Jenkins, Jira); err != nil {
				return err
			}

			gen := letters.NewGenerator(cli.opts.Fs, letters.Options{
				Config:    m.Letters,
				Templates: templates,
				Highlight: m.Highlight(),
				OutputDir: cli.cfg.Letters.OutputDir,
			}, collab.Builds, collab.Issues)
			written, err := gen.Generate(ctx, day)
			if err != nil {
				return err
			}

			for _, path := range written {
				fmt.Fprintf(cli.opts.Output, "Letter written to %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "last day of the reported week (YYYY-MM-DD), defaults to today")
	return cmd
}

func (cli *CLI) newValidateCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the template and the collaborator credentials",
		Long: `Check that the report template carries every anchor of the manifest and
that the build server, issue tracker and wiki accept the configured
credentials. Nothing is generated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			m, err := cli.manifest()
			if err != nil {
				return err
			}

			gen := report.NewGenerator(cli.opts.Fs, m, cli.paths(), report.Sources{})
			if err := gen.ValidateTemplate(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cli.opts.Output, "Template %s is valid\n", cli.cfg.Template.Path)

			if offline {
				return nil
			}
			collab, err := cli.opts.Collaborators(ctx, cli.cfg, cli.opts.Fs, cli.log)
			if err != nil {
				return err
			}
			if err := collab.Verify(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cli.opts.Output, "Credentials accepted")
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "skip the credential checks")
	return cmd
}

func (cli *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cli.opts.Output, "docreport %s\n", cli.opts.Version)
		},
	}
}
