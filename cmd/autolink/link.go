package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joeychilson/autolink/service"
)

type linkOptions struct {
	rulesFile   string
	configFile  string
	maxLinks    int
	contentType string
	url         string
	view        string
	stats       bool
}

func newLinkCmd(root *rootOptions) *cobra.Command {
	opts := &linkOptions{}

	cmd := &cobra.Command{
		Use:   "link [file]",
		Short: "Link keywords in content and write the result to stdout",
		Long: `Link reads content from a file or stdin and writes it to stdout with the
first occurrence of each keyword turned into a link. Longer keywords are linked first.

Rules come from --rules (one "keyword|url" per line), from --config, or both;
--rules replaces the configured rules when given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(cmd, args, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.rulesFile, "rules", "r", "", "file with keyword|url rules, one per line")
	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	cmd.Flags().IntVar(&opts.maxLinks, "max-links", 0, "links per keyword (default from config, or 1)")
	cmd.Flags().StringVarP(&opts.contentType, "content-type", "t", "text/html", "content type (text/html, text/markdown)")
	cmd.Flags().StringVar(&opts.url, "url", "", "page URL used to select site configuration")
	cmd.Flags().StringVar(&opts.view, "view", "", "view the content is rendered for (single, archive, feed, search, admin)")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "print per-keyword link counts to stderr")

	return cmd
}

func runLink(cmd *cobra.Command, args []string, root *rootOptions, opts *linkOptions) error {
	if opts.rulesFile == "" && opts.configFile == "" {
		return errors.New("no rules given: use --rules or --config")
	}

	log, err := root.logger(cmd)
	if err != nil {
		return err
	}

	var svc *service.Service
	if opts.configFile != "" {
		svc, err = service.NewFromFile(opts.configFile)
	} else {
		svc, err = service.New(nil)
	}
	if err != nil {
		return err
	}
	defer svc.Close()
	svc.WithLogger(log).WithCache(nil)

	var raw string
	if opts.rulesFile != "" {
		data, err := os.ReadFile(opts.rulesFile)
		if err != nil {
			return fmt.Errorf("failed to read rules: %w", err)
		}
		raw = string(data)
	}

	content, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	resp, err := svc.Link(cmd.Context(), &service.Request{
		Content:     content,
		ContentType: opts.contentType,
		URL:         opts.url,
		View:        opts.view,
		Rules:       raw,
		MaxLinks:    opts.maxLinks,
	})
	if err != nil {
		return err
	}

	if _, err := fmt.Fprint(cmd.OutOrStdout(), resp.Content); err != nil {
		return err
	}

	if opts.stats {
		stderr := cmd.ErrOrStderr()
		if !resp.Applied {
			fmt.Fprintln(stderr, "not linked: view excluded, no rules, or empty content")
		}
		for _, kr := range resp.Keywords {
			switch {
			case kr.URLRejected:
				fmt.Fprintf(stderr, "%-30s rejected url %s\n", kr.Keyword, kr.URL)
			default:
				fmt.Fprintf(stderr, "%-30s %d link(s) -> %s\n", kr.Keyword, kr.Links, kr.URL)
			}
		}
		fmt.Fprintf(stderr, "total: %d link(s)\n", resp.Links)
	}

	return nil
}
