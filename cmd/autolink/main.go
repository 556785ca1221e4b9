package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joeychilson/autolink/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "autolink",
		Short: "Turn keywords in HTML or Markdown into links",
		Long: `autolink injects links for "keyword|url" rules into HTML or Markdown content.
Text inside existing links, scripts, styles and other skipped elements is left alone.

Example:
  autolink link post.html --rules rules.txt
  cat post.md | autolink link --content-type text/markdown --config autolink.yaml
  autolink rules rules.txt`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(newLinkCmd(opts), newRulesCmd())
	return cmd
}

func (o *rootOptions) logger(cmd *cobra.Command) (logger.Logger, error) {
	level, err := logger.ParseLevel(o.logLevel)
	if err != nil {
		return nil, err
	}
	return logger.NewText(cmd.ErrOrStderr(), level), nil
}

// readInput reads the named file, or stdin when no file is given or it is "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}
