// -- cmd/snapshot.go --
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pagescope/pagescope/api/schemas"
	"github.com/pagescope/pagescope/internal/browser/dom"
	"github.com/pagescope/pagescope/internal/browser/session"
	"github.com/pagescope/pagescope/internal/config"
	"github.com/pagescope/pagescope/internal/observability"
)

// newSnapshotCmd creates and configures the `snapshot` command. Input is a
// local HTML file, "-" for stdin, or a live page via --url.
func newSnapshotCmd() *cobra.Command {
	snapshotCmd := &cobra.Command{
		Use:   "snapshot [file|-]",
		Short: "Produce a structured snapshot of a page's interactive elements",
		Long: `Snapshot parses a rendered HTML document (or drives a live page when
--url is given), classifies every element for visibility, interactivity and
occlusion, and emits the resulting tree.`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Flags override config file and environment through viper.
			if err := viper.BindPFlag("snapshot.do_highlight_elements", cmd.Flags().Lookup("highlight")); err != nil {
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			// re-resolve after flag binding
			cfg.SetSnapshotDoHighlightElements(viper.GetBool("snapshot.do_highlight_elements"))

			format, _ := cmd.Flags().GetString("format")
			includeAttrs, _ := cmd.Flags().GetStringSlice("include-attributes")

			var snap *dom.Snapshot
			var err error
			if url, _ := cmd.Flags().GetString("url"); url != "" {
				snap, err = snapshotLive(cmd, url, cfg, logger)
			} else {
				snap, err = snapshotStatic(cmd, args, cfg, logger)
			}
			if err != nil {
				return err
			}

			out, err := renderSnapshot(snap, format, includeAttrs)
			if err != nil {
				return err
			}
			return writeOutput(cmd, out)
		},
	}

	snapshotCmd.Flags().String("url", "", "navigate a live browser to this URL instead of reading a file")
	snapshotCmd.Flags().String("format", "json", "output format: json or clickable")
	snapshotCmd.Flags().Bool("highlight", true, "assign overlay draw operations (and inject them on live pages)")
	snapshotCmd.Flags().StringSlice("include-attributes", []string{"href", "aria-label", "placeholder", "title", "name", "type", "value"},
		"attributes inlined in clickable output")
	snapshotCmd.Flags().StringP("output", "o", "", "write output to a file instead of stdout")
	return snapshotCmd
}

func snapshotStatic(cmd *cobra.Command, args []string, cfg config.Interface, logger *zap.Logger) (*dom.Snapshot, error) {
	src, err := readSource(cmd, args)
	if err != nil {
		return nil, err
	}
	browser := cfg.Browser()
	page, err := dom.LoadPage(src, dom.LoadOptions{
		ViewportWidth:  float64(browser.ViewportWidth),
		ViewportHeight: float64(browser.ViewportHeight),
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	return dom.NewBuilder(cfg.Snapshot(), nil, logger).Build(page), nil
}

func snapshotLive(cmd *cobra.Command, url string, cfg config.Interface, logger *zap.Logger) (*dom.Snapshot, error) {
	ctx := cmd.Context()
	s, err := session.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("starting browser session: %w", err)
	}
	defer s.Close()

	if err := s.Navigate(ctx, url); err != nil {
		return nil, err
	}
	return s.Snapshot(ctx)
}

func readSource(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}

// renderSnapshot serializes a snapshot in the requested format.
func renderSnapshot(snap *dom.Snapshot, format string, includeAttrs []string) (string, error) {
	switch strings.ToLower(format) {
	case "", "json":
		data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(snap.Root, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding snapshot: %w", err)
		}
		return string(data), nil
	case "clickable":
		return schemas.ClickableElementsToString(snap.Root, includeAttrs), nil
	default:
		return "", fmt.Errorf("unknown format %q (want json or clickable)", format)
	}
}

func writeOutput(cmd *cobra.Command, out string) error {
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		if err := os.WriteFile(path, []byte(out+"\n"), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
