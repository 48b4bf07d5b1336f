package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/moodlens/internal/suggest"
	"github.com/andresmejia3/moodlens/internal/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect or manage the suggestion catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the active suggestion catalog",
	Run: func(cmd *cobra.Command, args []string) {
		cat, source, err := loadCatalog(cmd.Context())
		if err != nil {
			utils.Die("Failed to load suggestion catalog", err, nil)
		}
		fmt.Fprintf(os.Stderr, "📚 Catalog source: %s\n", source)
		printCatalog(os.Stdout, cat)
	},
}

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the active catalog as YAML to stdout",
	Run: func(cmd *cobra.Command, args []string) {
		cat, _, err := loadCatalog(cmd.Context())
		if err != nil {
			utils.Die("Failed to load suggestion catalog", err, nil)
		}
		if err := writeCatalogYAML(os.Stdout, cat); err != nil {
			utils.Die("Failed to encode catalog", err, nil)
		}
	},
}

var catalogImportCmd = &cobra.Command{
	Use:         "import <file>",
	Short:       "Replace the stored catalog with a YAML file",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotationDB: ""},
	Run: func(cmd *cobra.Command, args []string) {
		cat, err := suggest.LoadCatalogFile(args[0])
		if err != nil {
			utils.Die("Failed to read catalog", err, nil)
		}
		n, err := DB.ReplaceCatalog(cmd.Context(), cat)
		if err != nil {
			utils.Die("Failed to store catalog", err, nil)
		}
		fmt.Fprintf(os.Stderr, "✅ Imported %d suggestions for %d emotions\n", n, len(cat.Labels()))
	},
}

func init() {
	catalogCmd.AddCommand(catalogListCmd, catalogExportCmd, catalogImportCmd)
	rootCmd.AddCommand(catalogCmd)
}

func printCatalog(out io.Writer, cat *suggest.Catalog) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "EMOTION\t#\tDESCRIPTION\tURL")
	fmt.Fprintln(w, "-------\t-\t-----------\t---")

	for _, l := range cat.Labels() {
		list, _ := cat.Lookup(l)
		for i, e := range list {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", l, i+1, e.Description, e.URL)
		}
	}
	w.Flush()
}

// writeCatalogYAML emits labels in enum order so exports diff cleanly.
func writeCatalogYAML(out io.Writer, cat *suggest.Catalog) error {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, l := range cat.Labels() {
		list, _ := cat.Lookup(l)
		var val yaml.Node
		if err := val.Encode(list); err != nil {
			return err
		}
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: string(l)},
			&val,
		)
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
