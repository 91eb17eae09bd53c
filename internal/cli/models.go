package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/promptlab/promptlab/internal/cost"
	"github.com/promptlab/promptlab/internal/domain"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List supported providers and known model rates",
	Run: func(cmd *cobra.Command, args []string) {
		printModels(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func printModels(w io.Writer) {
	fmt.Fprintln(w, "Providers:")
	for _, p := range domain.Providers() {
		fmt.Fprintf(w, "  - %s\n", p)
	}

	calc := cost.NewCalculator()
	fmt.Fprintln(w, "\nKnown model rates (USD per 1K tokens):")
	for _, model := range calc.Models() {
		fmt.Fprintf(w, "  %-34s $%.5f\n", model, calc.Rate(model))
	}
	fmt.Fprintf(w, "\nUnknown models are estimated at $%.5f per 1K tokens.\n", cost.DefaultRate)
}
