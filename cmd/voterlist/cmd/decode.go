package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/VotersList/internal/thaana"
)

func newDecodeCmd() *cobra.Command {
	var (
		reverse bool
		table   bool
	)

	c := &cobra.Command{
		Use:   "decode [text...]",
		Short: "Decode transliterated Thaana",
		Long: `Decode maps phonetic-keyboard Latin text to Thaana, the way the
Address_DV and Name_DV columns are produced. Arguments are decoded as one
line; without arguments each line of standard input is decoded.

Text extracted from the registers is mirrored, so pass --reverse for it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if table {
				for _, k := range thaana.Keys() {
					r, _ := thaana.Lookup(k)
					fmt.Fprintf(out, "%c\t%c\tU+%04X\n", k, r, r)
				}
				return nil
			}

			if len(args) > 0 {
				fmt.Fprintln(out, thaana.Decode(strings.Join(args, " "), reverse))
				return nil
			}

			sc := bufio.NewScanner(cmd.InOrStdin())
			for sc.Scan() {
				fmt.Fprintln(out, thaana.Decode(sc.Text(), reverse))
			}
			return sc.Err()
		},
	}

	c.Flags().BoolVarP(&reverse, "reverse", "r", false, "reverse the text before mapping (register columns)")
	c.Flags().BoolVar(&table, "table", false, "print the key table and exit")
	return c
}
