package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/safing/mibis/sink"
)

var (
	unpackMaxBits uint64
	unpackWidth   int

	unpackCmd = &cobra.Command{
		Use:   "unpack <file>",
		Short: "Print the bits of a packed bit file",
		Long:  "Prints the bits of a file written by generate as 0 and 1, most significant bit of every byte first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() {
				_ = f.Close()
			}()

			bits, err := sink.Unpack(bufio.NewReader(f), unpackMaxBits)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			return printBits(cmd.OutOrStdout(), bits, unpackWidth)
		},
	}
)

func init() {
	rootCmd.AddCommand(unpackCmd)

	unpackCmd.Flags().Uint64VarP(&unpackMaxBits, "bits", "n", 0, "maximum number of bits to print, 0 prints all")
	unpackCmd.Flags().IntVarP(&unpackWidth, "width", "w", 64, "bits per line, 0 prints a single line")
}

func printBits(w io.Writer, bits []byte, width int) error {
	out := bufio.NewWriter(w)
	line := make([]byte, 0, width+1)
	for i, bit := range bits {
		line = append(line, '0'+bit)
		if width > 0 && (i+1)%width == 0 {
			line = append(line, '\n')
			if _, err := out.Write(line); err != nil {
				return err
			}
			line = line[:0]
		}
	}
	if len(line) > 0 || len(bits) == 0 {
		line = append(line, '\n')
		if _, err := out.Write(line); err != nil {
			return err
		}
	}
	return out.Flush()
}
