package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/encodeous/kdtm/protocol"
	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:     "decode <hex>",
	Aliases: []string{"d"},
	Short:   "Decodes a hex encoded kdtm frame",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frame, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(args[0]), " ", ""))
		if err != nil {
			return err
		}
		h, err := protocol.Decode(frame)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n%s\n", h.Type(), 1+h.SerializedSize(), h.String())
		return nil
	},
	GroupID: "kd",
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}
