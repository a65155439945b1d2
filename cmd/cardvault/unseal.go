package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/iconidentify/cardvault/pkg/crypto"
)

func newUnsealCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "unseal FILE",
		Short: "Decrypt a sealed export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if output == "" {
				output = strings.TrimSuffix(path, crypto.SealedExt)
				if output == path {
					output = path + ".out"
				}
			}

			password, err := promptPassword(cmd, "Password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}

			data, err := crypto.OpenFile(path, password)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0600); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", output, humanize.Bytes(uint64(len(data))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default: FILE without .sealed)")
	return cmd
}

// promptPassword reads a password without echo when stdin is a terminal,
// otherwise it reads one line.
func promptPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(password), nil
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	password, err := reader.ReadString('\n')
	if err != nil && password == "" {
		return "", err
	}
	return strings.TrimSpace(password), nil
}
