package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/3leaps/gorunner/internal/secret"
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt [text]",
	Short: "Encrypt a value for use as an ENC: configuration string",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		masterKey, err := resolveMasterKey()
		if err != nil {
			return err
		}
		plaintext, err := readArgOrStdin(cmd, args)
		if err != nil {
			return err
		}
		ciphertext, err := secret.Encrypt(masterKey, plaintext)
		if err != nil {
			return fmt.Errorf("encrypt: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ciphertext)
		return nil
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt [text]",
	Short: "Decrypt an ENC: configuration string",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		masterKey, err := resolveMasterKey()
		if err != nil {
			return err
		}
		ciphertext, err := readArgOrStdin(cmd, args)
		if err != nil {
			return err
		}
		plaintext, err := secret.Decrypt(masterKey, ciphertext)
		if err != nil {
			return fmt.Errorf("decrypt: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), plaintext)
		return nil
	},
}

func readArgOrStdin(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(body), "\n"), nil
}
