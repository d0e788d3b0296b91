package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/deliverable-builder/internal/config"
)

var hashSecretCmd = &cobra.Command{
	Use:   "hash-secret",
	Short: "Hash an API client secret for the clients section of config.json",
	Long:  "Reads a client secret from --secret or the first line of stdin and prints its bcrypt hash.",
	RunE:  runHashSecret,
}

var (
	hashSecretValue string
	hashSecretCost  int
)

func init() {
	hashSecretCmd.Flags().StringVar(&hashSecretValue, "secret", "", "Secret to hash (read from stdin when empty)")
	hashSecretCmd.Flags().IntVar(&hashSecretCost, "cost", config.DefaultBcryptCost, "bcrypt cost")
	rootCmd.AddCommand(hashSecretCmd)
}

func runHashSecret(cmd *cobra.Command, _ []string) error {
	secret := hashSecretValue
	if secret == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("no secret given on --secret or stdin")
		}
		secret = strings.TrimRight(line, "\r\n")
	}

	secrets, err := config.NewSecretConfig(hashSecretCost, "")
	if err != nil {
		return err
	}
	hash, err := secrets.HashSecret(secret)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
	return err
}
