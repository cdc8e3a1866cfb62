package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func newHashPasswordCmd() *cobra.Command {
	var password string

	c := &cobra.Command{
		Use:   "hash-password",
		Short: "Generate an OPERATOR_PASSWORD_BCRYPT value",
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "export OPERATOR_PASSWORD_BCRYPT='%s'\n", hash)
			return nil
		},
	}

	c.Flags().StringVar(&password, "password", "", "operator password to hash")
	_ = c.MarkFlagRequired("password")
	return c
}
