package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bidboard/internal/credential"
)

func newPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage the dashboard password file",
	}

	var file string
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new password and write password.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				file = cfg.Credential.PasswordFile
			}

			pw, err := credential.Generate()
			if err != nil {
				return err
			}
			info := credential.New(pw, time.Now())
			if err := credential.Save(file, info); err != nil {
				return fmt.Errorf("saving %s: %w", file, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "password:  %s\n", info.Password)
			fmt.Fprintf(out, "sha256:    %s\n", info.Hash)
			fmt.Fprintf(out, "written:   %s\n", file)
			return nil
		},
	}
	generate.Flags().StringVar(&file, "file", "", "password file (default from config)")

	cmd.AddCommand(generate)
	return cmd
}
