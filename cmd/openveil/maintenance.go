package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openveil/openveil/pkg/auth"
	"github.com/openveil/openveil/pkg/claims"
	"github.com/openveil/openveil/pkg/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the SQL schema for the configured backend",
	Long: `migrate applies the schema for OPENVEIL_STORAGE_TYPE=sqlite or postgres.
Statements are idempotent, so running it against an existing database is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if a.db == nil {
			return fmt.Errorf("storage type %q has no schema to migrate", a.cfg.Storage.Type)
		}
		// newApp migrates while opening the store
		fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", a.cfg.Storage.Type)
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep-claims",
	Short: "Remove expired claim tokens from guest trials once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := claims.NewSweeper(a.store, a.bgLogger, a.metrics).SweepOnce(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %d expired claim(s)\n", n)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export-csl",
	Short: "Export every published protocol and trial as a CSL-JSON array",
	Long: `export-csl writes the citation bundle to stdout, or uploads it to the
S3-compatible bucket given with --bucket (or OPENVEIL_S3_BUCKET) under --key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bucket, _ := cmd.Flags().GetString("bucket")
		key, _ := cmd.Flags().GetString("key")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.service.Citations(cmd.Context())
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode citations: %w", err)
		}

		if bucket == "" {
			bucket = a.cfg.Storage.S3Bucket
		}
		if bucket == "" {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}

		s3cfg := a.cfg.Storage
		s3cfg.S3Bucket = bucket
		client, err := storage.NewS3Client(s3cfg)
		if err != nil {
			return err
		}
		if key == "" {
			key = fmt.Sprintf("csl/openveil-%s.json", time.Now().UTC().Format("20060102T150405Z"))
		}
		if err := client.PutObject(cmd.Context(), key, data, "application/vnd.citationstyles.csl+json"); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d citation(s) to %s\n", len(items), client.Location(key))
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for a user",
	Example: `  openveil token --id 1 --name "Site Admin" --role administrator
  openveil token --id 7 --name "Ada Lovelace" --role author --ttl 72h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetInt64("id")
		name, _ := cmd.Flags().GetString("name")
		roleNames, _ := cmd.Flags().GetStringSlice("role")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		if id <= 0 {
			return fmt.Errorf("--id must be a positive user ID")
		}
		p := auth.Principal{ID: id, Name: name}
		for _, r := range roleNames {
			role := auth.Role(strings.ToLower(strings.TrimSpace(r)))
			if !auth.ValidRole(role) {
				return fmt.Errorf("unknown role: %s", r)
			}
			p.Roles = append(p.Roles, role)
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if a.issuer == nil {
			return fmt.Errorf("OPENVEIL_JWT_SECRET must be set to issue tokens")
		}
		if ttl <= 0 {
			ttl = a.cfg.Auth.TokenTTL
		}

		tok, err := a.issuer.Sign(p, ttl)
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("bucket", "", "upload to this S3 bucket instead of writing to stdout")
	exportCmd.Flags().String("key", "", "object key (default csl/openveil-<timestamp>.json)")

	tokenCmd.Flags().Int64("id", 0, "user ID")
	tokenCmd.Flags().String("name", "", "display name")
	tokenCmd.Flags().StringSlice("role", nil, "role (administrator, editor, author, contributor, subscriber); repeatable")
	tokenCmd.Flags().Duration("ttl", 0, "token lifetime (default OPENVEIL_TOKEN_TTL)")

	rootCmd.AddCommand(migrateCmd, sweepCmd, exportCmd, tokenCmd)
}
