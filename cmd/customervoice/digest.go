package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/customer-voice-api/internal/digest"
	"github.com/tbourn/customer-voice-api/internal/insights"
	"github.com/tbourn/customer-voice-api/internal/services"
	"github.com/tbourn/customer-voice-api/internal/utils"
)

type digestOptions struct {
	start, end    string
	noCompetitors bool
	pretty        bool
	dryRun        bool
}

// request parses the window flags (RFC 3339 or YYYY-MM-DD).
func (o digestOptions) request() (digest.Request, error) {
	req := digest.Request{IncludeCompetitors: !o.noCompetitors}
	parse := func(flag, v string) (*time.Time, error) {
		if v == "" {
			return nil, nil
		}
		t, err := utils.ParseTimestamp(v)
		if err != nil {
			return nil, fmt.Errorf("--%s %q: %w", flag, v, err)
		}
		return &t, nil
	}
	var err error
	if req.Start, err = parse("start", o.start); err != nil {
		return req, err
	}
	if req.End, err = parse("end", o.end); err != nil {
		return req, err
	}
	return req, nil
}

func digestCmd() *cobra.Command {
	var opts digestOptions

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Generate a digest and print it as JSON",
		Long: "Generate a digest for the window [--start, --end] (default: the seven days before now) " +
			"and print it. With --dry-run the digest is not stored.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			shutdownTracing := startTracing(ctx, cfg)
			defer func() { _ = shutdownTracing(context.Background()) }()

			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore(db)

			return runDigest(ctx, db, req, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.start, "start", "", "window start (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.end, "end", "", "window end (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.noCompetitors, "no-competitors", false, "skip the competitor summary")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "indent the JSON output")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "assemble without storing")
	return cmd
}

// runDigest assembles the digest with the same service the API uses and
// writes it to w.
func runDigest(ctx context.Context, db *gorm.DB, req digest.Request, opts digestOptions, w io.Writer) error {
	svc := &services.DigestService{
		DB:        db,
		Assembler: digest.NewAssembler(insights.New()),
		Trigger:   "cli",
	}

	var (
		p   *digest.Payload
		err error
	)
	if opts.dryRun {
		p, err = svc.Preview(ctx, req)
	} else {
		p, err = svc.Run(ctx, req)
	}
	if err != nil {
		return err
	}
	if p.DigestID != "" {
		log.Info().Str("digest_id", p.DigestID).Msg("digest stored")
	}

	enc := json.NewEncoder(w)
	if opts.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(p)
}
