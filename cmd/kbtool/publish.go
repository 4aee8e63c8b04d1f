package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/config"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/knowledge"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/r2client"
)

const (
	defaultPublishKey = "kb/offline.json.zst"
	publishLockKey    = "kb/publish.lock"
)

// payload is a validated knowledge base encoded for an object key.
type payload struct {
	base    *knowledge.Base
	encoded []byte // in the key's format, before compression
	body    []byte // what is uploaded
}

// preparePayload parses file, re-encodes it in the format key names and
// compresses it when key ends in ".zst".
func preparePayload(ctx context.Context, file, key string) (*payload, error) {
	srcFormat, err := knowledge.FormatFromPath(file)
	if err != nil {
		return nil, err
	}
	dstFormat, err := knowledge.FormatFromPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	base, err := knowledge.Parse(srcFormat, string(srcFormat)+":"+file, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	encoded := data
	if dstFormat != srcFormat {
		if encoded, err = knowledge.Marshal(dstFormat, base); err != nil {
			return nil, err
		}
	}

	p := &payload{base: base, encoded: encoded, body: encoded}
	if r2client.IsCompressedKey(key) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.body, err = r2client.CompressBytes(encoded); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func newPublishCmd(opts *options) *cobra.Command {
	var (
		file    string
		key     string
		dryRun  bool
		lockTTL time.Duration
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Validate a knowledge base file and upload it to R2",
		Long: `publish parses --file, converts it to the format of --key when they differ,
zstd-compresses it for ".zst" keys and uploads it under a publish lock.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if key == "" {
				key = opts.r2Key
			}
			if key == "" {
				key = defaultPublishKey
			}
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			var (
				p        *payload
				client   *r2client.Client
				previous string
			)
			if dryRun {
				var err error
				if p, err = preparePayload(ctx, file, key); err != nil {
					return err
				}
			} else {
				var err error
				if client, err = opts.r2Client(ctx); err != nil {
					return err
				}
				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					var err error
					p, err = preparePayload(gctx, file, key)
					return err
				})
				g.Go(func() error {
					headCtx, cancel := context.WithTimeout(gctx, config.R2Request)
					defer cancel()
					etag, err := client.HeadObject(headCtx, key)
					if errors.Is(err, r2client.ErrNotFound) {
						return nil
					}
					previous = etag
					return err
				})
				if err := g.Wait(); err != nil {
					return err
				}
			}

			_, _ = fmt.Fprintf(out, "entries: %d, outline: %t, %d bytes -> %d bytes\n",
				p.base.Len(), p.base.Outline() != "", len(p.encoded), len(p.body))
			if dryRun {
				_, _ = fmt.Fprintf(out, "dry run: would upload to %s\n", key)
				return nil
			}

			return upload(ctx, cmd, client, key, previous, p.body, lockTTL)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "knowledge base file to publish (json, yaml or toml)")
	cmd.Flags().StringVar(&key, "key", "", "object key (default --r2-key or "+defaultPublishKey+")")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and compress without uploading")
	cmd.Flags().DurationVar(&lockTTL, "lock-ttl", 2*time.Minute, "publish lock lifetime")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func upload(ctx context.Context, cmd *cobra.Command, client *r2client.Client, key, previous string, body []byte, lockTTL time.Duration) error {
	lock := r2client.NewPublishLock(client, publishLockKey, "publish "+key, lockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		return errors.New("another publish is in progress; try again later")
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.R2Request)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
	}()

	contentType := "application/octet-stream"
	if !r2client.IsCompressedKey(key) {
		contentType = "text/plain; charset=utf-8"
	}

	uploadCtx, cancel := context.WithTimeout(ctx, config.R2Request)
	defer cancel()
	etag, err := client.Upload(uploadCtx, key, bytes.NewReader(body), contentType)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if previous != "" {
		_, _ = fmt.Fprintf(out, "replaced %s (etag %s)\n", key, previous)
	}
	_, _ = fmt.Fprintf(out, "published %s/%s etag %s\n", client.Bucket(), key, etag)
	return nil
}
