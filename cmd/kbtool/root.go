package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/config"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/knowledge"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/logger"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/matcher"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/outline"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/r2client"
)

// options are the persistent flags shared by every subcommand, filled from
// the environment first.
type options struct {
	cfg *config.Config

	kbPaths   []string
	r2Key     string
	noBuiltin bool
	threshold float64
	verbose   bool
}

// loaded is a knowledge base ready for matching.
type loaded struct {
	kb      *knowledge.Base
	matcher *matcher.Matcher
	index   *outline.Index
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "kbtool",
		Short:        "Inspect and publish the school Q&A knowledge base",
		SilenceUsage: true,
		Long: `kbtool loads the knowledge base the same way the bot does: the R2 object
(when --r2-key is set), then each --kb file in order, then the builtin base.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadForMode(config.ToolMode)
			if err != nil {
				return err
			}
			opts.cfg = cfg

			flags := cmd.Flags()
			if !flags.Changed("kb") {
				opts.kbPaths = cfg.KBPaths
			}
			if !flags.Changed("r2-key") {
				opts.r2Key = cfg.KBR2Key
			}
			if !flags.Changed("no-builtin") {
				opts.noBuiltin = !cfg.KBBuiltin
			}
			if !flags.Changed("threshold") {
				opts.threshold = cfg.MatchThreshold
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringSliceVar(&opts.kbPaths, "kb", nil, "knowledge base files, tried in order (default from "+config.EnvKBPaths+")")
	pf.StringVar(&opts.r2Key, "r2-key", "", "R2 object key tried before local files")
	pf.BoolVar(&opts.noBuiltin, "no-builtin", false, "do not fall back to the builtin knowledge base")
	pf.Float64Var(&opts.threshold, "threshold", matcher.DefaultThreshold, "match acceptance threshold")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log loader decisions to stderr")

	root.AddCommand(
		newValidateCmd(opts),
		newMatchCmd(opts),
		newSuggestCmd(opts),
		newIDsCmd(opts),
		newOutlineCmd(opts),
		newPublishCmd(opts),
		newMissesCmd(opts),
	)
	return root
}

func (o *options) logger(w io.Writer) *logger.Logger {
	level := "warn"
	if o.verbose {
		level = "debug"
	}
	return logger.NewWithWriter(level, w)
}

// r2Client connects to R2 using the environment settings.
func (o *options) r2Client(ctx context.Context) (*r2client.Client, error) {
	if !o.cfg.R2Enabled {
		return nil, fmt.Errorf("R2 is not configured; set %s=true and the R2 credentials", config.EnvR2Enabled)
	}
	return r2client.New(ctx, r2client.Config{
		Endpoint:    o.cfg.R2Endpoint(),
		AccessKeyID: o.cfg.R2AccessKeyID,
		SecretKey:   o.cfg.R2SecretAccessKey,
		BucketName:  o.cfg.R2BucketName,
	})
}

// load runs the loader strategy and builds the matcher and outline index.
func (o *options) load(cmd *cobra.Command) (*loaded, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), config.KnowledgeLoad)
	defer cancel()

	var loaders []knowledge.Loader
	if o.r2Key != "" {
		client, err := o.r2Client(ctx)
		if err != nil {
			return nil, err
		}
		loaders = append(loaders, knowledge.ObjectLoader{Client: client, Key: o.r2Key})
	}
	loaders = append(loaders, knowledge.FileLoaders(o.kbPaths...)...)
	loaders = append(loaders, knowledge.BuiltinLoader{Disabled: o.noBuiltin})

	kb, err := knowledge.LoadFirst(ctx, o.logger(cmd.ErrOrStderr()), loaders...)
	if err != nil {
		return nil, err
	}
	if o.threshold <= 0 {
		return nil, errors.New("threshold must be positive")
	}
	return &loaded{
		kb:      kb,
		matcher: matcher.New(kb, matcher.WithThreshold(o.threshold)),
		index:   outline.NewIndex(kb.Outline()),
	}, nil
}
