package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eringen/posterkit"
	"github.com/eringen/posterkit/compositor"
	"github.com/eringen/posterkit/export"
	"github.com/eringen/posterkit/poster"
)

type renderOpts struct {
	config     string
	template   string
	background string
	stateFile  string
	staticDir  string
	fontPath   string
	outDir     string
	price      string
	color      string
	fontSize   int
	scale      float64
	bgX, bgY   float64
	priceArea  bool
	noTemplate bool
}

func newRenderCmd() *cobra.Command {
	opts := renderOpts{outDir: ".", staticDir: "public", scale: 1}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a poster PNG without the editor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), cmd, &opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.config, "config", "c", "", "TOML config file with the template catalog")
	f.StringVarP(&opts.template, "template", "t", "", "template name (default: first in catalog)")
	f.StringVarP(&opts.background, "background", "b", "", "background image file")
	f.StringVar(&opts.stateFile, "state", "", "editor state JSON, as returned by /api/editor/state")
	f.StringVar(&opts.staticDir, "static", opts.staticDir, "directory resolving /public/ overlay paths")
	f.StringVar(&opts.fontPath, "font", "", "TTF font for the price (default Go Bold)")
	f.StringVarP(&opts.outDir, "output", "o", opts.outDir, "output directory")
	f.StringVar(&opts.price, "price", "", "price text")
	f.StringVar(&opts.color, "color", poster.DefaultPriceColor, "price color")
	f.IntVar(&opts.fontSize, "font-size", poster.DefaultFontSize, "price font size in pixels")
	f.Float64Var(&opts.scale, "scale", opts.scale, "background scale")
	f.Float64Var(&opts.bgX, "bg-x", 0, "background x offset")
	f.Float64Var(&opts.bgY, "bg-y", 0, "background y offset")
	f.BoolVar(&opts.priceArea, "price-area", false, "place the price at the template's price area")
	f.BoolVar(&opts.noTemplate, "no-template", false, "leave out the template overlay")
	_ = cmd.MarkFlagRequired("background")
	return cmd
}

// buildState starts from --state when given; explicit flags override it.
func buildState(cmd *cobra.Command, opts *renderOpts, tpl poster.Template) (poster.State, error) {
	st := poster.NewState()
	if opts.stateFile != "" {
		data, err := os.ReadFile(opts.stateFile)
		if err != nil {
			return st, err
		}
		// Accept both a bare state and a full session snapshot.
		var snap struct {
			State *poster.State `json:"state"`
		}
		if err := json.Unmarshal(data, &snap); err == nil && snap.State != nil {
			st = *snap.State
		} else if err := json.Unmarshal(data, &st); err != nil {
			return st, fmt.Errorf("parse %s: %w", opts.stateFile, err)
		}
		st.Clamp()
	}

	flags := cmd.Flags()
	if opts.priceArea {
		st.ApplyPriceArea(tpl)
	}
	if flags.Changed("price") {
		st.Price = opts.price
	}
	if flags.Changed("color") {
		if _, ok := compositor.ParseColor(opts.color); !ok {
			return st, fmt.Errorf("invalid color %q", opts.color)
		}
		st.PriceColor = opts.color
	}
	if flags.Changed("font-size") {
		st.SetFontSize(opts.fontSize)
	}
	if flags.Changed("scale") {
		st.BgScale = poster.ClampScale(opts.scale)
	}
	if flags.Changed("bg-x") {
		st.BgPosition.X = opts.bgX
	}
	if flags.Changed("bg-y") {
		st.BgPosition.Y = opts.bgY
	}
	if opts.noTemplate {
		st.ShowTemplate = false
	}
	return st, nil
}

func runRender(ctx context.Context, cmd *cobra.Command, opts *renderOpts) error {
	logger := loggerFromContext(ctx)
	start := time.Now()

	cfg, err := loadConfig(opts.config)
	if err != nil {
		return err
	}
	templates := cfg.Templates
	if len(templates) == 0 {
		templates = poster.DefaultTemplates()
	}
	tpl := templates[0]
	if opts.template != "" {
		var ok bool
		if tpl, ok = poster.FindTemplate(templates, opts.template); !ok {
			return fmt.Errorf("unknown template %q", opts.template)
		}
	}

	data, err := os.ReadFile(opts.background)
	if err != nil {
		return err
	}
	imgCfg, format, err := compositor.DecodeConfig(data)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.background, err)
	}
	logger.Debug("background", "format", format, "width", imgCfg.Width, "height", imgCfg.Height)

	st, err := buildState(cmd, opts, tpl)
	if err != nil {
		return err
	}

	decodeLog := logrus.New()
	decodeLog.SetOutput(cmd.ErrOrStderr())
	decodeLog.SetLevel(logrus.WarnLevel)
	copts := []compositor.Option{
		compositor.WithLogger(decodeLog),
		compositor.WithLoader(compositor.NewFSLoader(posterkit.PublicFS(opts.staticDir), "/public/")),
	}
	if opts.fontPath != "" {
		ttf, err := os.ReadFile(opts.fontPath)
		if err != nil {
			return err
		}
		copts = append(copts, compositor.WithFont(ttf))
	}

	file, err := export.NewPipeline(compositor.New(copts...)).Export(ctx, &tpl, poster.NewResource(data), st)
	if err != nil {
		return err
	}
	path, err := file.Save(opts.outDir)
	if err != nil {
		return err
	}
	logger.Infof("Rendered %s (%dx%d, template %s) in %s", path, file.Width, file.Height, tpl.Name, time.Since(start).Round(time.Millisecond))
	return nil
}
