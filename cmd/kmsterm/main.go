//go:build linux

// Command kmsterm is a standalone virtual-terminal emulator that draws
// straight to a KMS framebuffer: no display server, one shell, one
// screen.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/kmsterm/kmsterm/internal/config"
	"github.com/kmsterm/kmsterm/internal/console"
	"github.com/kmsterm/kmsterm/internal/drm"
	"github.com/kmsterm/kmsterm/internal/emu"
	"github.com/kmsterm/kmsterm/internal/evloop"
	"github.com/kmsterm/kmsterm/internal/font"
	"github.com/kmsterm/kmsterm/internal/keyboard"
	"github.com/kmsterm/kmsterm/internal/render"
	"github.com/kmsterm/kmsterm/internal/session"
	"github.com/kmsterm/kmsterm/internal/term"
)

func usage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "usage: kmsterm [-a | -A] [-hw] [-d delay] [-r rate] "+
		"[-f fontfile [-F bold_fontfile]] [-i idle_timeout] [-s fontsize] "+
		"[-k kbd_layout] [-o kbd_options] [-v kbd_variant] [-p pivot]\n")
	fs.PrintDefaults()
}

func parseFlags(args []string) (config.Config, error) {
	cfg := config.Defaults()
	if err := config.LoadFile(config.DefaultPath(), &cfg); err != nil {
		return cfg, err
	}

	fs := flag.NewFlagSet("kmsterm", flag.ContinueOnError)
	fs.SortFlags = false
	fs.Usage = func() { usage(fs) }

	antialias := fs.BoolP("antialias", "a", cfg.Antialias, "antialiased glyph rendering")
	noAntialias := fs.BoolP("no-antialias", "A", false, "1-bit glyph rendering")
	fontPath := fs.StringP("font", "f", cfg.Font, "normal font file")
	boldPath := fs.StringP("bold-font", "F", cfg.BoldFont, "bold font file")
	fontSize := fs.UintP("font-size", "s", cfg.FontSize, "font height in pixels (6-128)")
	delay := fs.UintP("repeat-delay", "d", cfg.RepeatDelayMs, "key repeat delay in ms (100-2000)")
	rate := fs.UintP("repeat-rate", "r", cfg.RepeatRateHz, "key repeat rate in Hz (1-50)")
	idle := fs.UintP("idle-timeout", "i", cfg.IdleTimeoutS, "idle DPMS suspend in s (30-86400, 0 off)")
	layout := fs.StringP("layout", "k", cfg.Layout, "keyboard layout")
	options := fs.StringP("options", "o", cfg.Options, "keyboard options")
	variant := fs.StringP("variant", "v", cfg.Variant, "keyboard variant")
	pivot := fs.IntP("pivot", "p", cfg.Pivot, "screen rotation in 90 degree steps (0-3)")
	whitebg := fs.BoolP("white-background", "w", cfg.WhiteBackground, "dark text on a light background")
	help := fs.BoolP("help", "h", false, "print usage")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if *help {
		usage(fs)
		os.Exit(1)
	}

	if fs.Changed("bold-font") && !fs.Changed("font") {
		return cfg, fmt.Errorf("a bold font without a normal font makes no sense")
	}

	cfg.Antialias = *antialias && !*noAntialias
	cfg.Font = *fontPath
	cfg.BoldFont = *boldPath
	cfg.FontSize = *fontSize
	cfg.RepeatDelayMs = *delay
	cfg.RepeatRateHz = *rate
	cfg.IdleTimeoutS = *idle
	cfg.Layout = *layout
	cfg.Options = *options
	cfg.Variant = *variant
	cfg.Pivot = *pivot
	cfg.WhiteBackground = *whitebg

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	cfg.FillFontDefaults()
	return cfg, nil
}

func newLogger() *zap.Logger {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "kmsterm: logger: %v\n", err)
		os.Exit(1)
	}
	return logger.With(zap.String("session", uuid.NewString()))
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "kmsterm: %v\n", err)
		os.Exit(1)
	}

	log := newLogger()
	defer log.Sync()

	// Keyboard translation state; fatal before any device is touched.
	keymap, err := keyboard.NewMap(cfg.Layout, cfg.Variant, cfg.Options)
	if err != nil {
		log.Fatal("keymap init failed", zap.Error(err))
	}
	compose := keyboard.NewCompose(config.Locale())

	glyphs, err := font.NewFromFiles(cfg.Font, cfg.BoldFont, float64(cfg.FontSize))
	if err != nil {
		log.Fatal("font init failed", zap.Error(err))
	}

	dev, err := drm.Open(log.Named("drm"))
	if err != nil {
		log.Fatal("drm init failed", zap.Error(err))
	}
	defer dev.Close()

	scanout, err := dev.AllocFramebuffer()
	if err != nil {
		log.Fatal("framebuffer allocation failed", zap.Error(err))
	}

	fb := render.NewFramebuffer(scanout.Pix, scanout.Width, scanout.Height, scanout.StridePixels())

	defAttr := term.DefaultAttr
	if cfg.WhiteBackground {
		defAttr = term.WhiteAttr
	}

	painter := render.New(fb, glyphs, term.DefaultPalette, cfg.Pivot, cfg.Antialias)
	cols, rows := painter.GridSize()
	cellW, cellH := painter.CellSize()
	log.Info("terminal geometry",
		zap.Int("cols", cols), zap.Int("rows", rows),
		zap.Int("cell_w", cellW), zap.Int("cell_h", cellH))

	scr := term.NewScreen(cols, rows, defAttr)

	shell, err := session.SpawnShell(cols, rows, cellW, cellH)
	if err != nil {
		log.Fatal("pty spawn failed", zap.Error(err))
	}
	defer shell.Close()

	handler := emu.New(scr, shell.Master, log.Named("emu"))

	// The kernel aims the VT switch signals at us once the console is
	// in PROCESS mode; keep them harmless until the loop takes over.
	signal.Ignore(unix.SIGUSR1, unix.SIGUSR2)

	cons, err := console.Open(log.Named("vt"))
	if err != nil {
		log.Fatal("console init failed", zap.Error(err))
	}
	defer cons.Close()

	if err := cons.Configure(unix.SIGUSR1, unix.SIGUSR2); err != nil {
		log.Fatal("console configure failed", zap.Error(err))
	}
	defer cons.Restore()

	if err := dev.Show(); err != nil {
		cons.Restore()
		log.Fatal("crtc programming failed", zap.Error(err))
	}

	// First frame: the whole plane in the default background.
	fb.Fill(term.DefaultPalette[defAttr.BG])

	loop, err := evloop.New()
	if err != nil {
		log.Fatal("event loop init failed", zap.Error(err))
	}
	defer loop.Close()

	sess := session.New(session.Params{
		Log:         log,
		Loop:        loop,
		Screen:      scr,
		Handler:     handler,
		Display:     dev,
		Console:     cons,
		Painter:     painter,
		PtyFD:       int(shell.Master.Fd()),
		IdleTimeout: time.Duration(cfg.IdleTimeoutS) * time.Second,
	})

	pipeline := keyboard.NewPipeline(keymap, compose, session.Hooks(sess), log.Named("kbd"))
	pipeline.RepeatDelay = time.Duration(cfg.RepeatDelayMs) * time.Millisecond
	pipeline.RepeatRate = time.Second / time.Duration(cfg.RepeatRateHz)
	sess.SetPipeline(pipeline)

	if err := sess.Register(); err != nil {
		log.Fatal("event registration failed", zap.Error(err))
	}

	if err := sess.Run(); err != nil {
		log.Error("event loop failed", zap.Error(err))
	}

	sess.Shutdown()
}
