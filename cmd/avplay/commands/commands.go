package commands

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/xaionaro-go/observability"

	"github.com/xaionaro-go/avplayer/pkg/decoder"
	"github.com/xaionaro-go/avplayer/pkg/decoder/libav"
	"github.com/xaionaro-go/avplayer/pkg/player"

	_ "github.com/xaionaro-go/avplayer/pkg/audioout/backends/null"
	_ "github.com/xaionaro-go/avplayer/pkg/audioout/backends/oto"
	_ "github.com/xaionaro-go/avplayer/pkg/audioout/backends/pulseaudio"
	_ "github.com/xaionaro-go/avplayer/pkg/decoder/audiofile"
)

var (
	// Access these variables only from a main package:

	Root = &cobra.Command{
		Use: os.Args[0],
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			l := logger.FromCtx(ctx).WithLevel(LoggerLevel)
			ctx = logger.CtxWithLogger(ctx, l)
			cmd.SetContext(ctx)
			logger.Debugf(ctx, "log-level: %v", LoggerLevel)

			astiav.SetLogLevel(libav.LogLevelToAstiav(LoggerLevel))
			astiav.SetLogCallback(libav.LogCallback(l))

			netPprofAddr, err := cmd.Flags().GetString("go-net-pprof-addr")
			if err != nil {
				l.Error("unable to get the value of the flag 'go-net-pprof-addr': %v", err)
			}
			if netPprofAddr != "" {
				observability.Go(ctx, func(ctx context.Context) {
					l.Infof("starting to listen for net/pprof requests at '%s'", netPprofAddr)
					l.Error(http.ListenAndServe(netPprofAddr, nil))
				})
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			logger.Debug(ctx, "end")
		},
	}

	Play = &cobra.Command{
		Use:  "play <url>",
		Args: cobra.ExactArgs(1),
		Run:  play,
	}

	Probe = &cobra.Command{
		Use:  "probe <url>",
		Args: cobra.ExactArgs(1),
		Run:  probe,
	}

	LoggerLevel = logger.LevelWarning
)

func init() {
	Root.AddCommand(Play)
	Root.AddCommand(Probe)

	Root.PersistentFlags().Var(&LoggerLevel, "log-level", "")
	Root.PersistentFlags().String("go-net-pprof-addr", "", "address to listen to for net/pprof requests")

	Play.Flags().String("config", "", "the path to a YAML file with the player configuration")
	Play.Flags().Bool("loop", false, "restart playback from the beginning at the end of the stream")
	Play.Flags().Float64("speed", 1.0, "playback speed multiplier")
	Play.Flags().Float64("volume", 1.0, "output gain, within [0.0, 1.0]")
	Play.Flags().Bool("muted", false, "start with the audio muted")
	Play.Flags().Bool("start-paused", false, "open the media but do not start playing")
	Play.Flags().Bool("no-audio", false, "do not play the audio track")
	Play.Flags().Uint("buffer", 0, "frame buffer capacity (0 keeps the configured default)")
	Play.Flags().Uint("prebuffer", 0, "how many frames to decode ahead before playback starts (0 keeps the configured default)")
	Play.Flags().Duration("seek", 0, "jump to this position right after opening")
	Play.Flags().Bool("accurate-seek", false, "make --seek land exactly on the requested position")
	Play.Flags().String("hwdev", "", "hardware decoding device type (e.g. 'vaapi' or 'cuda')")
	Play.Flags().Duration("stats-interval", time.Second, "how often to print the playback progress")

	Probe.Flags().String("hwdev", "", "hardware decoding device type (e.g. 'vaapi' or 'cuda')")
}

func assertNoError(ctx context.Context, err error) {
	if err != nil {
		logger.Panic(ctx, err)
	}
}

func playerOptions(cmd *cobra.Command) (player.Options, error) {
	ctx := cmd.Context()

	var opts player.Options

	configPath, err := cmd.Flags().GetString("config")
	assertNoError(ctx, err)
	if configPath != "" {
		b, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read the config file '%s': %w", configPath, err)
		}
		cfg := player.DefaultConfig()
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("unable to parse the config file '%s': %w", configPath, err)
		}
		opts = append(opts, cfg.Options()...)
	}

	looping, err := cmd.Flags().GetBool("loop")
	assertNoError(ctx, err)
	if cmd.Flags().Changed("loop") {
		opts = append(opts, player.OptionLooping(looping))
	}

	speed, err := cmd.Flags().GetFloat64("speed")
	assertNoError(ctx, err)
	if cmd.Flags().Changed("speed") {
		opts = append(opts, player.OptionSpeed(speed))
	}

	volume, err := cmd.Flags().GetFloat64("volume")
	assertNoError(ctx, err)
	if cmd.Flags().Changed("volume") {
		opts = append(opts, player.OptionVolume(volume))
	}

	muted, err := cmd.Flags().GetBool("muted")
	assertNoError(ctx, err)
	if cmd.Flags().Changed("muted") {
		opts = append(opts, player.OptionMuted(muted))
	}

	startPaused, err := cmd.Flags().GetBool("start-paused")
	assertNoError(ctx, err)
	if cmd.Flags().Changed("start-paused") {
		opts = append(opts, player.OptionStartPaused(startPaused))
	}

	noAudio, err := cmd.Flags().GetBool("no-audio")
	assertNoError(ctx, err)
	if cmd.Flags().Changed("no-audio") {
		opts = append(opts, player.OptionDisableAudio(noAudio))
	}

	bufferCapacity, err := cmd.Flags().GetUint("buffer")
	assertNoError(ctx, err)
	if cmd.Flags().Changed("buffer") {
		opts = append(opts, player.OptionFrameBufferCapacity(bufferCapacity))
	}

	prebuffer, err := cmd.Flags().GetUint("prebuffer")
	assertNoError(ctx, err)
	if cmd.Flags().Changed("prebuffer") {
		opts = append(opts, player.OptionPrebufferFrames(prebuffer))
	}

	hwDev, err := cmd.Flags().GetString("hwdev")
	assertNoError(ctx, err)
	if hwDev != "" {
		opts = append(opts, player.OptionBackendConfig(decoder.Config{
			HardwareDeviceTypeName: hwDev,
		}))
	}

	return opts, nil
}

func play(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	url := args[0]

	opts, err := playerOptions(cmd)
	assertNoError(ctx, err)

	p, err := player.New(ctx, url, opts...)
	assertNoError(ctx, err)
	defer p.Close(ctx)

	info := p.GetInfo(ctx)
	infoYAML, err := yaml.Marshal(info)
	assertNoError(ctx, err)
	fmt.Printf("%s\n", infoYAML)

	stateCh, err := p.SubscribeToStateChanges(ctx)
	assertNoError(ctx, err)
	errCh, err := p.SubscribeToErrors(ctx)
	assertNoError(ctx, err)
	observability.Go(ctx, func(ctx context.Context) {
		for {
			select {
			case ev, ok := <-stateCh:
				if !ok {
					return
				}
				fmt.Printf("state: %s -> %s\n", ev.Old, ev.New)
			case ev, ok := <-errCh:
				if !ok {
					return
				}
				fmt.Printf("error: %v\n", ev.Err)
			}
		}
	})

	seekTo, err := cmd.Flags().GetDuration("seek")
	assertNoError(ctx, err)
	accurateSeek, err := cmd.Flags().GetBool("accurate-seek")
	assertNoError(ctx, err)
	if seekTo > 0 {
		assertNoError(ctx, p.Seek(ctx, player.PositionTime(seekTo), accurateSeek))
	}

	statsInterval, err := cmd.Flags().GetDuration("stats-interval")
	assertNoError(ctx, err)

	// there is no window to render into, so just consume the frames at the
	// pace the engine releases them
	frameTicker := time.NewTicker(5 * time.Millisecond)
	defer frameTicker.Stop()
	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	endCh := p.EndChan(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-endCh:
			printProgress(ctx, p)
			fmt.Printf("the end of the stream is reached\n")
			return
		case <-frameTicker.C:
			p.PopFrame(ctx)
		case <-statsTicker.C:
			printProgress(ctx, p)
		}
	}
}

func printProgress(ctx context.Context, p *player.Player) {
	stats := p.FrameBufferStats(ctx)
	fmt.Printf(
		"%v / %v [%s] buffered: %d; frames shown: %s, dropped: %s\n",
		p.GetPosition(ctx).Truncate(time.Millisecond),
		p.GetLength(ctx).Truncate(time.Millisecond),
		p.GetStatus(ctx),
		p.BufferedLen(ctx),
		humanize.Comma(int64(stats.Popped)),
		humanize.Comma(int64(stats.Dropped)),
	)
}

func probe(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	url := args[0]

	hwDev, err := cmd.Flags().GetString("hwdev")
	assertNoError(ctx, err)

	session, err := decoder.Open(ctx, url, decoder.Config{
		HardwareDeviceTypeName: hwDev,
	})
	assertNoError(ctx, err)
	defer session.Close()

	infoYAML, err := yaml.Marshal(session.Info())
	assertNoError(ctx, err)
	fmt.Printf("%s", infoYAML)
}
