package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/okatev/huddle/internal/domain"
	"github.com/okatev/huddle/internal/media"
	"github.com/okatev/huddle/internal/mesh"
	"github.com/okatev/huddle/internal/rtc"
	"github.com/okatev/huddle/internal/signalclient"
	"github.com/okatev/huddle/internal/wire"
)

var (
	flagServer  string
	flagRoom    string
	flagName    string
	flagSTUN    []string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "huddle-client",
	Short: "Join a huddle call from the terminal",
	Long: `huddle-client joins a call room over the relay, keeps a peer link to
every other participant and prints the room chat. Without capture
devices it publishes the placeholder stream, so it also works as a
headless listener. Lines typed on stdin are sent as chat messages.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&flagServer, "server", "s", "http://localhost:8080", "relay server base URL")
	rootCmd.Flags().StringVarP(&flagRoom, "room", "r", "", "room to join")
	rootCmd.Flags().StringVarP(&flagName, "name", "n", "", "display name")
	rootCmd.Flags().StringSliceVar(&flagSTUN, "stun", nil, "STUN server URLs (default: fetched from the server)")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	rootCmd.MarkFlagRequired("room")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	rootCmd.SilenceUsage = true
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("client error")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if flagVerbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	client, err := signalclient.Dial(ctx, flagServer)
	if err != nil {
		return err
	}
	defer client.Close()

	roster, err := client.JoinCall(domain.RoomID(flagRoom), flagName)
	if err != nil {
		return err
	}
	log.Info().Str("room", flagRoom).Str("sid", string(client.SessionID())).
		Int("members", len(roster)).Msg("joined call")

	stun := flagSTUN
	if len(stun) == 0 {
		servers, err := signalclient.ICEServers(ctx, flagServer)
		if err != nil {
			log.Warn().Err(err).Msg("ice servers not fetched, using default")
		} else {
			stun = servers
		}
	}

	factory := rtc.NewFactory(rtc.NewConfiguration(stun))
	ctrl := mesh.NewController(client.SessionID(), factory, client)
	defer ctrl.Close()

	ctrl.OnTrack(func(rt mesh.RemoteTrack) {
		log.Info().Str("peer", string(rt.From)).Str("kind", rt.Track.Kind().String()).
			Str("track", rt.Track.ID()).Msg("remote track")
	})
	ctrl.OnChat(func(e mesh.ChatEntry) {
		fmt.Printf("[%s] %s: %s\n", e.At.Format("15:04:05"), e.Name, e.Text)
	})

	capture := media.NoDevices{}
	supervisor := media.NewSupervisor(capture)
	supervisor.OnSwap(func(s *media.Stream) {
		if err := ctrl.PublishStream(s); err != nil {
			log.Warn().Err(err).Msg("publish stream")
		}
	})
	// Only ask for tracks the capture backend can deliver; with no
	// devices at all this goes straight to the placeholder.
	videoOK, audioOK, _ := capture.Supported()
	supervisor.Acquire(videoOK, audioOK)

	if err := ctrl.HandleJoinAck(roster); err != nil {
		return err
	}

	go readChatInput(client)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("leaving call")
			client.Leave()
			return nil
		case <-client.Done():
			return fmt.Errorf("connection to relay lost")
		case m := <-client.Incoming():
			dispatch(ctrl, m)
		}
	}
}

func dispatch(ctrl *mesh.Controller, m wire.Message) {
	switch m.Type {
	case wire.TypeUserJoined:
		if err := ctrl.HandleUserJoined(m.SessionID); err != nil {
			log.Warn().Err(err).Msg("user joined")
		}
	case wire.TypeUserLeft:
		ctrl.HandleUserLeft(m.SessionID)
	case wire.TypeSignal:
		payload, err := wire.DecodePayload(m.Payload)
		if err != nil {
			log.Warn().Err(err).Str("from", string(m.SenderSessionID)).Msg("bad signal payload")
			return
		}
		if err := ctrl.HandleSignal(m.SenderSessionID, payload); err != nil {
			log.Debug().Err(err).Str("from", string(m.SenderSessionID)).Msg("signal not applied")
		}
	case wire.TypeChatMessage:
		ctrl.HandleChat(m.SenderSessionID, m.DisplayName, m.Text)
	case wire.TypePong:
	default:
		log.Debug().Str("type", string(m.Type)).Msg("unhandled frame")
	}
}

func readChatInput(client *signalclient.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if err := client.SendChat(text); err != nil {
			return
		}
	}
}
