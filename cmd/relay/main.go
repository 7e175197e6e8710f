package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mossy-p/audio-relay/config"
)

var (
	envFile string
	opts    config.Options
)

// rootCmd runs the relay server
var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Room-based WebSocket relay for audio packets",
	Long: `relay accepts WebSocket clients, admits each into a named room with a
join message, and fans every audio message out to the other members of
that room. Settings come from flags, then the environment, then defaults.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load local .env (dev only)
		if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
			return fmt.Errorf("load %s: %w", envFile, err)
		}

		cfg := config.Load(opts)
		if err := cfg.Validate(); err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	f.StringVarP(&opts.Port, "port", "p", "", "listen port (env PORT)")
	f.IntVar(&opts.MaxPeersPerRoom, "max-peers", 0, "peers admitted per room (env MAX_PEERS_PER_ROOM)")
	f.IntVar(&opts.MaxMessageBytes, "max-message-bytes", 0, "largest accepted frame (env MAX_MESSAGE_BYTES)")
	f.IntVar(&opts.MaxAudioSamples, "max-audio-samples", 0, "largest samples value per audio message (env MAX_AUDIO_SAMPLES)")
}

func main() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "relay:", err)
		os.Exit(1)
	}
}
