// Command modctl runs the moderation engine from the command line, either
// locally or against a running moderator over NATS.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/whisper/moderation/internal/logger"
	"github.com/whisper/moderation/internal/messaging"
	"github.com/whisper/moderation/internal/moderation"
	"github.com/whisper/moderation/internal/protocol"
)

var (
	version = "0.3.0"

	presetName   string
	jsonOutput   bool
	remotePreset string
	remoteJSON   bool
	natsURL    string
	sessionID  string
	timeout    time.Duration

	colorRed    = color.New(color.FgRed, color.Bold)
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorYellow = color.New(color.FgYellow)
	colorCyan   = color.New(color.FgCyan)
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		colorRed.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "modctl",
		Short:         "Inspect and exercise the whisper moderation engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	check := &cobra.Command{
		Use:   "check [text...]",
		Short: "Moderate text with a local engine",
		Long: `Moderate text with a local engine and print the verdict.

Text is read from the arguments, or from stdin when none are given.

Examples:
  modctl check "call me at 9876543210"
  echo "see https://bit.ly/x" | modctl check --preset strict --json`,
		RunE: runCheck,
	}
	check.Flags().StringVarP(&presetName, "preset", "p", string(moderation.LevelModerate), "preset: strict, moderate or lenient")
	check.Flags().BoolVar(&jsonOutput, "json", false, "print the raw result as JSON")

	presets := &cobra.Command{
		Use:   "presets",
		Short: "List the built-in presets",
		RunE:  runPresets,
	}

	languages := &cobra.Command{
		Use:   "languages",
		Short: "List profanity lexicon languages",
		RunE:  runLanguages,
	}

	remote := &cobra.Command{
		Use:   "remote [text...]",
		Short: "Send a check request to a running moderator over NATS",
		RunE:  runRemote,
	}
	remote.Flags().StringVar(&natsURL, "nats-url", envOr("NATS_URL", "nats://localhost:4222"), "NATS server URL")
	remote.Flags().StringVar(&sessionID, "session", "modctl", "session ID to check as")
	remote.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")
	remote.Flags().StringVarP(&remotePreset, "preset", "p", "", "override the session's preset")
	remote.Flags().BoolVar(&remoteJSON, "json", false, "print the raw response as JSON")

	root.AddCommand(check, presets, languages, remote, newBenchCmd())
	return root
}

func runCheck(cmd *cobra.Command, args []string) error {
	text, err := inputText(cmd, args)
	if err != nil {
		return err
	}
	level, err := moderation.ParseLevel(presetName)
	if err != nil {
		return err
	}
	cfg, _ := moderation.Preset(level)

	res := moderation.NewEngineWithConfig(cfg).Moderate(text)
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

func runPresets(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	for _, level := range moderation.Levels {
		cfg, _ := moderation.Preset(level)
		colorCyan.Fprintf(out, "%s\n", level)
		fmt.Fprintf(out, "  numbers=%t emails=%t links=%t social=%t addresses=%t\n",
			cfg.BlockNumbers, cfg.BlockEmails, cfg.BlockLinks, cfg.BlockSocialMedia, cfg.BlockPhysicalAddresses)
		fmt.Fprintf(out, "  profanity=%t censor=%t languages=%s\n",
			cfg.EnableProfanityFilter, cfg.CensorProfanity, strings.Join(cfg.ProfanityLanguages, ","))
	}
	return nil
}

func runLanguages(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	for _, lang := range moderation.SupportedLanguages() {
		fmt.Fprintln(out, lang)
	}
	colorYellow.Fprintf(out, "%d words\n", moderation.LexiconSize())
	return nil
}

func runRemote(cmd *cobra.Command, args []string) error {
	text, err := inputText(cmd, args)
	if err != nil {
		return err
	}

	cfg := messaging.DefaultNATSConfig()
	cfg.URL = natsURL
	cfg.Name = "modctl"
	cfg.MaxReconnects = 0

	client, err := messaging.NewNATSClient(cfg, logger.NewWithOutput("modctl", "error", cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer client.Close()

	req, err := json.Marshal(protocol.CheckRequest{
		RequestID: uuid.NewString(),
		SessionID: sessionID,
		Text:      text,
		Ts:        time.Now().UnixMilli(),
		Preset:    remotePreset,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	data, err := client.RequestModerationCheck(ctx, req)
	if err != nil {
		return err
	}

	var resp protocol.CheckResponse
	if err := json.Unmarshal(data, &resp); err != nil || resp.RequestID == "" {
		var er protocol.ErrorResponse
		if json.Unmarshal(data, &er) == nil && er.Code != "" {
			return fmt.Errorf("%s: %s", er.Code, er.Message)
		}
		return fmt.Errorf("unexpected reply: %s", data)
	}

	if remoteJSON {
		return writeJSON(cmd.OutOrStdout(), resp)
	}
	out := cmd.OutOrStdout()
	if resp.Muted {
		colorRed.Fprintf(out, "MUTED for %ds\n", resp.MutedFor)
	}
	printResult(out, resp.Result)
	return nil
}

// printResult renders a verdict for humans.
func printResult(out io.Writer, res moderation.Result) {
	if res.IsAllowed {
		colorGreen.Fprintln(out, "ALLOWED")
	} else {
		colorRed.Fprintln(out, "BLOCKED")
	}
	for _, v := range res.Violations {
		c := colorYellow
		if v.Severity == moderation.SeverityBlock {
			c = colorRed
		}
		c.Fprintf(out, "  [%s] %s", v.Severity, v.Category)
		fmt.Fprintf(out, " %s: %s\n", v.Description, strings.Join(v.Matches, ", "))
	}
	colorCyan.Fprint(out, "clean: ")
	fmt.Fprintln(out, res.CleanContent)
}

func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	text := strings.TrimRight(string(data), "\r\n")
	if text == "" {
		return "", fmt.Errorf("no text given")
	}
	return text, nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
