package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eldtechnologies/chatsim/clients/go/chatsim"
)

const appName = "chatsim"

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "chatsim - drive a chat simulator from the terminal",
		Long:          "chatsim talks to a chatsim server over its HTTP and WebSocket API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(appName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	defaultURL := os.Getenv("CHATSIM_URL")
	if defaultURL == "" {
		defaultURL = chatsim.DefaultURL
	}
	cmd.PersistentFlags().String("url", defaultURL, "server URL (env CHATSIM_URL)")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")

	cmd.AddCommand(
		NewShowCmd(),
		NewSendCmd(),
		NewUploadCmd(),
		NewReactCmd(),
		NewDeleteCmd(),
		NewClearCmd(),
		NewPersonaCmd(),
		NewPersonasCmd(),
		NewThemeCmd(),
		NewWatchCmd(),
		NewHealthCmd(),
		NewStatsCmd(),
	)

	return cmd
}

func clientFrom(cmd *cobra.Command) *chatsim.Client {
	url, _ := cmd.Flags().GetString("url")
	return chatsim.NewClient(url)
}

func jsonOutput(cmd *cobra.Command) bool {
	asJSON, _ := cmd.Flags().GetBool("json")
	return asJSON
}

// NewShowCmd prints the conversation.
func NewShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			screen, err := clientFrom(cmd).Conversation(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), screen)
			}
			printScreen(cmd.OutOrStdout(), screen)
			return nil
		},
	}
}

// NewSendCmd posts a text message.
func NewSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <text...>",
		Short: "Send a text message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := clientFrom(cmd).Send(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printMessage(cmd, resp)
		},
	}
}

// NewUploadCmd sends an image file.
func NewUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := clientFrom(cmd).Upload(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printMessage(cmd, resp)
		},
	}
}

// NewReactCmd reacts to the newest message.
func NewReactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "react <emoji>",
		Short: "React to the newest message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := clientFrom(cmd).React(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printMessage(cmd, resp)
		},
	}
}

// NewDeleteCmd removes one message by position.
func NewDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <index>",
		Short: "Delete the message at index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil || index < 0 {
				return fmt.Errorf("invalid index %q", args[0])
			}
			warning, err := clientFrom(cmd).Delete(cmd.Context(), index)
			if err != nil {
				return err
			}
			printWarning(cmd, warning)
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted message %d\n", index)
			return nil
		},
	}
}

// NewClearCmd empties the conversation.
func NewClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			warning, err := clientFrom(cmd).Clear(cmd.Context())
			if err != nil {
				return err
			}
			printWarning(cmd, warning)
			fmt.Fprintln(cmd.OutOrStdout(), "Conversation cleared")
			return nil
		},
	}
}

// NewPersonaCmd shows or switches the active persona.
func NewPersonaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "persona [id]",
		Short: "Show or switch the active persona",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFrom(cmd)
			if len(args) == 1 {
				p, err := client.SelectPersona(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return printJSON(cmd.OutOrStdout(), p)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Now chatting with %s\n", p.DisplayName)
				return nil
			}

			resp, err := client.Personas(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Active)
			return nil
		},
	}
}

// NewPersonasCmd lists the catalog.
func NewPersonasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List available personas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := clientFrom(cmd).Personas(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			for _, p := range resp.Personas {
				marker := " "
				if p.ID == resp.Active {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-8s %s  %s\n", marker, p.ID, p.DisplayName, p.Description)
			}
			return nil
		},
	}
}

// NewThemeCmd shows or sets the theme.
func NewThemeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark]",
		Short:     "Show or set the theme",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"light", "dark"},
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFrom(cmd)
			if len(args) == 1 {
				if err := client.SetTheme(cmd.Context(), args[0]); err != nil {
					return err
				}
			}
			theme, err := client.Theme(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme)
			return nil
		},
	}
}

// NewWatchCmd follows the live event stream.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow conversation updates live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			asJSON := jsonOutput(cmd)
			var lastVersion uint64
			return clientFrom(cmd).Watch(ctx, func(ev chatsim.Event) {
				if asJSON {
					printJSON(out, ev)
					return
				}
				switch ev.Type {
				case "render":
					if ev.Screen == nil || ev.Screen.Version < lastVersion {
						return
					}
					lastVersion = ev.Screen.Version
					fmt.Fprintln(out, "----")
					printScreen(out, ev.Screen)
				case "cue":
					if ev.Cue != nil {
						fmt.Fprintf(out, "♪ %s\n", ev.Cue.Name)
					}
				default:
					fmt.Fprintf(out, "[%s] %s: %s\n", ev.Type, ev.Code, ev.Message)
				}
			})
		},
	}
}

// NewHealthCmd checks server health.
func NewHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := clientFrom(cmd).Health(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

// NewStatsCmd prints conversation statistics.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show conversation statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := clientFrom(cmd).Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func printMessage(cmd *cobra.Command, resp *chatsim.MessageResponse) error {
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	printWarning(cmd, resp.Warning)
	fmt.Fprintf(cmd.OutOrStdout(), "Sent: %s\n", resp.Message.ID)
	return nil
}

func printWarning(cmd *cobra.Command, warning string) {
	if warning != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", warning)
	}
}

func printScreen(w io.Writer, screen *chatsim.Screen) {
	fmt.Fprintf(w, "%s %s\n", screen.Header.Avatar, screen.Header.Name)
	for _, m := range screen.Messages {
		body := m.Body.Text
		if m.Body.ImageSrc != "" {
			body = "[image]"
		}
		line := fmt.Sprintf("%3d [%s] %s %s", m.Index, m.Timestamp, m.Avatar, body)
		if m.Side == "right" {
			line = fmt.Sprintf("%3d [%s] > %s", m.Index, m.Timestamp, body)
		}
		if len(m.Reactions) > 0 {
			line += "  " + strings.Join(m.Reactions, "")
		}
		fmt.Fprintln(w, line)
	}
	if screen.Typing != nil {
		fmt.Fprintln(w, "    "+screen.Typing.Text)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}
