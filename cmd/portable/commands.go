package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/drblury/portable/internal/runtime/jsoncodec"
	"github.com/drblury/portable/internal/runtime/metadata"
	"github.com/drblury/portable/internal/runtime/normalizer"
	"github.com/drblury/portable/internal/runtime/routing"
	"github.com/drblury/portable/internal/runtime/serializer"
	"github.com/drblury/portable/internal/runtime/typeregistry"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "portable",
		Short:        "Inspect portable message envelopes",
		Long:         "portable decodes wire payloads produced by the portable serializer and computes routing keys.",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to a config file (yaml, json or toml)")
	flags.String("format", "", "Serialization format")
	flags.String("routing-key-pattern", "", "Routing key pattern containing "+routing.Placeholder)
	flags.String("pubsub-system", "", "Transport name")
	flags.String("bus-name", "", "Bus name")

	root.AddCommand(inspectCmd(), routingKeyCmd(), configCmd())
	return root
}

// wireDocument is the JSON form of a wire payload read by inspect.
type wireDocument struct {
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [file|-]",
		Short: "Print the message type, content type and built-in stamps of a wire payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			var doc wireDocument
			if err := jsoncodec.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("parse wire payload: %w", err)
			}

			ser, err := serializer.New(typeregistry.MustNew(nil, nil), normalizer.NewSet(), cfg.Format)
			if err != nil {
				return err
			}
			return printPayload(cmd.OutOrStdout(), ser, serializer.WirePayload{
				Headers: metadata.Metadata(doc.Headers),
				Body:    []byte(doc.Body),
			})
		},
	}
}

func printPayload(w io.Writer, ser *serializer.Serializer, p serializer.WirePayload) error {
	fmt.Fprintf(w, "type:         %s\n", valueOrNone(p.Headers[serializer.HeaderMessageType]))
	fmt.Fprintf(w, "content-type: %s\n", valueOrNone(p.Headers[serializer.HeaderContentType]))

	stamps, err := ser.DecodeStamps(p.Headers)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "stamps:")
	if len(stamps) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, stamp := range stamps {
		wire, err := ser.Registry().StampWireTypeOf(stamp)
		if err != nil {
			return err
		}
		encoded, err := jsoncodec.Marshal(stamp)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s %s\n", wire, encoded)
	}

	fmt.Fprintf(w, "body:         %s\n", describeBody(p.Body))
	return nil
}

func describeBody(body []byte) string {
	if len(bytes.TrimSpace(body)) == 0 {
		return "(empty)"
	}
	if !jsoncodec.Valid(body) {
		return "invalid JSON"
	}
	var tree any
	if err := jsoncodec.UnmarshalNumber(body, &tree); err != nil {
		return "invalid JSON"
	}
	if obj, ok := tree.(map[string]any); ok {
		return fmt.Sprintf("object with %d fields", len(obj))
	}
	return fmt.Sprintf("not an object (%T)", tree)
}

func valueOrNone(v string) string {
	if v == "" {
		return "(none)"
	}
	return v
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func routingKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routing-key <message-type>...",
		Short: "Print the routing key derived for each message wire type",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			keys, err := routing.NewKeyMiddleware(typeregistry.MustNew(nil, nil), cfg.RoutingKeyPattern)
			if err != nil {
				return err
			}
			for _, wire := range args {
				fmt.Fprintln(cmd.OutOrStdout(), keys.Key(strings.TrimSpace(wire)))
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}
}
