package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"agentdesk/internal/config"
	"agentdesk/internal/persona"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var (
	chatPersona string
	chatMessage string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Send one message to a persona read from an exported JSON document",
	RunE: func(cmd *cobra.Command, args []string) error {
		message := chatMessage
		if message == "" {
			message = strings.Join(args, " ")
		}
		if strings.TrimSpace(message) == "" {
			return errors.New("a message is required")
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		spec, err := readSpec(chatPersona)
		if err != nil {
			return err
		}

		personas := persona.NewRegistry()
		p, err := personas.Create(spec)
		if err != nil {
			return err
		}

		composer, err := buildComposer(cfg, personas, nil)
		if err != nil {
			return err
		}

		reply, err := composer.Handle(cmd.Context(), p.ID, message)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply)
		return nil
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatPersona, "persona", "p", "", "persona JSON document (as produced by export)")
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "message to send; remaining args are used when empty")
	_ = chatCmd.MarkFlagRequired("persona")
}

func readSpec(path string) (persona.Spec, error) {
	var spec persona.Spec
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("reading persona: %w", err)
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("decoding persona %s: %w", path, err)
	}
	return spec, nil
}
