package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Ask the assistant a question on behalf of a user",
	Run: func(cmd *cobra.Command, args []string) {
		ask(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringP("user", "u", "", "id of the user asking")
	askCmd.MarkFlagRequired("user")
}

func ask(cmd *cobra.Command, args []string) {
	log, config := bootstrap()
	ctx := context.Background()

	userID, _ := cmd.Flags().GetString("user")

	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		prompt := promptui.Prompt{
			Label: "Query",
			Validate: func(input string) error {
				if strings.TrimSpace(input) == "" {
					return errors.New("query is required")
				}
				return nil
			},
		}

		var err error
		query, err = prompt.Run()
		if err != nil {
			log.Fatal("reading the query", zap.Error(err))
		}
	}

	deps, err := buildComponents(ctx, config, log)
	if err != nil {
		log.Fatal("building components", zap.Error(err))
	}

	err = deps.runWith(func(c *components) error {
		answer, err := c.assistant.Answer(ctx, userID, query)
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	})
	if err != nil {
		log.Fatal("answering the query", zap.Error(err))
	}
}
