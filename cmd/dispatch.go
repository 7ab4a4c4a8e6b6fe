package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/crewzy/internal/dispatch"
	"github.com/spigell/crewzy/internal/geo"
	"github.com/spigell/crewzy/internal/records"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch [task description]",
	Short: "Assign one task to the nearest qualified employee",
	Run: func(cmd *cobra.Command, args []string) {
		runDispatch(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(dispatchCmd)

	dispatchCmd.Flags().StringP("name", "n", "", "customer name")
	dispatchCmd.Flags().String("number", "", "customer contact number")
	dispatchCmd.Flags().StringP("coordinates", "c", "", "customer coordinates as lon,lat")
	dispatchCmd.Flags().StringP("eloc", "e", "", "customer eLoc token")
}

func runDispatch(cmd *cobra.Command, args []string) {
	log, config := bootstrap()
	ctx := context.Background()

	tracerShutdown := setupTracing(config, log)
	defer tracerShutdown(ctx)

	req, err := dispatchRequestFromFlags(cmd, args)
	if err != nil {
		log.Fatal("reading the task", zap.Error(err))
	}

	deps, err := buildComponents(ctx, config, log)
	if err != nil {
		log.Fatal("building components", zap.Error(err))
	}

	err = deps.runWith(func(c *components) error {
		result, err := c.dispatcher.Dispatch(ctx, req)
		if err != nil {
			return err
		}

		pretty, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(pretty))

		if result.AssignedEmployee == nil {
			log.Info("no employee assigned",
				zap.String("category", result.Task.Category),
				zap.Int("matched_count", result.MatchedCount),
			)
		}
		return nil
	})
	if err != nil {
		tracerShutdown(ctx)
		log.Fatal("dispatch failed", zap.Error(err))
	}
}

func dispatchRequestFromFlags(cmd *cobra.Command, args []string) (dispatch.Request, error) {
	name, _ := cmd.Flags().GetString("name")
	number, _ := cmd.Flags().GetString("number")
	coordinates, _ := cmd.Flags().GetString("coordinates")
	eloc, _ := cmd.Flags().GetString("eloc")

	location, err := parseLocation(coordinates, eloc)
	if err != nil {
		return dispatch.Request{}, err
	}

	task := strings.TrimSpace(strings.Join(args, " "))
	if task == "" {
		task, err = promptTask()
		if err != nil {
			return dispatch.Request{}, err
		}
	}

	return dispatch.Request{
		CustomerName:     name,
		CustomerNumber:   number,
		CustomerLocation: location,
		TaskDescription:  task,
	}, nil
}

// parseLocation accepts "lon,lat" and/or an eLoc token.
func parseLocation(coordinates, eloc string) (records.Location, error) {
	location := records.Location{Token: strings.TrimSpace(eloc)}

	if coordinates = strings.TrimSpace(coordinates); coordinates != "" {
		parts := strings.Split(coordinates, ",")
		pair := make([]any, 0, len(parts))
		for _, p := range parts {
			pair = append(pair, p)
		}

		point, err := geo.ParsePoint(pair)
		if err != nil {
			return records.Location{}, fmt.Errorf("parsing --coordinates: %w", err)
		}
		location.Point = &point
	}

	if !location.Usable() {
		return records.Location{}, errors.New("one of --coordinates or --eloc is required")
	}

	return location, nil
}

func promptTask() (string, error) {
	prompt := promptui.Prompt{
		Label: "Task description",
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("task description is required")
			}
			return nil
		},
	}

	task, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(task), nil
}
