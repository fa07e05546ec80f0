package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stationagent/internal/dto"
)

var cameraCmd = &cobra.Command{
	Use:   "camera",
	Short: "Show or change the backend's active camera",
}

var cameraGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the active camera",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := backendClient()
		if err != nil {
			return err
		}

		id, ok := client.PollActiveDevice(context.Background())
		if !ok {
			return fmt.Errorf("backend %s did not report an active camera", client.BaseURL())
		}
		if jsonOutput {
			return printJSON(dto.ActiveCameraResponse{CameraID: &id})
		}

		slots, err := cfg.SlotTable()
		if err != nil {
			return err
		}
		if station, ok := slots.Station(id); ok {
			fmt.Printf("Active camera: %d (%s station)\n", id, station)
			return nil
		}
		fmt.Printf("Active camera: %d (not configured on this agent)\n", id)
		return nil
	},
}

var cameraSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Make camera <id> the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil || id < 0 {
			return fmt.Errorf("invalid camera id %q", args[0])
		}

		client, cfg, err := backendClient()
		if err != nil {
			return err
		}
		slots, err := cfg.SlotTable()
		if err != nil {
			return err
		}
		if _, ok := slots.Slot(id); !ok {
			return fmt.Errorf("camera %d is not configured (have %d stations)", id, slots.Len())
		}

		if err := client.SetActiveCamera(context.Background(), id); err != nil {
			return err
		}
		fmt.Printf("Active camera set to %d\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cameraCmd)
	cameraCmd.AddCommand(cameraGetCmd)
	cameraCmd.AddCommand(cameraSetCmd)
}
