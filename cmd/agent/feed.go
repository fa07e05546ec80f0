package main

import (
	"context"

	"github.com/spf13/cobra"

	"stationagent/internal/model"
)

var feedCmd = &cobra.Command{
	Use:   "feed <station>",
	Short: "Print the backend's stored live feed for a station",
	Long:  `Prints /api/station-feed/{station} as JSON. Stations are front, left, right and brake.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		station, err := model.ParseStation(args[0])
		if err != nil {
			return err
		}

		client, _, err := backendClient()
		if err != nil {
			return err
		}
		feed, err := client.StationFeed(context.Background(), station)
		if err != nil {
			return err
		}
		return printJSON(feed)
	},
}

func init() {
	rootCmd.AddCommand(feedCmd)
}
