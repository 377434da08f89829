package main

import (
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

func init() {
	var email string
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Trigger a snapshot sync for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userFlag == "" || email == "" {
				return fmt.Errorf("--user and --email required")
			}
			data, err := call(func(c *resty.Client) (*resty.Response, error) {
				return c.R().
					SetBody(map[string]string{"email": email}).
					Post(fmt.Sprintf("/api/users/%s/sync", userFlag))
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	syncCmd.Flags().StringVarP(&email, "email", "e", "", "Planner account email (required)")
	_ = syncCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(syncCmd)

	var date string
	activitiesCmd := &cobra.Command{
		Use:   "activities",
		Short: "Show a user's persisted activities for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userFlag == "" {
				return fmt.Errorf("--user required")
			}
			data, err := call(func(c *resty.Client) (*resty.Response, error) {
				req := c.R()
				if date != "" {
					req.SetQueryParam("date", date)
				}
				return req.Get(fmt.Sprintf("/api/users/%s/activities", userFlag))
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	activitiesCmd.Flags().StringVarP(&date, "date", "d", "", "Date (YYYY-MM-DD, defaults to today)")
	rootCmd.AddCommand(activitiesCmd)

	var summaryDate string
	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Render the AI daily summary for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userFlag == "" {
				return fmt.Errorf("--user required")
			}
			data, err := call(func(c *resty.Client) (*resty.Response, error) {
				req := c.R()
				if summaryDate != "" {
					req.SetQueryParam("date", summaryDate)
				}
				return req.Get(fmt.Sprintf("/api/users/%s/summary", userFlag))
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	summaryCmd.Flags().StringVarP(&summaryDate, "date", "d", "", "Date (YYYY-MM-DD, defaults to today)")
	rootCmd.AddCommand(summaryCmd)
}
