package main

import (
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

func init() {
	memoryCmd := &cobra.Command{Use: "memory", Short: "Memory record operations"}

	var category, text string
	var relevance float64
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Store a fact in the user's memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userFlag == "" || text == "" {
				return fmt.Errorf("--user and --text required")
			}
			data, err := call(func(c *resty.Client) (*resty.Response, error) {
				return c.R().
					SetBody(map[string]interface{}{
						"category":      category,
						"text":          text,
						"relevanceHint": relevance,
					}).
					Post(fmt.Sprintf("/api/users/%s/memory", userFlag))
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	addCmd.Flags().StringVarP(&category, "category", "c", "", "Memory category (defaults to general)")
	addCmd.Flags().StringVarP(&text, "text", "t", "", "Fact text (required)")
	addCmd.Flags().Float64VarP(&relevance, "relevance", "r", 0, "Relevance hint (0 uses the default)")
	_ = addCmd.MarkFlagRequired("text")
	memoryCmd.AddCommand(addCmd)

	var query string
	var limit int
	relevantCmd := &cobra.Command{
		Use:   "relevant",
		Short: "Query facts relevant to a text",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userFlag == "" {
				return fmt.Errorf("--user required")
			}
			data, err := call(func(c *resty.Client) (*resty.Response, error) {
				req := c.R().SetQueryParam("q", query)
				if limit > 0 {
					req.SetQueryParam("limit", fmt.Sprintf("%d", limit))
				}
				return req.Get(fmt.Sprintf("/api/users/%s/memory/relevant", userFlag))
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	relevantCmd.Flags().StringVarP(&query, "query", "q", "", "Query text")
	relevantCmd.Flags().IntVarP(&limit, "limit", "l", 0, "Max facts to return")
	memoryCmd.AddCommand(relevantCmd)

	contextCmd := &cobra.Command{
		Use:   "context",
		Short: "Render the user's memory as AI prompt context",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userFlag == "" {
				return fmt.Errorf("--user required")
			}
			data, err := call(func(c *resty.Client) (*resty.Response, error) {
				return c.R().Get(fmt.Sprintf("/api/users/%s/memory/context", userFlag))
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	memoryCmd.AddCommand(contextCmd)

	dedupCmd := &cobra.Command{
		Use:   "dedup",
		Short: "Re-run duplicate detection over stored facts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userFlag == "" {
				return fmt.Errorf("--user required")
			}
			data, err := call(func(c *resty.Client) (*resty.Response, error) {
				return c.R().Post(fmt.Sprintf("/api/users/%s/memory/deduplicate", userFlag))
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	memoryCmd.AddCommand(dedupCmd)

	var clearCategory string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the whole record or one category",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userFlag == "" {
				return fmt.Errorf("--user required")
			}
			_, err := call(func(c *resty.Client) (*resty.Response, error) {
				req := c.R()
				if clearCategory != "" {
					req.SetQueryParam("category", clearCategory)
				}
				return req.Delete(fmt.Sprintf("/api/users/%s/memory", userFlag))
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, "cleared")
			return nil
		},
	}
	clearCmd.Flags().StringVarP(&clearCategory, "category", "c", "", "Only clear this category")
	memoryCmd.AddCommand(clearCmd)

	var days int
	decayCmd := &cobra.Command{
		Use:   "decay",
		Short: "Run relevance decay over idle memory records",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := call(func(c *resty.Client) (*resty.Response, error) {
				return c.R().
					SetBody(map[string]int{"daysUnused": days}).
					Post("/api/maintenance/memory/decay")
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	decayCmd.Flags().IntVarP(&days, "days", "d", 7, "Idle days before a record decays")
	memoryCmd.AddCommand(decayCmd)

	rootCmd.AddCommand(memoryCmd)
}
