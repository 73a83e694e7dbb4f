package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kalambet/flowerdesk/internal/chatbot"
	"github.com/kalambet/flowerdesk/internal/config"
	"github.com/kalambet/flowerdesk/internal/inventory"
	"github.com/kalambet/flowerdesk/internal/kol"
	"github.com/kalambet/flowerdesk/internal/storage"
)

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze <product>",
	Short: "Run an inventory analysis for a product",
	Long: `Run the weather, social-media and holiday analysis for a product and
print the structured result.

Examples:
  flowerdesk analyze 玫瑰
  flowerdesk analyze 玫瑰 --city 上海`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		city, _ := cmd.Flags().GetString("city")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		printStep("Analyzing %s...", args[0])
		resp, err := client.post(cmd.Context(), "/inventory/analyze", map[string]string{
			"product": args[0],
			"city":    city,
		})
		if err != nil {
			return err
		}

		var p inventory.Payload
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		if p.Status != inventory.StatusSuccess {
			printWarning("analysis finished with status %q", p.Status)
		}
		return printJSON(p)
	},
}

func init() {
	analyzeCmd.Flags().String("city", "", "city to analyze (default nationwide)")
}

// --- plan ---

var planCmd = &cobra.Command{
	Use:   "plan <product>",
	Short: "Generate an inventory and logistics plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		analysis, _ := cmd.Flags().GetString("analysis")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/inventory/plan", map[string]string{
			"product":  args[0],
			"analysis": analysis,
		})
		if err != nil {
			return err
		}

		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	planCmd.Flags().String("analysis", "", "market analysis text to plan against")
}

// --- records ---

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Browse stored analyses",
}

var recordsRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recent analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/api/records?limit="+strconv.Itoa(limit))
		if err != nil {
			return err
		}

		var recs []storage.InventoryRecord
		if err := decodeJSON(resp, &recs); err != nil {
			return err
		}
		printRecords(recs)
		return nil
	},
}

var recordsSearchCmd = &cobra.Command{
	Use:   "search <product>",
	Short: "Search analyses by product name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		q := url.Values{"q": {args[0]}, "limit": {strconv.Itoa(limit)}}
		resp, err := client.get(cmd.Context(), "/api/records/search?"+q.Encode())
		if err != nil {
			return err
		}

		var recs []storage.InventoryRecord
		if err := decodeJSON(resp, &recs); err != nil {
			return err
		}
		printRecords(recs)
		return nil
	},
}

func printRecords(recs []storage.InventoryRecord) {
	if len(recs) == 0 {
		fmt.Println("No records found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIMESTAMP\tPRODUCT\tSTRATEGY")
	for _, r := range recs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Timestamp, r.Product, truncate(r.Strategy, 60))
	}
	w.Flush()
}

func init() {
	recordsRecentCmd.Flags().Int("limit", storage.DefaultRecentLimit, "number of records")
	recordsSearchCmd.Flags().Int("limit", storage.DefaultSearchLimit, "number of records")
	recordsCmd.AddCommand(recordsRecentCmd)
	recordsCmd.AddCommand(recordsSearchCmd)
}

// --- marketing ---

var marketingCmd = &cobra.Command{
	Use:   "marketing",
	Short: "Draft and refine marketing plans",
}

var marketingGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Draft a marketing plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		product, _ := cmd.Flags().GetString("product")
		target, _ := cmd.Flags().GetString("target")
		goal, _ := cmd.Flags().GetString("goal")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/marketing/generate", map[string]string{
			"product": product,
			"target":  target,
			"goal":    goal,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Println(result["plan"])
		return nil
	},
}

var marketingRefineCmd = &cobra.Command{
	Use:   "refine",
	Short: "Refine a plan with feedback",
	RunE: func(cmd *cobra.Command, args []string) error {
		planFile, _ := cmd.Flags().GetString("plan-file")
		feedback, _ := cmd.Flags().GetString("feedback")

		plan, err := os.ReadFile(planFile)
		if err != nil {
			return fmt.Errorf("reading plan: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/marketing/refine", map[string]string{
			"plan":     string(plan),
			"feedback": feedback,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Println(result["plan"])
		return nil
	},
}

func init() {
	marketingGenerateCmd.Flags().String("product", "", "product to promote")
	marketingGenerateCmd.Flags().String("target", "", "target audience")
	marketingGenerateCmd.Flags().String("goal", "", "marketing goal")
	for _, f := range []string{"product", "target", "goal"} {
		marketingGenerateCmd.MarkFlagRequired(f)
	}
	marketingRefineCmd.Flags().String("plan-file", "", "file holding the current plan")
	marketingRefineCmd.Flags().String("feedback", "", "feedback to apply")
	marketingRefineCmd.MarkFlagRequired("plan-file")
	marketingRefineCmd.MarkFlagRequired("feedback")

	marketingCmd.AddCommand(marketingGenerateCmd)
	marketingCmd.AddCommand(marketingRefineCmd)
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <question>",
	Short: "Ask the document knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _ := cmd.Flags().GetString("session")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/chat", map[string]string{
			"message":    args[0],
			"session_id": session,
		})
		if err != nil {
			return err
		}

		var ans chatbot.Answer
		if err := decodeJSON(resp, &ans); err != nil {
			return err
		}
		fmt.Println(ans.Reply)
		for _, s := range ans.Sources {
			printStatus("Source", "%s", s)
		}
		printStatus("Session", "%s", ans.SessionID)
		return nil
	},
}

func init() {
	chatCmd.Flags().String("session", "", "session id to continue a conversation")
}

// --- docs ---

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage the knowledge base",
}

var docsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a web page or text to the knowledge base",
	Long: `Add a web page or text to the knowledge base.

Examples:
  flowerdesk docs add --url https://example.com/rose-care
  flowerdesk docs add --file ./care.txt
  flowerdesk docs add --text "玫瑰喜光,需每天日照6小时" --source care-notes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		rawURL, _ := cmd.Flags().GetString("url")
		file, _ := cmd.Flags().GetString("file")
		source, _ := cmd.Flags().GetString("source")

		req := map[string]string{}
		switch {
		case rawURL != "":
			req["url"] = rawURL
		case file != "":
			data, err := chatbot.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			req["text"] = data
			if source == "" {
				source = file
			}
		case text != "":
			req["text"] = text
		default:
			return fmt.Errorf("one of --text, --url, or --file is required")
		}
		if source != "" {
			req["source"] = source
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/docs", req)
		if err != nil {
			return err
		}

		var result struct {
			Source string `json:"source"`
			Chunks int    `json:"chunks"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Indexed %s (%d chunks)", result.Source, result.Chunks)
		return nil
	},
}

func init() {
	docsAddCmd.Flags().String("text", "", "text content to add")
	docsAddCmd.Flags().String("url", "", "URL to fetch and add")
	docsAddCmd.Flags().String("file", "", "local .txt/.md/.pdf/.html file to add")
	docsAddCmd.Flags().String("source", "", "source label for text")
	docsCmd.AddCommand(docsAddCmd)
}

// --- kol ---

var kolCmd = &cobra.Command{
	Use:   "kol <category>",
	Short: "Find an influencer for a category and draft an outreach letter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/process", map[string]string{"category": args[0]})
		if err != nil {
			return err
		}

		var letter kol.Letter
		if err := decodeJSON(resp, &letter); err != nil {
			return err
		}
		return printJSON(letter)
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
