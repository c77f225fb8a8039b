// flowctl is a small operator CLI for the data engine behind DataFlow
// Studio: list, run and delete saved flows without going through the UI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"dataflow-studio/backend/internal/config"
	"dataflow-studio/backend/internal/engine"
	"dataflow-studio/backend/pkg/models"
)

var (
	engineURL string
	username  string
	password  string
	confirmed bool

	client *engine.Client
	userID int

	rootCmd = &cobra.Command{
		Use:   "flowctl",
		Short: "Manage DataFlow Studio flows from the command line",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if engineURL == "" {
				cfg, err := config.LoadConfig("")
				if err != nil {
					log.Fatalf("Error loading config: %v", err)
				}
				engineURL = cfg.Engine.URL
			}
			client = engine.NewClient(engineURL, 60*time.Second)
		},
	}

	flowsCmd = &cobra.Command{
		Use:   "flows",
		Short: "List, run and delete saved flows",
	}
	flowsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List your saved flows",
		Run:   runFlowsList,
	}
	flowsRunCmd = &cobra.Command{
		Use:   "run [flow id]",
		Short: "Execute a saved flow and print the result",
		Args:  cobra.ExactArgs(1),
		Run:   runFlowsRun,
	}
	flowsDeleteCmd = &cobra.Command{
		Use:   "delete [flow id]",
		Short: "Delete a saved flow (requires --yes)",
		Args:  cobra.ExactArgs(1),
		Run:   runFlowsDelete,
	}

	filesCmd = &cobra.Command{
		Use:   "files",
		Short: "List your uploaded datasets",
		Run:   runFilesList,
	}
)

func main() {
	rootCmd.PersistentFlags().StringVar(&engineURL, "engine", "", "Data engine base URL (default from config)")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "Engine username")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", "", "Engine password (or FLOWCTL_PASSWORD)")
	flowsDeleteCmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm the deletion")

	flowsCmd.AddCommand(flowsListCmd, flowsRunCmd, flowsDeleteCmd)
	rootCmd.AddCommand(flowsCmd, filesCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

// login authenticates against the engine once per invocation.
func login(ctx context.Context) {
	if password == "" {
		password = os.Getenv("FLOWCTL_PASSWORD")
	}
	if username == "" || password == "" {
		log.Fatal("Missing credentials: pass --username and --password (or FLOWCTL_PASSWORD)")
	}
	resp, err := client.Login(ctx, models.Credentials{Username: username, Password: password})
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	userID = resp.UserID
}

func runFlowsList(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	login(ctx)

	flows, err := client.ListFlows(ctx, userID)
	if err != nil {
		log.Fatalf("Error listing flows: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tNODES\tUPDATED\tLAST RUN")
	for _, f := range flows {
		lastRun := "-"
		if f.ExecutionResult != nil {
			lastRun = f.ExecutionResult.Status
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
			f.ID, f.Name, len(f.Nodes), f.UpdatedAt.Format(time.RFC3339), lastRun)
	}
	w.Flush()
}

func runFlowsRun(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	login(ctx)

	id, err := strconv.Atoi(args[0])
	if err != nil {
		log.Fatalf("Invalid flow id %q", args[0])
	}

	flow, err := findFlow(ctx, id)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	result, err := client.Execute(ctx, flow.Nodes, flow.Edges)
	if err != nil {
		log.Fatalf("Execution failed: %v", err)
	}

	fmt.Printf("Flow %q finished: %s\n", flow.Name, result.Status)
	if result.Message != "" {
		fmt.Println(result.Message)
	}
	for _, line := range result.Logs {
		fmt.Println("  " + line)
	}
	if result.FinalOutput != nil {
		fmt.Printf("Final output: %d rows, %d columns\n", result.FinalOutput.Rows, len(result.FinalOutput.Columns))
	}
}

func runFlowsDelete(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	id, err := strconv.Atoi(args[0])
	if err != nil {
		log.Fatalf("Invalid flow id %q", args[0])
	}
	if !confirmed {
		log.Fatalf("Refusing to delete flow %d without --yes", id)
	}
	login(ctx)

	if err := client.DeleteFlow(ctx, userID, id); err != nil {
		log.Fatalf("Error deleting flow: %v", err)
	}
	fmt.Printf("Flow %d deleted\n", id)
}

func runFilesList(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	login(ctx)

	files, err := client.ListFiles(ctx, userID)
	if err != nil {
		log.Fatalf("Error listing files: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tSIZE\tCOLUMNS")
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", f.Name, f.Type, f.Size, len(f.Columns))
	}
	w.Flush()
}

func findFlow(ctx context.Context, id int) (*models.Flow, error) {
	flows, err := client.ListFlows(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range flows {
		if flows[i].ID == id {
			return &flows[i], nil
		}
	}
	return nil, errors.New("flow not found")
}
