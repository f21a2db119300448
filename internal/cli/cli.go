package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	internal_http "github.com/tenantic/flowcore/internal/http"
	"github.com/tenantic/flowcore/internal/log"
	internal_storage "github.com/tenantic/flowcore/internal/storage"
	"github.com/tenantic/flowcore/pkg/service"
)

func SetupCLI(rootCmd *cobra.Command) {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the flowcore HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr := mustDBFlag(cmd)
			port, _ := cmd.Flags().GetString("port")
			if port == "" {
				port = "8080"
			}
			store := initStore(dbConnStr)
			defer store.Close()
			if err := internal_http.StartServer(port, store); err != nil {
				log.GetLogger().Errorf("Server failed: %v", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("port", "8080", "HTTP port to listen on")

	createDefinitionCmd := &cobra.Command{
		Use:   "create-definition tenant=<id> file=<definition.json>",
		Short: "Create a workflow definition from a JSON file",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr := mustDBFlag(cmd)
			tenantID := argValue(args[0])
			path := argValue(args[1])
			raw, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to read %s: %v\n", path, err)
				os.Exit(1)
			}
			var input service.CreateDefinitionInput
			if err := json.Unmarshal(raw, &input); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to parse %s: %v\n", path, err)
				os.Exit(1)
			}
			store := initStore(dbConnStr)
			defer store.Close()
			svc := service.NewDefinitionService(store, log.GetLogger())
			def, err := svc.CreateDefinition(tenantID, input)
			if err != nil {
				log.GetLogger().Errorf("Failed to create definition: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to create definition: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Created definition '%s' with ID %d (%d states, %d transitions)\n",
				def.Name, def.ID, len(def.States), len(def.Transitions))
		},
	}

	listDefinitionsCmd := &cobra.Command{
		Use:   "list-definitions tenant=<id>",
		Short: "List a tenant's workflow definitions",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr := mustDBFlag(cmd)
			tenantID := argValue(args[0])
			store := initStore(dbConnStr)
			defer store.Close()
			svc := service.NewDefinitionService(store, log.GetLogger())
			defs, err := svc.ListDefinitions(tenantID)
			if err != nil {
				log.GetLogger().Errorf("Failed to list definitions: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to list definitions: %v\n", err)
				os.Exit(1)
			}
			if len(defs) == 0 {
				fmt.Fprintf(os.Stdout, "No definitions found.\n")
				return
			}
			fmt.Fprintf(os.Stdout, "Definitions:\n")
			for _, d := range defs {
				fmt.Fprintf(os.Stdout, "- ID: %d, Name: %s, Entity: %s, Status: %s, Active: %t\n",
					d.ID, d.Name, d.EntityType, d.Status, d.IsActive)
			}
		},
	}

	startCmd := &cobra.Command{
		Use:   "start tenant=<id> definition=<id> entity-type=<type> entity-id=<id> [user=<id>]",
		Short: "Start a workflow instance for a business entity",
		Args:  cobra.RangeArgs(4, 5),
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr := mustDBFlag(cmd)
			tenantID := argValue(args[0])
			definitionID := argInt(args[1])
			entityType := argValue(args[2])
			entityID := argValue(args[3])
			user := ""
			if len(args) == 5 {
				user = argValue(args[4])
			}
			store := initStore(dbConnStr)
			defer store.Close()
			svc := service.NewInstanceService(store, log.GetLogger())
			in, err := svc.StartInstance(tenantID, definitionID, entityType, entityID, user)
			if err != nil {
				log.GetLogger().Errorf("Failed to start instance: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to start instance: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Started instance %d for %s/%s in state %d\n",
				in.ID, in.EntityType, in.EntityID, in.CurrentStateID)
		},
	}

	advanceCmd := &cobra.Command{
		Use:   "advance tenant=<id> instance=<id> transition=<id> [user=<id>] [comment=<text>]",
		Short: "Apply a transition to an active instance",
		Args:  cobra.RangeArgs(3, 5),
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr := mustDBFlag(cmd)
			tenantID := argValue(args[0])
			instanceID := argInt(args[1])
			transitionID := argInt(args[2])
			user, comment := "", ""
			for _, arg := range args[3:] {
				switch strings.SplitN(arg, "=", 2)[0] {
				case "user":
					user = argValue(arg)
				case "comment":
					comment = argValue(arg)
				}
			}
			store := initStore(dbConnStr)
			defer store.Close()
			svc := service.NewInstanceService(store, log.GetLogger())
			in, err := svc.Advance(tenantID, instanceID, transitionID, user, comment)
			if err != nil {
				log.GetLogger().Errorf("Failed to advance instance: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to advance instance: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Advanced instance %d to state %d (status %s)\n",
				in.ID, in.CurrentStateID, in.Status)
		},
	}

	cancelCmd := &cobra.Command{
		Use:   "cancel tenant=<id> instance=<id> [user=<id>] [comment=<text>]",
		Short: "Cancel an active instance",
		Args:  cobra.RangeArgs(2, 4),
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr := mustDBFlag(cmd)
			tenantID := argValue(args[0])
			instanceID := argInt(args[1])
			user, comment := "", ""
			for _, arg := range args[2:] {
				switch strings.SplitN(arg, "=", 2)[0] {
				case "user":
					user = argValue(arg)
				case "comment":
					comment = argValue(arg)
				}
			}
			store := initStore(dbConnStr)
			defer store.Close()
			svc := service.NewInstanceService(store, log.GetLogger())
			in, err := svc.Cancel(tenantID, instanceID, user, comment)
			if err != nil {
				log.GetLogger().Errorf("Failed to cancel instance: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to cancel instance: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Cancelled instance %d at state %d\n", in.ID, in.CurrentStateID)
		},
	}

	historyCmd := &cobra.Command{
		Use:   "history tenant=<id> instance=<id>",
		Short: "Show the audit trail of an instance",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr := mustDBFlag(cmd)
			tenantID := argValue(args[0])
			instanceID := argInt(args[1])
			store := initStore(dbConnStr)
			defer store.Close()
			svc := service.NewInstanceService(store, log.GetLogger())
			logs, err := svc.ListHistory(instanceID, tenantID)
			if err != nil {
				log.GetLogger().Errorf("Failed to list history: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to list history: %v\n", err)
				os.Exit(1)
			}
			if len(logs) == 0 {
				fmt.Fprintf(os.Stdout, "No history found.\n")
				return
			}
			fmt.Fprintf(os.Stdout, "History:\n")
			for _, l := range logs {
				from := "-"
				if l.FromStateID != nil {
					from = strconv.FormatInt(*l.FromStateID, 10)
				}
				transition := "-"
				if l.TransitionID != nil {
					transition = strconv.FormatInt(*l.TransitionID, 10)
				}
				fmt.Fprintf(os.Stdout, "- %s: state %s -> %d (transition %s, actor '%s') %s\n",
					l.ActedAt.Format(time.RFC3339), from, l.ToStateID, transition, l.ActorUserID, l.Comment)
			}
		},
	}

	rootCmd.AddCommand(serveCmd, createDefinitionCmd, listDefinitionsCmd, startCmd, advanceCmd, cancelCmd, historyCmd)
}

func argValue(arg string) string {
	parts := strings.SplitN(arg, "=", 2)
	if len(parts) != 2 {
		fmt.Fprintf(os.Stderr, "Error: expected key=value argument, got '%s'\n", arg)
		os.Exit(1)
	}
	return parts[1]
}

func argInt(arg string) int64 {
	v, err := strconv.ParseInt(argValue(arg), 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing '%s' as number: %v\n", arg, err)
		os.Exit(1)
	}
	return v
}

func mustDBFlag(cmd *cobra.Command) string {
	dbConnStr, err := cmd.Flags().GetString("db")
	if err != nil {
		log.GetLogger().Errorf("Error retrieving db flag: %v", err)
		os.Exit(1)
	}
	if dbConnStr == "" {
		fmt.Fprintln(os.Stderr, "Error: --db connection string is required")
		os.Exit(1)
	}
	return dbConnStr
}

func initStore(dbConnStr string) *internal_storage.PostgresStore {
	store, err := internal_storage.InitStore(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	return store
}
